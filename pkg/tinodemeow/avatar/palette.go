// mautrix-tinode - Tinode chat list and contact presentation core.
// Copyright (C) 2026 mautrix-tinode contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package avatar

var (
	// Backgrounds for group topics.
	lightColors = [...]Color{
		RGB(0xEF9A9A), RGB(0x90CAF9), RGB(0xB0BEC5), RGB(0xB39DDB),
		RGB(0xFFAB91), RGB(0xA5D6A7), RGB(0xDDDDDD), RGB(0xE6EE9C),
		RGB(0xC5E1A5), RGB(0xFFF59D), RGB(0xF48FB1), RGB(0x9FA8DA),
		RGB(0xFFE082), RGB(0xBCAAA4), RGB(0x80DEEA), RGB(0xCE93D8),
	}
	// Backgrounds for one-to-one topics.
	darkColors = [...]Color{
		RGB(0xC62828), RGB(0xAD1457), RGB(0x6A1B9A), RGB(0x4527A0),
		RGB(0x283593), RGB(0x1565C0), RGB(0x0277BD), RGB(0x00838F),
		RGB(0x00695C), RGB(0x2E7D32), RGB(0x558B2F), RGB(0x9E9D24),
		RGB(0xF9A825), RGB(0xFF8F00), RGB(0xEF6C00), RGB(0xD84315),
	}

	ForegroundLight        = RGB(0xFFFFFF)
	ForegroundDark         = RGB(0xDEDEDE)
	DefaultBackgroundLight = RGB(0x9E9E9E)
	DefaultBackgroundDark  = RGB(0x757575)
)

// PaletteSize is the number of entries in each palette.
const PaletteSize = len(lightColors)

// Palette returns a copy of the dark (direct message) or light (group) palette.
func Palette(dark bool) []Color {
	if dark {
		return append([]Color(nil), darkColors[:]...)
	}
	return append([]Color(nil), lightColors[:]...)
}

// SelectColors picks the placeholder foreground and background for an identity.
// The dark palette is used for direct messages and the light one for everything else.
// Identities that hash to zero (including the empty string) get a neutral default.
func SelectColors(identity string, dark bool) (fg, bg Color) {
	hash := magnitude(HashCode(identity))
	switch {
	case hash == 0 && dark:
		return ForegroundDark, DefaultBackgroundDark
	case hash == 0:
		return ForegroundLight, DefaultBackgroundLight
	case dark:
		return ForegroundDark, darkColors[hash%uint32(len(darkColors))]
	default:
		return ForegroundLight, lightColors[hash%uint32(len(lightColors))]
	}
}
