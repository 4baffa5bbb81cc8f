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

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// glyphTile is the size of the square the initial is drawn on before scaling.
// The 7x13 face fits with a one pixel margin at the bottom.
const glyphTile = 13

// Render draws the avatar as a square image of the given size. Photos are
// center-cropped to a square and scaled.
func (v Visual) Render(size int) image.Image {
	if size <= 0 {
		size = glyphTile
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if v.Kind == KindPhoto && v.Image != nil {
		draw.CatmullRom.Scale(dst, dst.Bounds(), v.Image, squareCrop(v.Image.Bounds()), draw.Src, nil)
		return dst
	}
	tile := image.NewRGBA(image.Rect(0, 0, glyphTile, glyphTile))
	draw.Draw(tile, tile.Bounds(), image.NewUniform(v.Background), image.Point{}, draw.Src)
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(v.Foreground),
		Face: face,
	}
	width := drawer.MeasureString(v.Initial).Ceil()
	drawer.Dot = fixed.P((glyphTile-width)/2, face.Ascent)
	drawer.DrawString(v.Initial)
	if size == glyphTile {
		return tile
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), tile, tile.Bounds(), draw.Src, nil)
	return dst
}

// EncodePNG renders the avatar and writes it as PNG.
func (v Visual) EncodePNG(w io.Writer, size int) error {
	if err := png.Encode(w, v.Render(size)); err != nil {
		return fmt.Errorf("failed to encode avatar: %w", err)
	}
	return nil
}

func squareCrop(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	switch {
	case w > h:
		offset := (w - h) / 2
		return image.Rect(r.Min.X+offset, r.Min.Y, r.Min.X+offset+h, r.Max.Y)
	case h > w:
		offset := (h - w) / 2
		return image.Rect(r.Min.X, r.Min.Y+offset, r.Max.X, r.Min.Y+offset+w)
	default:
		return r
	}
}
