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
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/rivo/uniseg"
	"github.com/rs/zerolog"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

type Kind int

const (
	KindPlaceholder Kind = iota
	KindPhoto
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "photo":
		*k = KindPhoto
	case "placeholder":
		*k = KindPlaceholder
	default:
		return fmt.Errorf("unknown avatar kind %q", text)
	}
	return nil
}

// Visual is what gets drawn in the avatar slot: either a decoded photo or a
// colored initial.
type Visual struct {
	Kind  Kind        `json:"kind"`
	Image image.Image `json:"-"`

	Initial    string `json:"initial,omitempty"`
	Foreground Color  `json:"foreground"`
	Background Color  `json:"background"`
	// PhotoPending is set on placeholders when the card has photo data that
	// hasn't been decoded yet.
	PhotoPending bool `json:"photo_pending,omitempty"`
}

const DefaultFallbackGlyph = "?"

// Observer receives statistics about avatar resolution.
type Observer interface {
	TrackResolve(kind Kind)
	TrackDecodeFailure(err error)
}

type Resolver struct {
	// FallbackGlyph is shown when the card has no name. Defaults to DefaultFallbackGlyph.
	FallbackGlyph string
	// NonBlocking makes Resolve return a placeholder instead of decoding photos
	// inline. The caller is expected to decode them elsewhere (see Prefetcher)
	// and resolve again afterwards.
	NonBlocking bool
	Observer    Observer
}

var defaultResolver = &Resolver{}

// Resolve is a shorthand for resolving with the default settings.
func Resolve(identity string, card *types.VCard, directMessage bool) Visual {
	return defaultResolver.Resolve(context.Background(), identity, card, directMessage)
}

// Resolve returns the decoded photo of the card, or a placeholder if there's no
// usable photo. The placeholder depends only on the inputs.
func (r *Resolver) Resolve(ctx context.Context, identity string, card *types.VCard, directMessage bool) Visual {
	var photo *types.Photo
	var name string
	if card != nil {
		photo = card.Photo
		name = card.FormattedName
	}
	pending := false
	if photo.HasData() {
		if r.NonBlocking && !photo.Decoded() {
			pending = true
		} else if img := r.decode(ctx, identity, photo); img != nil {
			r.track(KindPhoto)
			return Visual{Kind: KindPhoto, Image: img}
		}
	}
	fg, bg := SelectColors(identity, directMessage)
	r.track(KindPlaceholder)
	return Visual{
		Kind:         KindPlaceholder,
		Initial:      Initial(name, r.FallbackGlyph),
		Foreground:   fg,
		Background:   bg,
		PhotoPending: pending,
	}
}

func (r *Resolver) decode(ctx context.Context, identity string, photo *types.Photo) image.Image {
	alreadyDecoded := photo.Decoded()
	img, err := photo.Decode()
	if err != nil && !alreadyDecoded {
		zerolog.Ctx(ctx).Debug().Err(err).
			Str("topic", identity).
			Str("mime_type", photo.Type).
			Msg("Failed to decode avatar, using placeholder")
		if r.Observer != nil {
			r.Observer.TrackDecodeFailure(err)
		}
	}
	return img
}

func (r *Resolver) track(kind Kind) {
	if r.Observer != nil {
		r.Observer.TrackResolve(kind)
	}
}

// Initial returns the upper-cased first user-perceived character of the name,
// or the fallback if the name is empty. Whitespace is a character like any other.
func Initial(name, fallback string) string {
	if name == "" {
		if fallback == "" {
			return DefaultFallbackGlyph
		}
		return fallback
	}
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(name, -1)
	return strings.ToUpper(cluster)
}
