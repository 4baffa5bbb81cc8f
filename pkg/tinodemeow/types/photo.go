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

package types

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const MimeTypePNG = "image/png"

var (
	ErrNoPhotoData   = errors.New("photo has no data")
	ErrInvalidBase64 = errors.New("invalid base64 photo data")
	ErrInvalidImage  = errors.New("invalid photo image")
)

// decodeImage turns raw photo bytes into a bitmap. Tests swap it out to count decodes.
var decodeImage = func(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// Photo is an avatar image embedded in a VCard.
//
// The decoded bitmap is cached on the Photo the first time it's requested. The
// exported fields must not be changed after that: to change the image, make a new
// Photo.
type Photo struct {
	// Type is the MIME type declared by the sender. It's informational only,
	// the actual format is sniffed from the data when decoding.
	Type string `json:"type,omitempty"`
	// Data is the base64-encoded image.
	Data string `json:"data,omitempty"`

	decodeOnce sync.Once
	decoded    atomic.Bool
	image      image.Image
	decodeErr  error
}

// NewPhoto creates a photo from raw image bytes.
func NewPhoto(mimeType string, data []byte) *Photo {
	photo := &Photo{Type: mimeType}
	if data != nil {
		photo.Data = base64.StdEncoding.EncodeToString(data)
	}
	return photo
}

// NewPhotoFromImage encodes the given image as PNG.
func NewPhotoFromImage(img image.Image) (*Photo, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode photo as png: %w", err)
	}
	return NewPhoto(MimeTypePNG, buf.Bytes()), nil
}

// Copy returns a new Photo with the same encoded data and an empty decode cache.
func (p *Photo) Copy() *Photo {
	if p == nil {
		return nil
	}
	return &Photo{Type: p.Type, Data: p.Data}
}

func (p *Photo) HasData() bool {
	return p != nil && p.Data != ""
}

// Bytes returns the base64-decoded image bytes without decoding the image itself.
func (p *Photo) Bytes() ([]byte, error) {
	if !p.HasData() {
		return nil, ErrNoPhotoData
	}
	data, err := decodeLenientBase64(p.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
	}
	return data, nil
}

// Decode decodes the photo, or returns the result of the previous decode.
//
// Concurrent callers share a single decode: the ones that lose the race wait for
// the first one to finish.
func (p *Photo) Decode() (image.Image, error) {
	if p == nil {
		return nil, ErrNoPhotoData
	}
	p.decodeOnce.Do(func() {
		p.image, p.decodeErr = p.decode()
		p.decoded.Store(true)
	})
	return p.image, p.decodeErr
}

func (p *Photo) decode() (image.Image, error) {
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	} else if img == nil {
		return nil, ErrInvalidImage
	}
	return img, nil
}

// Image returns the decoded bitmap, or nil if the photo is missing or can't be decoded.
func (p *Photo) Image() image.Image {
	img, _ := p.Decode()
	return img
}

// Decoded reports whether a decode has already finished, without starting one.
func (p *Photo) Decoded() bool {
	return p != nil && p.decoded.Load()
}

// decodeLenientBase64 ignores everything outside the base64 alphabet, including
// whitespace, line breaks, padding and the URL-safe "-" and "_". Only if that fails
// and the input has no standard "+" or "/" is it decoded again as URL-safe base64.
// A data URI prefix ("data:image/png;base64,") is skipped.
func decodeLenientBase64(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		if _, after, found := strings.Cut(data, ","); found {
			data = after
		}
	}
	decoded, err := base64.RawStdEncoding.DecodeString(filterBase64(data, false))
	if err != nil && strings.ContainsAny(data, "-_") && !strings.ContainsAny(data, "+/") {
		if urlDecoded, urlErr := base64.RawStdEncoding.DecodeString(filterBase64(data, true)); urlErr == nil {
			return urlDecoded, nil
		}
	}
	return decoded, err
}

func filterBase64(data string, urlSafe bool) string {
	clean := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
			clean = append(clean, c)
		case urlSafe && c == '-':
			clean = append(clean, '+')
		case urlSafe && c == '_':
			clean = append(clean, '/')
		}
	}
	return string(clean)
}
