package types

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func countDecodes(t *testing.T) *atomic.Int32 {
	t.Helper()
	var count atomic.Int32
	orig := decodeImage
	decodeImage = func(data []byte) (image.Image, error) {
		count.Add(1)
		return orig(data)
	}
	t.Cleanup(func() { decodeImage = orig })
	return &count
}

func TestPhoto_ImageCached(t *testing.T) {
	count := countDecodes(t)
	photo := NewPhoto(MimeTypePNG, makeTestPNG(t))

	assert.False(t, photo.Decoded())
	first := photo.Image()
	require.NotNil(t, first)
	assert.True(t, photo.Decoded())
	second := photo.Image()
	assert.True(t, first == second, "second call should return the cached bitmap")
	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, image.Rect(0, 0, 4, 4), first.Bounds())
}

func TestPhoto_ConcurrentDecodeOnce(t *testing.T) {
	count := countDecodes(t)
	photo := NewPhoto(MimeTypePNG, makeTestPNG(t))

	var wg sync.WaitGroup
	results := make([]image.Image, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = photo.Image()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), count.Load())
	for _, img := range results {
		assert.Equal(t, results[0], img)
	}
}

func TestPhoto_CopyHasFreshCache(t *testing.T) {
	count := countDecodes(t)
	photo := NewPhoto(MimeTypePNG, makeTestPNG(t))
	require.NotNil(t, photo.Image())

	dup := photo.Copy()
	assert.Equal(t, photo.Data, dup.Data)
	assert.Equal(t, photo.Type, dup.Type)
	assert.False(t, dup.Decoded())
	require.NotNil(t, dup.Image())
	assert.Equal(t, int32(2), count.Load())
}

func TestPhoto_IgnoresUnknownCharacters(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(makeTestPNG(t))
	var noisy strings.Builder
	for i, c := range encoded {
		noisy.WriteRune(c)
		if i%10 == 9 {
			noisy.WriteString("\r\n \t*")
		}
	}
	photo := &Photo{Type: MimeTypePNG, Data: noisy.String()}
	img, err := photo.Decode()
	require.NoError(t, err)
	assert.NotNil(t, img)

	photo = &Photo{Data: "data:image/png;base64," + strings.TrimRight(encoded, "=")}
	assert.NotNil(t, photo.Image())
}

func TestPhoto_SkipsURLSafeCharactersInStandardBase64(t *testing.T) {
	raw := makeTestPNG(t)
	encoded := base64.StdEncoding.EncodeToString(raw)
	var noisy strings.Builder
	for i, c := range encoded {
		noisy.WriteRune(c)
		if i%16 == 15 {
			noisy.WriteString("-_")
		}
	}
	photo := &Photo{Type: MimeTypePNG, Data: noisy.String()}
	data, err := photo.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, data)
	img, err := photo.Decode()
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestPhoto_FallsBackToURLSafeBase64(t *testing.T) {
	// Skipping "-" and "_" leaves 5 characters, which can't be decoded.
	data, err := (&Photo{Data: "QUJDQ-_-"}).Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'B', 'C', 0x43, 0xef, 0xfe}, data)

	// Standard characters present means the input isn't URL-safe.
	_, err = (&Photo{Data: "QUJD+-_"}).Bytes()
	assert.ErrorIs(t, err, ErrInvalidBase64)
}

func TestPhoto_DecodeFailures(t *testing.T) {
	var nilPhoto *Photo
	_, err := nilPhoto.Decode()
	assert.ErrorIs(t, err, ErrNoPhotoData)
	assert.Nil(t, nilPhoto.Image())
	assert.False(t, nilPhoto.Decoded())

	_, err = (&Photo{Type: MimeTypePNG}).Decode()
	assert.ErrorIs(t, err, ErrNoPhotoData)

	// A single leftover character can't encode a full byte.
	_, err = (&Photo{Data: "QUJD" + "Q"}).Decode()
	assert.ErrorIs(t, err, ErrInvalidBase64)

	broken := &Photo{Type: MimeTypePNG, Data: base64.StdEncoding.EncodeToString([]byte("definitely not a png"))}
	_, err = broken.Decode()
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Nil(t, broken.Image())
	assert.True(t, broken.Decoded())
}

func TestNewPhotoFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 3))
	photo, err := NewPhotoFromImage(img)
	require.NoError(t, err)
	assert.Equal(t, MimeTypePNG, photo.Type)
	decoded := photo.Image()
	require.NotNil(t, decoded)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
