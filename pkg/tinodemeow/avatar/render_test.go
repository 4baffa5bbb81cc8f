package avatar_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
)

func TestRender_Placeholder(t *testing.T) {
	visual := avatar.Resolve("alice", nil, true)
	img := visual.Render(64)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	corner := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	assert.Equal(t, color.RGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xff}, corner)

	var hasForeground bool
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !hasForeground; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)) != corner {
				hasForeground = true
				break
			}
		}
	}
	assert.True(t, hasForeground, "initial should be drawn on the background")
}

func TestRender_PhotoIsCroppedAndScaled(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 30, 10))
	for x := 0; x < 30; x++ {
		for y := 0; y < 10; y++ {
			src.Set(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}
	visual := avatar.Visual{Kind: avatar.KindPhoto, Image: src}
	img := visual.Render(20)
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, color.RGBAModel.Convert(img.At(10, 10)))
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, avatar.Resolve("usrX", nil, false).EncodePNG(&buf, 32))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())
}
