package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformPNG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWhitenBackgroundFeatheredRejectsBadThresholds(t *testing.T) {
	input := uniformPNG(t, 4, color.RGBA{R: 250, G: 250, B: 250, A: 255})

	_, err := WhitenBackgroundFeathered(input, 240, 200, 0.6)
	require.Error(t, err)

	_, err = WhitenBackgroundFeathered(input, 200, 240, 1.5)
	require.Error(t, err)
}

func TestWhitenBackgroundFeatheredPushesOffWhiteEdgesToWhite(t *testing.T) {
	// off-white studio background, brighter than the upper threshold
	input := uniformPNG(t, 10, color.RGBA{R: 250, G: 250, B: 250, A: 255})

	out, err := WhitenBackgroundFeathered(input, WhitenLowerThreshold, WhitenUpperThreshold, WhitenCenterProtection)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// corners sit outside the protected center and must end up pure white
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	// the protected center keeps the original off-white pixel
	cr, cg, cb, _ := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(250*257), cr)
	assert.Equal(t, uint32(250*257), cg)
	assert.Equal(t, uint32(250*257), cb)
}
