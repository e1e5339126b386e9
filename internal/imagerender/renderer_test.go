package imagerender

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePager struct {
	dpi   float64
	width int
	fail  bool
}

func (f *fakePager) Render(page int, dpi float64) (*image.RGBA, error) {
	if f.fail {
		return nil, errors.New("render failed")
	}
	f.dpi = dpi
	return solid(int(dpi/10), int(dpi/5)), nil
}

func (f *fakePager) RenderWidth(page, width int) (*image.RGBA, error) {
	f.width = width
	return solid(width, width*2), nil
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	return img
}

func TestRenderPageAtDPI(t *testing.T) {
	fp := &fakePager{}
	p, err := RenderPage(fp, 0, Options{DPI: 150, Format: PNG})
	require.NoError(t, err)

	assert.Equal(t, 150.0, fp.dpi)
	assert.Equal(t, 15, p.Width)
	assert.Equal(t, 30, p.Height)
	w, h, err := Dimensions(p.Data)
	require.NoError(t, err)
	assert.Equal(t, [2]int{15, 30}, [2]int{w, h})
}

func TestRenderPageAtWidthJPEG(t *testing.T) {
	fp := &fakePager{}
	p, err := RenderPage(fp, 2, Options{Width: 150, Format: JPEG, Quality: 70})
	require.NoError(t, err)

	assert.Equal(t, 150, fp.width)
	assert.True(t, strings.HasPrefix(p.DataURI(), "data:image/jpeg;base64,"))
}

func TestRenderPageError(t *testing.T) {
	_, err := RenderPage(&fakePager{fail: true}, 0, Options{DPI: 72})
	assert.Error(t, err)
}

func TestEncodeGray(t *testing.T) {
	data, err := Encode(solid(4, 4), PNG, 0, ColorGray)
	require.NoError(t, err)
	img, _, err := image.Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	_, isGray := img.(*image.Gray)
	assert.True(t, isGray)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": PNG, "PNG": PNG, "jpg": JPEG, "JPEG": JPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("gif")
	assert.Error(t, err)
	assert.Equal(t, "jpg", JPEG.Extension())
}
