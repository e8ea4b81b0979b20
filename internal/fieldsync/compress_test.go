package fieldsync

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestCompressPhoto_DownscalesLargeJPEG(t *testing.T) {
	data := encodeJPEG(t, 400, 100)

	out, contentType, err := CompressPhoto(data, "image/jpeg", 200, 80)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestCompressPhoto_PortraitKeepsAspect(t *testing.T) {
	data := encodeJPEG(t, 100, 400)

	out, _, err := CompressPhoto(data, "image/jpeg", 200, 80)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())
}

func TestCompressPhoto_SmallJPEGUntouched(t *testing.T) {
	data := encodeJPEG(t, 64, 64)

	out, contentType, err := CompressPhoto(data, "image/jpeg", 2048, 80)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, data, out)
}

func TestCompressPhoto_PNGReencodesAsJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 300))))

	out, contentType, err := CompressPhoto(buf.Bytes(), "image/png", 2048, 80)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestCompressPhoto_UnknownFormatPassesThrough(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}

	out, contentType, err := CompressPhoto(data, "image/heic", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/heic", contentType)
	assert.Equal(t, data, out)
}

func TestCompressPhoto_GarbageJPEGFails(t *testing.T) {
	_, _, err := CompressPhoto([]byte("not an image"), "image/jpeg", 0, 0)
	assert.Error(t, err)
}
