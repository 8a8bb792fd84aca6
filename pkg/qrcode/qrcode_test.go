package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzkit/marzkit/pkg/qrcode"
)

func TestPNG(t *testing.T) {
	t.Parallel()

	t.Run("generates decodable image", func(t *testing.T) {
		t.Parallel()

		img, err := qrcode.PNG("https://panel.example.com/sub/user_42_1", 128)
		require.NoError(t, err)

		decoded, err := png.Decode(bytes.NewReader(img))
		require.NoError(t, err)
		assert.Equal(t, 128, decoded.Bounds().Dx())
	})

	t.Run("zero size falls back to default", func(t *testing.T) {
		t.Parallel()

		img, err := qrcode.PNG("https://panel.example.com/sub/user_42_1", 0)
		require.NoError(t, err)

		decoded, err := png.Decode(bytes.NewReader(img))
		require.NoError(t, err)
		assert.Equal(t, qrcode.DefaultSize, decoded.Bounds().Dx())
	})

	t.Run("empty content rejected", func(t *testing.T) {
		t.Parallel()

		_, err := qrcode.PNG("   ", 128)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.DataURI("https://panel.example.com/sub/user_42_1", 64)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)

	_, err = qrcode.DataURI("", 64)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
}
