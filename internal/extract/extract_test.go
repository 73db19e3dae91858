package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextKnownExtensions(t *testing.T) {
	for _, name := range []string{"notes.txt", "data.json", "table.csv", "README.md"} {
		got, err := Text(name, []byte("hello"))
		require.NoError(t, err, name)
		assert.Equal(t, "hello", got)
	}
}

func TestTextUnknownExtensionFallsBackToUTF8(t *testing.T) {
	got, err := Text("weird.xyz", []byte("still text"))
	require.NoError(t, err)
	assert.Equal(t, "still text", got)
}

func TestTextRejectsBinary(t *testing.T) {
	_, err := Text("blob.txt", []byte{0xff, 0xfe, 0x00, 0x80})
	require.Error(t, err)
}

func TestRegisterOverridesDecoder(t *testing.T) {
	Register(".rot", func(data []byte) (string, error) { return "decoded", nil })
	got, err := Text("secret.rot", []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, "decoded", got)
}
