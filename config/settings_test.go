package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettingsKeepsDefaults(t *testing.T) {
	s, err := DecodeSettings(strings.NewReader("read_lights: false\nmaximum_size: 2.5\n"))
	require.NoError(t, err)

	want := DefaultImportSettings()
	want.ReadLights = false
	want.MaximumSize = 2.5
	assert.Equal(t, want, s)
}

func TestDecodeSettingsEmpty(t *testing.T) {
	s, err := DecodeSettings(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultImportSettings(), s)
}

func TestDecodeSettingsInvalid(t *testing.T) {
	for _, src := range []string{
		"coordinate_system: x_up\n",
		"unit_scaling: true\nmaximum_size: 0\n",
		"read_lights: [1, 2\n",
	} {
		_, err := DecodeSettings(strings.NewReader(src))
		assert.Error(t, err, src)
	}
}

func TestEncodeSettings(t *testing.T) {
	var buf bytes.Buffer
	s := DefaultImportSettings()
	s.Triangulate = true
	require.NoError(t, EncodeSettings(&buf, s))
	assert.Contains(t, buf.String(), "triangulate: true")

	back, err := DecodeSettings(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestSetEncoding(t *testing.T) {
	defer SetEncoding(GetEncoding().String())

	require.NoError(t, SetEncoding("Windows 1251"))
	assert.Equal(t, "Windows 1251", GetEncoding().String())

	err := SetEncoding("no such charmap")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
	assert.Contains(t, err.Error(), "Windows 1252")
	// failed switch keeps the active charmap
	assert.Equal(t, "Windows 1251", GetEncoding().String())
	assert.Contains(t, ListEncodings(), "Windows 1252")
}

func TestFindEncodingFoldsNames(t *testing.T) {
	for _, name := range []string{"Windows 1251", "windows-1251", " WINDOWS_1251 ", "windows1251"} {
		cm, err := FindEncoding(name)
		require.NoError(t, err, name)
		assert.Equal(t, "Windows 1251", cm.String(), name)
	}
	cm, err := FindEncoding("iso-8859-5")
	require.NoError(t, err)
	assert.Equal(t, "ISO 8859-5", cm.String())

	_, err = FindEncoding("")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}
