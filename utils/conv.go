package utils

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/transform"

	"github.com/mogaika/scene_importer/config"
)

// DecodeName returns s unchanged when it is valid utf8, otherwise treats it
// as text in the configured legacy charmap. Trailing zero bytes are cut.
func DecodeName(s string) string {
	bs := []byte(s)
	if n := bytes.IndexByte(bs, 0); n >= 0 {
		bs = bs[:n]
	}
	if utf8.Valid(bs) {
		return string(bs)
	}
	out, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs)
	if err != nil {
		return string(bs)
	}
	return string(out)
}
