package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var ErrUnknownEncoding = errors.New("Unknown name encoding")

// charmap used to decode node names of legacy 8 bit sources
var nameCharmap *charmap.Charmap = charmap.Windows1252

// encodingKey folds case and separators, so "windows-1251", "Windows_1251"
// and "Windows 1251" name the same charmap.
func encodingKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// FindEncoding looks up a single byte charmap by name.
func FindEncoding(name string) (*charmap.Charmap, error) {
	key := encodingKey(name)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && encodingKey(cm.String()) == key {
			return cm, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownEncoding, "%q is not one of [%s]", name, strings.Join(ListEncodings(), ", "))
}

// SetEncoding switches the charmap of node names. On failure the
// current charmap stays active.
func SetEncoding(name string) error {
	cm, err := FindEncoding(name)
	if err != nil {
		return err
	}
	nameCharmap = cm
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	return nameCharmap
}
