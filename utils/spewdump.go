package utils

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.MaxDepth = 6
}

func Dump(w io.Writer, a ...interface{}) {
	spewConfig.Fdump(w, a...)
}

func SDump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}
