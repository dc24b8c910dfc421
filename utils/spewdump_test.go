package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDump(t *testing.T) {
	type node struct {
		Name   string
		Parent *node
	}
	root := &node{Name: "root"}
	child := &node{Name: "child", Parent: root}

	var buf bytes.Buffer
	Dump(&buf, child)
	assert.Contains(t, buf.String(), `Name: (string) (len=5) "child"`)
	assert.Contains(t, buf.String(), `"root"`)
	assert.NotContains(t, buf.String(), "0x")
	assert.Equal(t, buf.String(), SDump(child))
}
