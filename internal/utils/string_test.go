package utils

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{",,", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.raw), "raw %q", tt.raw)
	}
}

func TestSliceToString(t *testing.T) {
	assert.Equal(t, "----- relays -----\n[0]: ws://a/ws\n[1]: ws://b/ws\n--------------------\n",
		SliceToString("relays", []string{"ws://a/ws", "ws://b/ws"}))
	assert.Contains(t, SliceToString("relays", []string{}), "(Empty)")
}

func TestSetLogOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := pterm.DefaultLogger.Writer
	SetLogOutput(&buf)
	defer SetLogOutput(prev)

	LogWarning("[Test] %d relays down", 2)
	assert.Contains(t, buf.String(), "[Test] 2 relays down")
}
