package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"marathon", ModeMarathon, true},
		{"MARATHON", ModeMarathon, true},
		{" Sprint40 ", ModeSprint40, true},
		{"modernFreeze", ModeModernFreeze, true},
		{"tetris", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalMode(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
