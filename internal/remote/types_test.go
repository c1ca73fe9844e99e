package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScore_DropsOversizedReplay(t *testing.T) {
	big := strings.Repeat("x", MaxReplaySize+1)

	s := NewScore(1000, "marathon", PlatformDesktop, "keyboard", "", big, ScoreCounters{Lines: 10})

	assert.Empty(t, s.Replay, "oversized replay must be dropped")
	assert.Equal(t, int64(1000), s.SortValue)
	assert.Equal(t, 10, s.Lines)
}

func TestNewScore_KeepsReplayAtLimit(t *testing.T) {
	replay := strings.Repeat("x", MaxReplaySize)

	s := NewScore(1, "marathon", PlatformDesktop, "touch", "", replay, ScoreCounters{})

	assert.Len(t, s.Replay, MaxReplaySize)
}

func TestSameMatch(t *testing.T) {
	assert.True(t, SameMatch("6BA7B810-9DAD-11D1-80B4-00C04FD430C8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.True(t, SameMatch("m1", "M1"))
	assert.False(t, SameMatch("m1", "m2"))
}

func TestParseServerAddress(t *testing.T) {
	tests := []struct {
		name, address string
		port          int
		secure        bool
		want          ServerAddress
	}{
		{"", "ws://play.example.org/room", 0, false, ServerAddress{"play.example.org/room", "ws://play.example.org/room"}},
		{"", "play.example.org", 0, false, ServerAddress{"play.example.org", "ws://play.example.org:80/"}},
		{"", "play.example.org", 0, true, ServerAddress{"play.example.org", "wss://play.example.org:443/"}},
		{"EU", "play.example.org:9000/lobby", 0, true, ServerAddress{"EU", "wss://play.example.org:9000/lobby"}},
		{"", "10.0.0.1", 8080, false, ServerAddress{"10.0.0.1", "ws://10.0.0.1:8080/"}},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseServerAddress(tt.name, tt.address, tt.port, tt.secure))
		})
	}
}
