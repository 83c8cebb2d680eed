package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 500 * time.Microsecond, want: "500µs"},
		{in: 250 * time.Millisecond, want: "250ms"},
		{in: 1500 * time.Millisecond, want: "1.5s"},
		{in: 90 * time.Second, want: "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Duration(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Animati...", Truncate("Animation widget not visible", 10))
	assert.Equal(t, "Sõõ...", Truncate("Sõõõõõõõ", 6))
	assert.Equal(t, "abcdef", Truncate("abcdef", 2))
}
