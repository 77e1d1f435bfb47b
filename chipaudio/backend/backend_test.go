package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, 1.0, Normalize(Config{}).Gain)
	assert.Equal(t, 0.5, Normalize(Config{Gain: 0.5}).Gain)
}

func TestFrames(t *testing.T) {
	tests := []struct {
		d    time.Duration
		rate int
		want int
	}{
		{0, 44100, 0},
		{time.Second, 44100, 44100},
		{1500 * time.Millisecond, 8000, 12000},
		{-time.Second, 8000, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{Duration: tt.d}.Frames(tt.rate))
	}
}
