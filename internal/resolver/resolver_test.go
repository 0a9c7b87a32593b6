package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferStreamTypeTable(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"hls with query", "https://cdn.example.com/live/room.m3u8?sign=abc", "hls"},
		{"flv with query", "https://cdn.example.com/live.flv?sign=abc", "flv"},
		{"neither", "https://cdn.example.com/live/room.mp4", "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(InferStreamType(tc.url)))
		})
	}
}
