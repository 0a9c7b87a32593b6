package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDouyinLiveID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare live url", "https://live.douyin.com/123", "123"},
		{"follow path with query", "https://www.douyin.com/follow/live/456?tab=x", "456"},
		{"web_rid query param", "abc?web_rid=789", "789"},
		{"empty input", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDouyinLiveID(tc.input))
		})
	}
}
