package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GenerateABogus relies on the hard-coded generateRandomStr seeds (per
// spec's own recommendation to keep them deterministic), so the same
// (query, UA, now_ms) input must always produce the same token.
func TestGenerateABogusIsDeterministic(t *testing.T) {
	query := "device_platform=webapp&aid=6383&channel=channel_pc_web"
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	nowMs := int64(1702204169000)

	a := GenerateABogus(query, ua, nowMs)
	b := GenerateABogus(query, ua, nowMs)

	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
}

func TestGenerateABogusVariesWithQuery(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	nowMs := int64(1702204169000)

	a := GenerateABogus("foo=1", ua, nowMs)
	b := GenerateABogus("foo=2", ua, nowMs)

	assert.NotEqual(t, a, b)
}
