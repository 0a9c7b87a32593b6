package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDouyuQuality(t *testing.T) {
	assert.Equal(t, "原画", canonicalDouyuQuality("原画"))
	assert.Equal(t, "高清", canonicalDouyuQuality("超高清"))
	assert.Equal(t, "标清", canonicalDouyuQuality("标清"))
	assert.Equal(t, "origin-tag", canonicalDouyuQuality("origin-tag"))
}

func TestResolveDouyuRateOriginPicksZeroRate(t *testing.T) {
	variants := []douyuRateVariant{
		{name: "原画", rate: 0},
		{name: "高清", rate: 3, bit: 4000},
	}
	assert.Equal(t, 0, resolveDouyuRate("原画", variants))
}

func TestResolveDouyuRateEmptyVariants(t *testing.T) {
	assert.Equal(t, -1, resolveDouyuRate("原画", nil))
}

func TestSelectDouyuCDNPrefersRequestedWhenAvailable(t *testing.T) {
	available := []string{"ws-h5", "tct-h5"}
	assert.Equal(t, "tct-h5", selectDouyuCDN("TCT-H5", available))
	assert.Equal(t, "ws-h5", selectDouyuCDN("", available))
	assert.Equal(t, "ws-h5", selectDouyuCDN("unknown-cdn", nil))
}

func TestNormalizeDouyuCDNDefaultsToWSH5(t *testing.T) {
	assert.Equal(t, "tct-h5", normalizeDouyuCDN("TCT-H5"))
	assert.Equal(t, "ws-h5", normalizeDouyuCDN("nonsense"))
}
