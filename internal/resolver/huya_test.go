package resolver

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHuyaCDNPriorityOrdering(t *testing.T) {
	cdns := []string{"hs", "tx", "al"}
	sort.SliceStable(cdns, func(i, j int) bool {
		return huyaCDNPriority(cdns[i]) < huyaCDNPriority(cdns[j])
	})
	assert.Equal(t, []string{"tx", "al", "hs"}, cdns)
}

func TestNormalizeHuyaLine(t *testing.T) {
	assert.Equal(t, "tx", normalizeHuyaLine(" TX "))
	assert.Equal(t, "al", normalizeHuyaLine("AL"))
	assert.Equal(t, "", normalizeHuyaLine("bogus"))
}

func TestEnforceHuyaHTTPS(t *testing.T) {
	assert.Equal(t, "https://example.com/x.flv", enforceHuyaHTTPS("http://example.com/x.flv"))
	assert.Equal(t, "https://example.com/x.flv", enforceHuyaHTTPS("https://example.com/x.flv"))
}
