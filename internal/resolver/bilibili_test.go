package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullQNMap() []qnDesc {
	return []qnDesc{
		{qn: 10000, desc: "原画"},
		{qn: 400, desc: "高清"},
		{qn: 250, desc: "标清"},
	}
}

func TestMatchQNFullMap(t *testing.T) {
	qn, _ := matchQN(fullQNMap(), "原画")
	assert.Equal(t, 10000, qn)

	qn, _ = matchQN(fullQNMap(), "高清")
	assert.Equal(t, 400, qn)

	qn, _ = matchQN(fullQNMap(), "标清")
	assert.Equal(t, 250, qn)
}

func TestMatchQNHighDefFallsBackToNextBelowMax(t *testing.T) {
	qnMap := []qnDesc{
		{qn: 10000, desc: "原画"},
		{qn: 250, desc: "标清"},
	}
	qn, _ := matchQN(qnMap, "高清")
	assert.Equal(t, 250, qn)
}

func TestMatchQNEmptyMap(t *testing.T) {
	qn, desc := matchQN(nil, "原画")
	assert.Equal(t, 0, qn)
	assert.Empty(t, desc)
}
