package streamerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOffline(t *testing.T) {
	assert.Equal(t, Offline, Classify("房间未开播"))
	assert.Equal(t, Offline, Classify("Room is not live right now"))
	assert.Equal(t, Offline, Classify("error: 102"))
}

func TestClassifyNetwork(t *testing.T) {
	assert.Equal(t, Network, Classify("dial tcp: connection refused"))
	assert.Equal(t, Network, Classify("request timeout after 30s"))
}

func TestClassifyApiFallback(t *testing.T) {
	assert.Equal(t, Api, Classify("unexpected response shape from upstream"))
}

func TestKindOfUnwrapsTypedError(t *testing.T) {
	wrapped := Wrap(Network, errors.New("boom"), "network: boom")
	assert.Equal(t, Network, KindOf(wrapped))
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestErrorMessagePrefersExplicitMessage(t *testing.T) {
	e := New(Api, "api: bad status")
	assert.Equal(t, "api: bad status", e.Error())
}
