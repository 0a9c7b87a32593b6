package jsworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerEvalsPreloadedFunction(t *testing.T) {
	w := New("Mozilla/5.0 test-agent", []Script{
		{Name: "adder.js", Source: "function add(a, b) { return a + b; }"},
	})
	require.NoError(t, w.WaitReady())

	got, err := w.EvalString("add(2, 3)")
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestWorkerExposesBrowserShim(t *testing.T) {
	w := New("custom-ua/1.0", nil)
	require.NoError(t, w.WaitReady())

	got, err := w.EvalString("navigator.userAgent")
	require.NoError(t, err)
	assert.Equal(t, "custom-ua/1.0", got)

	got, err = w.EvalString("window === self")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestWorkerPoisonsOnBootstrapError(t *testing.T) {
	w := New("ua", []Script{
		{Name: "broken.js", Source: "this is not valid javascript {{{"},
	})

	err := w.WaitReady()
	require.Error(t, err)

	// the same poisoned error must be replayed to every later caller
	_, evalErr := w.EvalString("1 + 1")
	require.Error(t, evalErr)

	err2 := w.WaitReady()
	require.Error(t, err2)
	assert.Equal(t, err.Error(), err2.Error())
}
