package browser

import (
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	s := New(Config{Headless: true})

	assert.Equal(t, DefaultWaitTimeout, s.cfg.WaitTimeout)
	assert.Equal(t, DefaultSettleDelay, s.cfg.SettleDelay)

	s = New(Config{WaitTimeout: time.Second, SettleDelay: 10 * time.Millisecond})
	assert.Equal(t, time.Second, s.cfg.WaitTimeout)
	assert.Equal(t, 10*time.Millisecond, s.cfg.SettleDelay)
}

func TestSession_CloseWithoutStart(t *testing.T) {
	s := New(Config{})
	assert.NotPanics(t, s.Close)
	assert.NotPanics(t, s.Close)
}

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	assert.Len(t, allocatorOptions(Config{Headless: true}), base+3)
	assert.Len(t, allocatorOptions(Config{Headless: true, ExecPath: "/usr/bin/chromium"}), base+4)
}

func TestMarkHiddenScript(t *testing.T) {
	script, err := markHiddenScript(`tr[data-x="1"]`, "data-wako-hidden")
	require.NoError(t, err)

	assert.Contains(t, script, `("tr[data-x=\"1\"]", "data-wako-hidden")`)
	assert.Contains(t, script, "getClientRects")
}
