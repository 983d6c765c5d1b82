package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplayGuardKeepsEveryMessageInWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newReplayGuard(time.Minute)

	captured := []byte("enter|erd1alice|10||1700000000")
	assert.True(t, g.accept(captured, now.Unix(), now))
	for i := 0; i < 10000; i++ {
		assert.True(t, g.accept([]byte(fmt.Sprintf("enter|erd1mallory|%d||1700000000", i)), now.Unix(), now))
	}
	assert.False(t, g.accept(captured, now.Unix(), now.Add(59*time.Second)))

	later := now.Add(2 * time.Minute)
	assert.True(t, g.accept([]byte("withdraw|erd1alice|||1700000120"), later.Unix(), later))
	assert.Equal(t, 1, g.len())
}
