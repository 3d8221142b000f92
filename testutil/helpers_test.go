package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssertJSONEqual(t *testing.T) {
	AssertJSONEqual(t, `{"type":6,"a":[1,2]}`, `{ "a": [1, 2], "type": 6 }`)
}

func TestWaitFor(t *testing.T) {
	start := time.Now()
	assert.True(t, WaitFor(func() bool { return time.Since(start) > 20*time.Millisecond }, time.Second))
	assert.False(t, WaitFor(func() bool { return false }, 30*time.Millisecond))
}

func TestWaitForChannel(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	v, ok := WaitForChannel(ch, time.Second)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = WaitForChannel(ch, 20*time.Millisecond)
	assert.False(t, ok)
}

func TestCollect(t *testing.T) {
	ch := make(chan string, 3)
	ch <- "a"
	ch <- "b"
	close(ch)
	assert.Equal(t, []string{"a", "b"}, Collect(t, ch, time.Second))
}
