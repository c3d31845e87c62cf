package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	// Arrange
	r := NewRegistry()
	c := &Client{id: "conn-1"}

	// Act & Assert
	r.Add(c)
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("conn-1")
	require.True(t, ok)
	assert.Same(t, c, got)

	removed, ok := r.Remove("conn-1")
	require.True(t, ok)
	assert.Same(t, c, removed)
	assert.Equal(t, 0, r.Count())

	_, ok = r.Get("conn-1")
	assert.False(t, ok)
}

func TestRegistry_RemoveIsExactlyOnce(t *testing.T) {
	// Arrange: 同一连接并发注销,只有一次 Remove 能成功
	r := NewRegistry()
	r.Add(&Client{id: "conn-1"})

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	// Act
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Remove("conn-1"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	// Assert
	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "清理逻辑应恰好执行一次")
}

func TestRegistry_RemoveUnknownConnection(t *testing.T) {
	// Arrange
	r := NewRegistry()

	// Act
	c, ok := r.Remove("ghost")

	// Assert
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestRegistry_AddOverwritesSameID(t *testing.T) {
	// Arrange: 相同 ID 重复登记以最新的为准
	r := NewRegistry()
	first := &Client{id: "conn-1"}
	second := &Client{id: "conn-1"}

	// Act
	r.Add(first)
	r.Add(second)

	// Assert
	assert.Equal(t, 1, r.Count())
	got, _ := r.Get("conn-1")
	assert.Same(t, second, got)
}
