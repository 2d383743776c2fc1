package cmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	m := New[string, int](DefaultShardCount, Hash32)
	assert.True(t, m.Set("a", 1))
	assert.False(t, m.Set("a", 2)) // already present, not overwritten

	v, wait := m.Get("a")
	assert.Nil(t, wait)
	assert.Equal(t, 1, v)
}

func TestGetWaits(t *testing.T) {
	m := New[string, int](DefaultShardCount, Hash32)
	_, wait := m.Get("b")
	assert.NotNil(t, wait)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-wait
		v, w := m.Get("b")
		assert.Nil(t, w)
		assert.Equal(t, 42, v)
	}()
	m.Set("b", 42)
	wg.Wait()
}

func TestValues(t *testing.T) {
	m := New[string, int](DefaultShardCount, Hash32)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Get("c") // leaves a pending wait, shouldn't show up in Values
	vals := m.Values()
	assert.ElementsMatch(t, []int{1, 2}, vals)
}
