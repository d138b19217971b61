package ringbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBufferAppendAndAll(t *testing.T) {
	b := New[int](5, 3)
	base := time.Now()
	for i := 0; i < 3; i++ {
		b.Append(base.Add(time.Duration(i)*time.Millisecond), i)
	}
	all := b.All()
	assert.Len(t, all, 3)
	assert.Equal(t, 0, all[0].Value)
	assert.Equal(t, 2, all[2].Value)
}

func TestBufferTrimsOnOverflow(t *testing.T) {
	b := New[int](5, 3)
	base := time.Now()
	for i := 0; i < 6; i++ {
		b.Append(base.Add(time.Duration(i)*time.Millisecond), i)
	}
	assert.Equal(t, 3, b.Len())
	all := b.All()
	assert.Equal(t, 3, all[0].Value)
	assert.Equal(t, 5, all[2].Value)
}

func TestBufferSince(t *testing.T) {
	b := New[string](100, 50)
	base := time.Now()
	b.Append(base, "a")
	b.Append(base.Add(10*time.Millisecond), "b")
	cutoff := base.Add(5 * time.Millisecond)
	recent := b.Since(cutoff)
	assert.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].Value)
}

func TestBufferLatest(t *testing.T) {
	b := New[int](10, 5)
	_, ok := b.Latest()
	assert.False(t, ok)
	b.Append(time.Now(), 42)
	last, ok := b.Latest()
	assert.True(t, ok)
	assert.Equal(t, 42, last.Value)
}

func TestBufferReset(t *testing.T) {
	b := New[int](10, 5)
	b.Append(time.Now(), 1)
	b.Reset()
	assert.Equal(t, 0, b.Len())
}
