package cansil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControlLockAcquireRelease(t *testing.T) {
	lock := NewControlLock(time.Minute)
	remaining, ok := lock.Acquire("alice")
	assert.True(t, ok)
	assert.Equal(t, time.Minute, remaining)
	assert.True(t, lock.Allows("alice"))
	assert.False(t, lock.Allows("bob"))
}

func TestControlLockConflict(t *testing.T) {
	lock := NewControlLock(time.Minute)
	lock.Acquire("alice")
	_, ok := lock.Acquire("bob")
	assert.False(t, ok)
}

func TestControlLockReleaseWrongClient(t *testing.T) {
	lock := NewControlLock(time.Minute)
	lock.Acquire("alice")
	assert.False(t, lock.Release("bob"))
	assert.True(t, lock.Release("alice"))
}

func TestControlLockExpiresAfterTTL(t *testing.T) {
	lock := NewControlLock(10 * time.Millisecond)
	lock.Acquire("alice")
	time.Sleep(20 * time.Millisecond)
	assert.True(t, lock.Allows("bob"))
}
