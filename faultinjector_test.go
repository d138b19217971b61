package cansil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func dialTestBus(addr string) func() (Bus, error) {
	return func() (Bus, error) {
		return NewVirtualBus(addr), nil
	}
}

func TestInjectorUnknownScenario(t *testing.T) {
	inj := NewInjector(dialTestBus("127.0.0.1:18901"), nil, 300*time.Second)
	_, err := inj.Run("does_not_exist", "alice")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestInjectorRejectsWhenLockedByOther(t *testing.T) {
	inj := NewInjector(dialTestBus("127.0.0.1:18902"), nil, 300*time.Second)
	inj.AcquireLock("alice")
	_, err := inj.Run("normal_drive", "bob")
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestInjectorAllowsHolder(t *testing.T) {
	inj := NewInjector(dialTestBus("127.0.0.1:18903"), nil, 300*time.Second)
	inj.AcquireLock("alice")
	_, err := inj.Run("normal_drive", "alice")
	assert.NoError(t, err)
}

func TestScenariosListsAllNames(t *testing.T) {
	names := Scenarios()
	assert.Len(t, names, 9)
	assert.Contains(t, names, "normal_drive")
	assert.Contains(t, names, "estop")
}
