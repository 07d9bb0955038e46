package session

import (
	"testing"

	"llmsecrets/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func TestManagerAcquireReusesSession(t *testing.T) {
	m := NewManager(nil)

	a, created := m.Acquire("t1")
	assert.True(t, created)
	b, created := m.Acquire("t1")
	assert.False(t, created)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())

	m.Delete("t1")
	m.Delete("t1")
	assert.Zero(t, m.Len())

	c, created := m.Acquire("t1")
	assert.True(t, created)
	assert.NotSame(t, a, c)
}

func TestManagerBusy(t *testing.T) {
	m := NewManager(nil)
	a, _ := m.Acquire("b")
	b, _ := m.Acquire("a")
	m.Acquire("c")

	assert.Empty(t, m.Busy())
	a.Begin()
	b.Begin()
	assert.Equal(t, []domain.TargetID{"a", "b"}, m.Busy())

	b.End()
	assert.Equal(t, []domain.TargetID{"b"}, m.Busy())
}
