package cancel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCancelIsIdempotent(t *testing.T) {
	m := NewManager()
	tok := m.Begin()

	assert.False(t, tok.Cancelled())
	tok.Cancel()
	tok.Cancel() // second call must not panic or double-close the context
	assert.True(t, tok.Cancelled())
}

func TestCancelCurrentIsNoopWithoutJob(t *testing.T) {
	m := NewManager()
	assert.NotPanics(t, func() { m.CancelCurrent() })
}

func TestCancelCurrentCancelsActiveToken(t *testing.T) {
	m := NewManager()
	tok := m.Begin()
	m.CancelCurrent()
	assert.True(t, tok.Cancelled())
}

func TestEndClearsOnlyMatchingToken(t *testing.T) {
	m := NewManager()
	first := m.Begin()
	m.End(first)

	second := m.Begin()
	m.CancelCurrent()
	assert.True(t, second.Cancelled())
	assert.False(t, first.Cancelled())
}

func TestBeginReplacesPreviousToken(t *testing.T) {
	m := NewManager()
	first := m.Begin()
	second := m.Begin()

	m.CancelCurrent()
	assert.True(t, second.Cancelled())
	assert.False(t, first.Cancelled())
}
