package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormatting(t *testing.T) {
	e := New(NotFound, "session missing")
	assert.Equal(t, "[NOT_FOUND] session missing", e.Error())

	e2 := Wrap(Backend, errors.New("connection refused"), "vector store unavailable").WithComponent("VectorStore")
	assert.Equal(t, "[VectorStore:BACKEND] vector store unavailable: connection refused", e2.Error())
}

func TestKindOf(t *testing.T) {
	err := New(RateLimited, "slow down")
	assert.Equal(t, RateLimited, KindOf(err))
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestIsMatchesByKind(t *testing.T) {
	err := Wrap(Timeout, errors.New("deadline exceeded"), "embed call timed out")
	assert.True(t, Is(err, Timeout))
	assert.False(t, Is(err, Backend))
	assert.True(t, errors.Is(err, New(Timeout, "")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(Backend, cause, "sqlite open failed")
	assert.ErrorIs(t, err, cause)
}
