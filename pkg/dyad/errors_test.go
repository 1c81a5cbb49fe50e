package dyad

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("nil is OK", func(t *testing.T) {
		assert.Equal(t, OK, CodeOf(nil))
	})

	t.Run("coded error", func(t *testing.T) {
		err := codedf(BadCommit, "commit refused")
		assert.Equal(t, BadCommit, CodeOf(err))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", coded(BadLookup, errors.New("inner")))
		assert.Equal(t, BadLookup, CodeOf(err))
	})

	t.Run("plain error is SYSFAIL", func(t *testing.T) {
		assert.Equal(t, SysFail, CodeOf(errors.New("plain")))
	})
}

func TestIsCode(t *testing.T) {
	err := coded(RPCFinished, errors.New("stream ended"))
	assert.True(t, IsCode(err, RPCFinished))
	assert.False(t, IsCode(err, BadFetch))
	assert.False(t, IsCode(nil, RPCFinished))
	assert.True(t, IsCode(nil, OK))
}

func TestErrorFormatting(t *testing.T) {
	t.Run("with cause", func(t *testing.T) {
		err := coded(BadFileIO, errors.New("disk full"))
		assert.Equal(t, "BADFIO: disk full", err.Error())
	})

	t.Run("bare code", func(t *testing.T) {
		err := coded(NoCtx, nil)
		assert.Equal(t, "NOCTX", err.Error())
	})

	t.Run("unknown code", func(t *testing.T) {
		assert.Equal(t, "Code(-42)", Code(-42).String())
	})
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := coded(TransportFail, cause)
	assert.ErrorIs(t, err, cause)
}
