package irrecoverable

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func TestException(t *testing.T) {
	err := NewException(fmt.Errorf("wrapped: %w", errSentinel))
	assert.True(t, IsException(err))
	assert.True(t, errors.Is(err, errSentinel))
	assert.False(t, IsException(errSentinel))

	wrapped := fmt.Errorf("outer: %w", NewExceptionf("broken invariant %d", 1))
	assert.True(t, IsException(wrapped))
	assert.Equal(t, "outer: broken invariant 1", wrapped.Error())
}

func TestThrow(t *testing.T) {
	ctx, cancel, errCh := WithSignallerAndCancel(context.Background())
	defer cancel()

	thrown := errors.New("fatal")
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx.Throw(thrown)
		t.Error("Throw must terminate the goroutine")
	}()
	<-done

	err := <-errCh
	require.ErrorIs(t, err, thrown)
}
