package exception

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestBatchError_FormatsAndUnwraps(t *testing.T) {
	err := NewBatchError("reader", "fetch failed", errSentinel, true)

	assert.Equal(t, "[reader] fetch failed: sentinel", err.Error())
	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, err.IsRetryable())
	assert.NotEmpty(t, err.StackTrace)
}

func TestNewBatchErrorf_IsNotRetryable(t *testing.T) {
	err := NewBatchErrorf("cases", nil, "column %q missing", "Lat")

	assert.Equal(t, `[cases] column "Lat" missing`, err.Error())
	assert.False(t, err.IsRetryable())
}

func TestIsTemporary(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", NewBatchError("reader", "server error", nil, true))
	assert.True(t, IsTemporary(wrapped))
	assert.True(t, IsBatchError(wrapped))

	assert.False(t, IsTemporary(NewBatchError("reader", "bad request", nil, false)))
	assert.True(t, IsTemporary(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, IsTemporary(context.Canceled))
	assert.False(t, IsTemporary(errors.New("plain")))
	assert.False(t, IsTemporary(nil))
}
