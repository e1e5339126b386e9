package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireBlocksAtCapacity(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "LibreOffice")
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, "libreoffice")
	require.NoError(t, err)
	assert.Equal(t, 2, l.InUse("libreoffice"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(short, "libreoffice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r1()
	assert.Equal(t, 1, l.InUse("libreoffice"))
	r3, err := l.Acquire(ctx, "libreoffice")
	require.NoError(t, err)
	r2()
	r3()
	assert.Equal(t, 0, l.InUse("libreoffice"))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(0)
	ra, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer ra()
	rb, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	rb()
}
