package capsfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_FileAlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, Write(path, fakeCaps{fixed: true, s: testCaps}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	caps, err := Wait(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, testCaps, caps)
}

func TestWait_FileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		// Empty first, then the line: Wait must not return the empty file
		_ = os.WriteFile(path, nil, 0o644)
		time.Sleep(50 * time.Millisecond)
		_ = Write(path, fakeCaps{fixed: true, s: testCaps})
	}()

	caps, err := Wait(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, testCaps, caps)
}

func TestWait_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Wait(ctx, path)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWait_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", DefaultPath)

	_, err := Wait(context.Background(), path)
	assert.Error(t, err)
}
