package loader

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_InvalidatesOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeFile(t, "jeps.csv", sampleCSV)
	c := NewCache(Options{})
	ctx := context.Background()

	_, err := c.Get(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats().Entries)

	changed := make(chan string, 4)
	w, err := NewWatcher(c, path, 20*time.Millisecond, func(p string) { changed <- p })
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("Number;Status\n9;Draft\n"), 0o644))

	select {
	case p := <-changed:
		assert.Equal(t, w.path, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	assert.Equal(t, 0, c.Stats().Entries)

	tbl, err := c.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	w.Stop()
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeFile(t, "jeps.csv", sampleCSV)
	c := NewCache(Options{})

	changed := make(chan string, 1)
	w, err := NewWatcher(c, path, 10*time.Millisecond, func(p string) { changed <- p })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path+".bak", []byte("x"), 0o644))

	select {
	case <-changed:
		t.Fatal("unexpected notification")
	case <-time.After(200 * time.Millisecond):
	}
	w.Stop()
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeFile(t, "jeps.csv", sampleCSV)
	ctx, cancel := context.WithCancel(context.Background())

	w, err := NewWatcher(NewCache(Options{}), path, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))

	cancel()
	w.Stop()
	w.Stop()
}
