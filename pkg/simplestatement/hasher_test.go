package simplestatement_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

func TestSpoolComputesDigestAndSize(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("%PDF-1.7 statement line\n"), 2000) // spans several 8 KiB chunks

	spooled, err := simplestatement.Spool(context.Background(), bytes.NewReader(payload), dir)
	require.NoError(t, err)
	defer spooled.Close()

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), spooled.SHA256)
	assert.Equal(t, int64(len(payload)), spooled.Size)

	f, err := spooled.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSpoolCloseRemovesFile(t *testing.T) {
	dir := t.TempDir()

	spooled, err := simplestatement.Spool(context.Background(), bytes.NewReader([]byte("abc")), dir)
	require.NoError(t, err)

	_, err = os.Stat(spooled.Path())
	require.NoError(t, err)

	require.NoError(t, spooled.Close())
	require.NoError(t, spooled.Close())

	_, err = os.Stat(spooled.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type failingReader struct {
	n int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		r.n--
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestSpoolCleansUpOnReadError(t *testing.T) {
	dir := t.TempDir()

	_, err := simplestatement.Spool(context.Background(), &failingReader{n: 2}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpoolCleansUpOnCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := simplestatement.Spool(ctx, bytes.NewReader([]byte("data")), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
