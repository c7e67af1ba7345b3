package simplestatement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const spoolBufferSize = 8 * 1024

// SpooledFile is an exclusively owned temporary copy of an upload together
// with its SHA-256 digest. Close removes the file; it is safe to call more
// than once.
type SpooledFile struct {
	path   string
	SHA256 string
	Size   int64

	closeOnce sync.Once
	closeErr  error
}

// Spool copies r to a temporary file in dir (os.TempDir when empty) while
// hashing it in the same pass. The context is checked between chunks. On any
// error the temporary file is removed before returning.
func Spool(ctx context.Context, r io.Reader, dir string) (*SpooledFile, error) {
	f, err := os.CreateTemp(dir, "statement-upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	spooled := &SpooledFile{path: f.Name()}
	hasher := sha256.New()
	buf := make([]byte, spoolBufferSize)

	size, copyErr := copyWithContext(ctx, io.MultiWriter(f, hasher), r, buf)
	closeErr := f.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(spooled.path)
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}

	spooled.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	spooled.Size = size
	return spooled, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// Open returns a fresh reader over the spooled bytes. The caller closes it.
func (s *SpooledFile) Open() (*os.File, error) {
	return os.Open(s.path)
}

// Path returns the location of the spool file.
func (s *SpooledFile) Path() string {
	return s.path
}

// Close removes the spool file.
func (s *SpooledFile) Close() error {
	s.closeOnce.Do(func() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
