package memory_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/presigned"
	"github.com/tendant/simple-statement/pkg/simplestatement/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	signer := presigned.New(presigned.WithSecretKey("secret"))
	backend := memory.New(signer)

	var _ simplestatement.ObjectStore = backend
	var _ simplestatement.ObjectLister = backend
	var _ simplestatement.ObjectDeleter = backend

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, "customer/c1/a.pdf", "application/pdf", strings.NewReader("hello"), 5))

		rc, err := backend.Get(ctx, "customer/c1/a.pdf")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		ct, ok := backend.ContentType("customer/c1/a.pdf")
		assert.True(t, ok)
		assert.Equal(t, "application/pdf", ct)
		assert.Equal(t, 1, backend.PutCount())
	})

	t.Run("Put rejects size mismatch", func(t *testing.T) {
		err := backend.Put(ctx, "bad.pdf", "application/pdf", strings.NewReader("abc"), 10)
		assert.Error(t, err)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := backend.Get(ctx, "missing")
		assert.ErrorIs(t, err, simplestatement.ErrObjectNotFound)
	})

	t.Run("ListObjects", func(t *testing.T) {
		stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		backend.SetClock(func() time.Time { return stamp })
		defer backend.SetClock(time.Now)

		require.NoError(t, backend.Put(ctx, "customer/c2/b.pdf", "application/pdf", strings.NewReader("b"), 1))
		objects, err := backend.ListObjects(ctx, "customer/")
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.Equal(t, "customer/c1/a.pdf", objects[0].Key)
		assert.Equal(t, "customer/c2/b.pdf", objects[1].Key)
		assert.Equal(t, stamp, objects[1].LastModified)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, "customer/c2/b.pdf"))
		assert.ErrorIs(t, backend.Delete(ctx, "customer/c2/b.pdf"), simplestatement.ErrObjectNotFound)
	})

	t.Run("PresignGet round trip", func(t *testing.T) {
		url, err := backend.PresignGet(ctx, "customer/c1/a.pdf", time.Minute, "application/pdf")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		presigned.NewHandler(signer, backend).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello", rec.Body.String())
	})
}

func TestMemoryBackendWithoutSigner(t *testing.T) {
	backend := memory.New(nil)
	_, err := backend.PresignGet(context.Background(), "k", time.Minute, "application/pdf")
	assert.Error(t, err)
}
