package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("PresignEndpoint", func(t *testing.T) {
		assert.Equal(t, "http://minio:9000", Config{Endpoint: "http://minio:9000"}.PresignEndpoint())
		assert.Equal(t, "http://localhost:9000",
			Config{Endpoint: "http://minio:9000", ExternalEndpoint: "http://localhost:9000"}.PresignEndpoint())
	})
}

// Presigning is a local computation, so this runs without a live store.
func TestS3Backend_PresignGetUsesExternalEndpoint(t *testing.T) {
	backend, err := New(context.Background(), Config{
		Region:           "us-east-1",
		Bucket:           "statements",
		AccessKeyID:      "minioadmin",
		SecretAccessKey:  "minioadmin",
		Endpoint:         "http://minio:9000",
		ExternalEndpoint: "http://localhost:9000",
		UsePathStyle:     true,
	})
	require.NoError(t, err)

	raw, err := backend.PresignGet(context.Background(),
		"customer/c1/account/a1/2025-12/id.pdf", 5*time.Minute, "application/pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/statements/customer/c1/account/a1/2025-12/id.pdf", u.Path)

	q := u.Query()
	assert.Equal(t, "application/pdf", q.Get("response-content-type"))
	assert.Equal(t, "300", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}

// Integration test against MinIO or S3. Set S3_TEST_ENDPOINT (and optionally
// S3_TEST_ACCESS_KEY / S3_TEST_SECRET_KEY) to run it.
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping S3 integration test: S3_TEST_ENDPOINT not set")
	}
	accessKey := getenv("S3_TEST_ACCESS_KEY", "minioadmin")
	secretKey := getenv("S3_TEST_SECRET_KEY", "minioadmin")

	ctx := context.Background()
	backend, err := New(ctx, Config{
		Region:                 "us-east-1",
		Bucket:                 "statements-test",
		AccessKeyID:            accessKey,
		SecretAccessKey:        secretKey,
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	prefix := "it/" + uuid.NewString() + "/"
	key := prefix + "statement.pdf"
	payload := []byte("%PDF-1.7 integration")

	require.NoError(t, backend.Put(ctx, key, "application/pdf", bytes.NewReader(payload), int64(len(payload))))

	rc, err := backend.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	objects, err := backend.ListObjects(ctx, prefix)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Key)
	assert.WithinDuration(t, time.Now(), objects[0].LastModified, time.Hour)

	link, err := backend.PresignGet(ctx, key, time.Minute, "application/pdf")
	require.NoError(t, err)
	resp, err := http.Get(link)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf"))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Get(ctx, key)
	assert.ErrorIs(t, err, simplestatement.ErrObjectNotFound)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
