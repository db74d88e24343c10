package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

// TestS3Archive_Integration uploads and downloads an artifact through MinIO
func TestS3Archive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := S3Config{
		Bucket:    "nanosynth-test-" + uuid.New().String()[:8],
		Endpoint:  endpoint,
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}
	require.NoError(t, EnsureBucket(ctx, cfg))
	require.NoError(t, EnsureBucket(ctx, cfg), "second call must find the existing bucket")

	archive, err := NewS3Archive(ctx, cfg)
	require.NoError(t, err)

	body := []byte("Wavelength,Absorbance\n520,0.42\n")
	require.NoError(t, archive.Upload(ctx, "runs/test/absorbance.csv", "text/csv", body))

	got, err := archive.Download(ctx, "runs/test/absorbance.csv")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	url, err := archive.GenerateDownloadURL(ctx, "runs/test/absorbance.csv")
	require.NoError(t, err)
	assert.Contains(t, url, cfg.Bucket)

	assert.Error(t, archive.Upload(ctx, "runs/test/audio.wav", "audio/wav", body))
}
