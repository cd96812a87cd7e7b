package infra

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/annolab/annolab-platform/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient stores dataset images, model weights and training artifacts.
// Keys mirror the rel_path columns on dataset items and model weights.
type MinioClient struct {
	Client *minio.Client
	Bucket string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO connection failed: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Minio.Bucket)
	if err != nil {
		log.Fatalf("MinIO bucket check failed: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Minio.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Fatalf("MinIO bucket create failed: %v", err)
		}
	}

	log.Println("Connected to MinIO:", cfg.Minio.Endpoint)

	return &MinioClient{Client: client, Bucket: cfg.Minio.Bucket}
}

// FetchToFile downloads an object to a local path, creating parent dirs.
func (m *MinioClient) FetchToFile(ctx context.Context, key string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return m.Client.FGetObject(ctx, m.Bucket, key, dst, minio.GetObjectOptions{})
}

// UploadFile stores a local file under the given object key.
func (m *MinioClient) UploadFile(ctx context.Context, src string, key string) error {
	_, err := m.Client.FPutObject(ctx, m.Bucket, key, src, minio.PutObjectOptions{})
	return err
}

// Exists reports whether an object is present under the key.
func (m *MinioClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Client.StatObject(ctx, m.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
