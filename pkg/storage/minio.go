// Package storage exports published indicator snapshots to MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"blgu-assess-go/internal/config"
	"blgu-assess-go/pkg/log"
)

// MinioClient is the shared client set up by InitMinIO.
var MinioClient *minio.Client

// InitMinIO connects to MinIO and makes sure the bucket exists.
func InitMinIO(cfg config.MinIOConfig) {
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("failed to create MinIO client", err)
	}

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("failed to check MinIO bucket", err)
	}
	if !exists {
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("failed to create MinIO bucket", err)
		}
		log.Infof("bucket '%s' created", cfg.BucketName)
	}
	log.Info("MinIO client ready")
}

// SnapshotObjectName is where version v of a draft's snapshot is exported.
func SnapshotObjectName(draftID uint, version int64) string {
	return fmt.Sprintf("drafts/%d/v%d.json", draftID, version)
}

// SnapshotExporter writes snapshot JSON to a bucket and hands out
// time-limited download links.
type SnapshotExporter struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewSnapshotExporter returns an exporter for bucket. A zero presignTTL
// defaults to one hour.
func NewSnapshotExporter(client *minio.Client, bucket string, presignTTL time.Duration) *SnapshotExporter {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &SnapshotExporter{client: client, bucket: bucket, presignTTL: presignTTL}
}

// ExportSnapshot uploads data under objectName and returns a presigned URL.
func (e *SnapshotExporter) ExportSnapshot(ctx context.Context, objectName string, data []byte) (string, error) {
	_, err := e.client.PutObject(ctx, e.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", objectName, err)
	}
	return e.PresignedURL(ctx, objectName)
}

// PresignedURL returns a download link for an exported object.
func (e *SnapshotExporter) PresignedURL(ctx context.Context, objectName string) (string, error) {
	u, err := e.client.PresignedGetObject(ctx, e.bucket, objectName, e.presignTTL, nil)
	if err != nil {
		log.Errorf("failed to presign %s: %v", objectName, err)
		return "", err
	}
	return u.String(), nil
}
