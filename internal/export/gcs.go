package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

const uploadTimeout = 2 * time.Minute

// Uploader pushes a rendered export to a storage bucket. The interface
// exists so callers can be tested without touching the network.
type Uploader interface {
	Upload(ctx context.Context, bucketName, objectName string, data []byte) error
}

// GCSUploader writes objects to Google Cloud Storage. It assumes
// Application Default Credentials are configured.
type GCSUploader struct{}

func NewGCSUploader() *GCSUploader {
	return &GCSUploader{}
}

// Upload writes data to gs://bucketName/objectName.
func (u *GCSUploader) Upload(ctx context.Context, bucketName, objectName string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s/%s: %w", bucketName, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

// BackupObjectName derives a dated object name for a ledger backup, e.g.
// "ledger/2025-10-02-transactions.csv".
func BackupObjectName(now time.Time) string {
	return fmt.Sprintf("ledger/%s-transactions.csv", now.Format("2006-01-02"))
}

// Backup renders transactions to CSV and uploads them in one step.
func Backup(ctx context.Context, u Uploader, bucketName string, txs []*domain.Transaction, now time.Time) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs); err != nil {
		return "", err
	}

	object := BackupObjectName(now)
	if err := u.Upload(ctx, bucketName, object, buf.Bytes()); err != nil {
		return "", fmt.Errorf("backup to bucket %s: %w", bucketName, err)
	}
	return object, nil
}

var _ Uploader = (*GCSUploader)(nil)
