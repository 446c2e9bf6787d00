package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pricecompare/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archiveBucket = "import-archive"

// ArchiveService stores accepted import batches in object storage so they
// can be replayed or audited later. Archiving is best effort: the import
// has already committed by the time a batch is archived.
type ArchiveService interface {
	ArchiveBatch(ctx context.Context, batch *models.ImportBatch) error
	EnsureBucketExists(ctx context.Context) error
	Ping(ctx context.Context) error
}

type minioArchive struct {
	client *minio.Client
}

func NewMinioArchiveService(endpoint, accessKey, secretKey string, useSSL bool) (ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioArchive{client: client}, nil
}

type archivedBatch struct {
	UpdateDate time.Time       `json:"updateDate"`
	Items      []archivedEntry `json:"items"`
}

type archivedEntry struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Type     models.NodeKind `json:"type"`
	ParentID *uuid.UUID      `json:"parentId"`
	Price    *int64          `json:"price"`
}

func (m *minioArchive) ArchiveBatch(ctx context.Context, batch *models.ImportBatch) error {
	archived := archivedBatch{UpdateDate: batch.UpdateDate}
	for _, item := range batch.Items {
		archived.Items = append(archived.Items, archivedEntry{
			ID:       item.ID,
			Name:     item.Name,
			Type:     item.Kind,
			ParentID: item.ParentID,
			Price:    item.Price,
		})
	}

	data, err := json.Marshal(archived)
	if err != nil {
		return err
	}

	objectName := fmt.Sprintf("%s-%s.json", batch.UpdateDate.UTC().Format("20060102T150405"), uuid.New())
	_, err = m.client.PutObject(ctx, archiveBucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (m *minioArchive) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, archiveBucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, archiveBucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *minioArchive) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, archiveBucket)
	return err
}
