package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"civicportal/internal/config"
	"civicportal/internal/models"
)

// Dossier is the snapshot of a suggestion taken when it is forwarded to lawmakers.
type Dossier struct {
	Suggestion  models.Suggestion `json:"suggestion"`
	ForwardedBy string            `json:"forwardedBy,omitempty"`
	ForwardedAt time.Time         `json:"forwardedAt"`
	Recipient   string            `json:"recipient"`
}

// DossierArchive writes forwarded-suggestion dossiers to an S3-compatible bucket.
type DossierArchive struct {
	client *minio.Client
	bucket string
	region string
}

func NewDossierArchive(cfg config.StorageConfig) (*DossierArchive, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &DossierArchive{
		client: client,
		bucket: cfg.BucketDossiers,
		region: cfg.Region,
	}, nil
}

func (a *DossierArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Archive stores d and returns its object key.
func (a *DossierArchive) Archive(ctx context.Context, d Dossier) (string, error) {
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode dossier: %w", err)
	}

	key := ObjectKey(d)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"suggestion-id": d.Suggestion.ID,
			"category":      d.Suggestion.Category,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put dossier %s: %w", key, err)
	}
	return key, nil
}

func ObjectKey(d Dossier) string {
	return fmt.Sprintf("dossiers/%s/%s.json", d.Suggestion.ID, d.ForwardedAt.UTC().Format("20060102T150405Z"))
}
