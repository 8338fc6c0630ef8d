package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/budget-etl/internal/gcs"
	"github.com/dvloznov/budget-etl/internal/logger"
)

// Archiver copies the artifacts of one batch to
// gs://<bucket>/<prefix>/<batch_id>/<file name>.
type Archiver struct {
	Storage gcs.StorageService
	Bucket  string
	Prefix  string
}

// NewArchiver creates an archiver for bucket under prefix.
func NewArchiver(storage gcs.StorageService, bucket, prefix string) *Archiver {
	return &Archiver{Storage: storage, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

// ObjectName returns the object a local file is archived under.
func (a *Archiver) ObjectName(batchID, filePath string) string {
	return path.Join(a.Prefix, batchID, filepath.Base(filePath))
}

// Archive uploads every file and returns the resulting URIs in input order.
// It stops at the first failed upload.
func (a *Archiver) Archive(ctx context.Context, batchID string, files []string) ([]string, error) {
	log := logger.FromContext(ctx)

	uris := make([]string, 0, len(files))
	for _, f := range files {
		object := a.ObjectName(batchID, f)
		if err := a.Storage.UploadFile(ctx, a.Bucket, object, f); err != nil {
			return uris, fmt.Errorf("Archive: upload %s: %w", f, err)
		}
		uri := gcs.URI(a.Bucket, object)
		log.Debug().Str("file", f).Str("uri", uri).Msg("Archived artifact")
		uris = append(uris, uri)
	}

	log.Info().Str("batch_id", batchID).Int("files", len(uris)).Msg("Batch artifacts archived")
	return uris, nil
}
