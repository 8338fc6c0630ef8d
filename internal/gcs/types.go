package gcs

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Scheme prefixes every object URI handled by this package.
const Scheme = "gs://"

// StorageService is the object storage used for remote inputs and for the
// artifact archive. Implementations must be safe to reuse across calls.
type StorageService interface {
	// UploadFile copies a local file to bucket/object.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// Fetch downloads the bytes behind a gs://bucket/object URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// IsURI reports whether p names an object rather than a local file.
func IsURI(p string) bool {
	return strings.HasPrefix(p, Scheme)
}

// ParseURI splits gs://bucket/path/to/object into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, Scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// BaseName returns the last path element of a URI or local path,
// e.g. "gs://bucket/folder/gastos.csv" gives "gastos.csv".
func BaseName(p string) string {
	if IsURI(p) {
		if _, object, err := ParseURI(p); err == nil {
			return path.Base(object)
		}
		return strings.TrimPrefix(p, Scheme)
	}
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// URI joins a bucket and an object name into a gs:// URI.
func URI(bucket, object string) string {
	return Scheme + bucket + "/" + object
}
