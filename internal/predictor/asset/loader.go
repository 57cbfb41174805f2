// Package asset resolves the predictor's model and scaler files, either
// from the local filesystem or from S3, dispatched by URI scheme so a
// deployment can point PredictorConfig at either without code changes.
package asset

import (
	"context"
	"os"
	"strings"
)

// Loader fetches the raw bytes of a named asset.
type Loader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// Resolve picks a Loader for path based on its scheme: s3:// dispatches to
// an S3 loader, anything else is read from the local filesystem.
func Resolve(ctx context.Context, path string) (Loader, error) {
	if strings.HasPrefix(path, "s3://") {
		return NewS3Loader(ctx)
	}
	return LocalLoader{}, nil
}

// LocalLoader reads assets from the local filesystem.
type LocalLoader struct{}

func (LocalLoader) Load(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}
