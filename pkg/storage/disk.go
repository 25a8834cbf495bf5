// Package storage is the filesystem abstraction behind catalogue exports.
//
// Two drivers are available:
//
//   - "local": local filesystem (default)
//   - "s3": S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Usage:
//
//	disk, err := storage.Open(ctx, "s3")
//	err = disk.Put(ctx, "exports/products.json", data)
//	url := disk.URL("exports/products.json")
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shashiranjanraj/catalog/config"
)

// ErrNotExist is returned by Get for a missing path on any driver.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the driver interface.
type Disk interface {
	// Put writes content to path, creating parent directories as needed.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Files lists files under directory, recursively, as slash paths.
	Files(ctx context.Context, directory string) ([]string, error)

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error

	// URL returns the public URL for path.
	URL(path string) string
}

// Open builds the named disk from configuration. An empty name selects
// STORAGE_DISK.
func Open(ctx context.Context, name string) (Disk, error) {
	if name == "" {
		name = config.StorageDefault()
	}
	switch strings.ToLower(name) {
	case "local":
		return NewLocalDisk(config.StorageLocalRoot(), config.Get("STORAGE_URL", "http://localhost:8080/storage"))
	case "s3":
		return NewS3Disk(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.Get("S3_URL", ""),
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}
