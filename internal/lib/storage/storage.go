// Package storage puts customer uploads and shop images somewhere public.
//
// ImageKit is the default provider; S3 (or any S3-compatible endpoint) is
// the alternative. Either way callers get back a public URL and a provider
// file id, which is what orders store and what Delete takes.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/google/uuid"
)

// Object is a stored file.
type Object struct {
	URL    string `json:"url"`
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

type Provider interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (*Object, error)
	Delete(ctx context.Context, fileID string) error
}

const requestTimeout = 60 * time.Second

// New returns the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "imagekit":
		return NewImageKit(cfg.ImageKit), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// objectKey prefixes the base name with a random id so two customers
// uploading "document.pdf" never collide.
func objectKey(prefix, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	key := uuid.NewString()[:8] + "_" + name
	if prefix == "" {
		return key
	}
	return strings.Trim(prefix, "/") + "/" + key
}

func detectContentType(data []byte, contentType string) string {
	if contentType != "" {
		return contentType
	}
	return http.DetectContentType(data[:min(len(data), 512)])
}
