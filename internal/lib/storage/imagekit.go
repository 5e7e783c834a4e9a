package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	imageKitUploadBase = "https://upload.imagekit.io"
	imageKitAPIBase    = "https://api.imagekit.io"
	imageKitFolder     = "/autoprintx/documents/"
)

// ImageKit talks to the ImageKit REST API with the private key as basic
// auth username.
type ImageKit struct {
	client     *resty.Client
	privateKey string
	uploadBase string
	apiBase    string
	folder     string
}

type imageKitUploadResponse struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

type imageKitError struct {
	Message string `json:"message"`
}

func NewImageKit(cfg config.ImageKitConfig) *ImageKit {
	uploadBase, apiBase := imageKitUploadBase, imageKitAPIBase
	if cfg.APIBaseURL != "" {
		uploadBase = strings.TrimRight(cfg.APIBaseURL, "/")
		apiBase = uploadBase
	}

	folder := cfg.Folder
	if folder == "" {
		folder = imageKitFolder
	}

	client := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", "autoprintx/1.0")

	return &ImageKit{
		client:     client,
		privateKey: cfg.PrivateKey,
		uploadBase: uploadBase,
		apiBase:    apiBase,
		folder:     folder,
	}
}

func (k *ImageKit) Upload(ctx context.Context, data []byte, filename, contentType string) (*Object, error) {
	var (
		result  imageKitUploadResponse
		failure imageKitError
	)

	resp, err := k.client.R().
		SetContext(ctx).
		SetBasicAuth(k.privateKey, "").
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetFormData(map[string]string{
			"fileName":          filename,
			"folder":            k.folder,
			"useUniqueFileName": "true",
		}).
		SetResult(&result).
		SetError(&failure).
		Post(k.uploadBase + "/api/v1/files/upload")
	if err != nil {
		return nil, errors.Wrapf(err, "imagekit upload %s", filename)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("imagekit upload %s: status %d: %s", filename, resp.StatusCode(), failure.Message)
	}

	name := result.Name
	if name == "" {
		name = filename
	}
	return &Object{URL: result.URL, FileID: result.FileID, Name: name}, nil
}

func (k *ImageKit) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return nil
	}

	resp, err := k.client.R().
		SetContext(ctx).
		SetBasicAuth(k.privateKey, "").
		Delete(k.apiBase + "/v1/files/" + fileID)
	if err != nil {
		return errors.Wrapf(err, "imagekit delete %s", fileID)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return fmt.Errorf("imagekit delete %s: status %d", fileID, resp.StatusCode())
	}
	return nil
}
