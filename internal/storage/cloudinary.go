package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/go-resty/resty/v2"
)

// CloudinaryStore uploads files as raw resources and reads them back over HTTPS.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	http   *resty.Client
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryStore{
		cld:    cld,
		http:   resty.New().SetTimeout(30 * time.Second),
		folder: folder,
	}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	fileBytes, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	uploadResult, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     storedName(name),
		ResourceType: "raw",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if uploadResult.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", uploadResult.Error.Message)
	}

	return uploadResult.SecureURL, nil
}

func (s *CloudinaryStore) Read(ctx context.Context, locator string) ([]byte, error) {
	resp, err := s.http.R().SetContext(ctx).Get(locator)
	if err != nil {
		return nil, fmt.Errorf("cloudinary fetch: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("cloudinary fetch status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, locator string) error {
	publicID, err := publicIDFromURL(locator)
	if err != nil {
		return err
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	// "not found" means it is already gone
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: %s", res.Result)
	}
	return nil
}

// publicIDFromURL turns .../raw/upload/v123/folder/name.txt into folder/name.txt.
// Raw resources keep their extension in the public id.
func publicIDFromURL(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid cloudinary url: %w", err)
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", fmt.Errorf("invalid cloudinary url %q", locator)
	}
	if first, after, found := strings.Cut(rest, "/"); found && len(first) > 1 && first[0] == 'v' && isDigits(first[1:]) {
		rest = after
	}
	return rest, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
