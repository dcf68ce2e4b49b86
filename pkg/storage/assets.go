package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxImageSize caps uploads at 5 MiB.
const MaxImageSize = 5 * 1024 * 1024

// DefaultFolder is where product images land unless the caller says
// otherwise.
const DefaultFolder = "products"

// allowedImageTypes is the fixed MIME allow-list for image uploads.
var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

var (
	ErrInvalidType = errors.New("invalid file type, only JPEG, PNG, WebP and GIF are allowed")
	ErrTooLarge    = errors.New("file size must be less than 5MB")
	ErrInvalidPath = errors.New("invalid storage URL format")
)

// Upload describes one file to be stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Asset identifies a stored blob by its public URL and bucket-relative path.
type Asset struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// UploadResult reports a best-effort batch upload. Successes keep the input
// order of the files that made it; failures are reported alongside, never
// instead.
type UploadResult struct {
	Assets []Asset  `json:"assets"`
	Errors []string `json:"errors"`
}

// AssetStore validates, uploads and deletes image blobs in an object
// storage bucket.
type AssetStore struct {
	objects ObjectStore
}

// NewAssetStore wraps an object store with the image upload policy.
func NewAssetStore(objects ObjectStore) *AssetStore {
	return &AssetStore{objects: objects}
}

// Validate rejects disallowed MIME types and oversized files before any
// network call is made.
func Validate(u Upload) error {
	if _, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(u.ContentType))]; !ok {
		return ErrInvalidType
	}
	if u.Size > MaxImageSize {
		return ErrTooLarge
	}
	return nil
}

// UploadOne stores a single validated file under folder and returns its
// public URL and path. Provider errors come back wrapped, never as panics.
func (s *AssetStore) UploadOne(ctx context.Context, u Upload, folder string) (Asset, error) {
	if err := Validate(u); err != nil {
		return Asset{}, err
	}
	if strings.TrimSpace(folder) == "" {
		folder = DefaultFolder
	}
	key := folder + "/" + generateFilename(u.Filename)
	if err := s.objects.Put(ctx, key, u.Body, u.Size, u.ContentType); err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", u.Filename, err)
	}
	return Asset{URL: s.objects.PublicURL(key), Path: key}, nil
}

// UploadMany uploads the files concurrently and independently. One file's
// failure never cancels another's in-flight upload; the result mixes
// successes and failures.
func (s *AssetStore) UploadMany(ctx context.Context, uploads []Upload, folder string) UploadResult {
	type outcome struct {
		asset Asset
		err   error
	}
	outcomes := make([]outcome, len(uploads))
	var g errgroup.Group
	for i, u := range uploads {
		g.Go(func() error {
			asset, err := s.UploadOne(ctx, u, folder)
			outcomes[i] = outcome{asset: asset, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var result UploadResult
	for i, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("file %d: %v", i+1, o.err))
			continue
		}
		result.Assets = append(result.Assets, o.asset)
	}
	return result
}

// DeleteOne removes a single blob identified by a public URL or a bare
// storage path.
func (s *AssetStore) DeleteOne(ctx context.Context, urlOrPath string) error {
	return s.DeleteMany(ctx, []string{urlOrPath})
}

// DeleteMany normalizes every entry to a storage path and removes them in
// one batched provider call.
func (s *AssetStore) DeleteMany(ctx context.Context, urlsOrPaths []string) error {
	paths := make([]string, 0, len(urlsOrPaths))
	for _, entry := range urlsOrPaths {
		path, err := s.pathFrom(entry)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil
	}
	if err := s.objects.Remove(ctx, paths); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	return nil
}

// pathFrom recovers the bucket-relative path from a public URL by locating
// the bucket-name segment. A URL that does not contain it is malformed;
// failing here beats silently deleting the wrong object.
func (s *AssetStore) pathFrom(urlOrPath string) (string, error) {
	if !strings.HasPrefix(urlOrPath, "http") {
		return urlOrPath, nil
	}
	marker := s.objects.Bucket() + "/"
	_, after, found := strings.Cut(urlOrPath, marker)
	if !found || after == "" {
		return "", ErrInvalidPath
	}
	return after, nil
}

// generateFilename builds a collision-resistant object name: timestamp plus
// random suffix, keeping the original extension.
func generateFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), hex.EncodeToString(buf), ext)
}
