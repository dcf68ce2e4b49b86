package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// fakeObjectStore keeps objects in a map and can fail selected keys.
type fakeObjectStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	failPut bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{bucket: "product-images", objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.failPut {
		return errors.New("provider unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Remove(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://storage.example.com/" + f.bucket + "/" + key
}

func (f *fakeObjectStore) Bucket() string { return f.bucket }

func pngUpload(name string, size int64) Upload {
	return Upload{
		Filename:    name,
		ContentType: "image/png",
		Size:        size,
		Body:        bytes.NewReader(make([]byte, int(size))),
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(pngUpload("a.png", 1<<20)); err != nil {
		t.Fatalf("1 MiB PNG should pass, got %v", err)
	}
	big := Upload{Filename: "big.jpg", ContentType: "image/jpeg", Size: 6 << 20}
	if err := Validate(big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("6 MiB JPEG expected ErrTooLarge, got %v", err)
	}
	bmp := Upload{Filename: "pic.bmp", ContentType: "image/bmp", Size: 100}
	if err := Validate(bmp); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("BMP expected ErrInvalidType, got %v", err)
	}
}

func TestUploadOneStoresUnderFolder(t *testing.T) {
	objects := newFakeObjectStore()
	assets := NewAssetStore(objects)

	asset, err := assets.UploadOne(context.Background(), pngUpload("lamp.png", 1024), "products")
	if err != nil {
		t.Fatalf("upload one: %v", err)
	}
	if !strings.HasPrefix(asset.Path, "products/") {
		t.Fatalf("path = %q, want products/ prefix", asset.Path)
	}
	if !strings.HasSuffix(asset.Path, ".png") {
		t.Fatalf("path = %q, want original extension kept", asset.Path)
	}
	if !strings.Contains(asset.URL, objects.Bucket()+"/"+asset.Path) {
		t.Fatalf("URL %q should contain bucket segment and path", asset.URL)
	}
	if _, ok := objects.objects[asset.Path]; !ok {
		t.Fatalf("object %q not stored", asset.Path)
	}
}

func TestUploadOneValidatesBeforeNetwork(t *testing.T) {
	objects := newFakeObjectStore()
	objects.failPut = true
	assets := NewAssetStore(objects)

	// Invalid type must fail on validation, not on the (failing) provider.
	_, err := assets.UploadOne(context.Background(), Upload{Filename: "x.bmp", ContentType: "image/bmp", Size: 10}, "")
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestUploadManyMixedResult(t *testing.T) {
	objects := newFakeObjectStore()
	assets := NewAssetStore(objects)

	uploads := []Upload{
		pngUpload("a.png", 100),
		pngUpload("b.png", 100),
		pngUpload("c.png", 100),
		{Filename: "d.bmp", ContentType: "image/bmp", Size: 100},
	}
	result := assets.UploadMany(context.Background(), uploads, "products")
	if len(result.Assets) != 3 {
		t.Fatalf("assets = %d, want 3", len(result.Assets))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0], "file 4") {
		t.Fatalf("error %q should name the failing file", result.Errors[0])
	}
}

func TestUploadManyGeneratesUniqueNames(t *testing.T) {
	objects := newFakeObjectStore()
	assets := NewAssetStore(objects)

	uploads := make([]Upload, 8)
	for i := range uploads {
		uploads[i] = pngUpload(fmt.Sprintf("img%d.png", i), 64)
	}
	result := assets.UploadMany(context.Background(), uploads, "gallery")
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	seen := make(map[string]struct{})
	for _, asset := range result.Assets {
		if _, dup := seen[asset.Path]; dup {
			t.Fatalf("duplicate object path %q", asset.Path)
		}
		seen[asset.Path] = struct{}{}
	}
}

func TestDeleteAcceptsURLOrPath(t *testing.T) {
	objects := newFakeObjectStore()
	assets := NewAssetStore(objects)

	a, err := assets.UploadOne(context.Background(), pngUpload("one.png", 10), "products")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	b, err := assets.UploadOne(context.Background(), pngUpload("two.png", 10), "products")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := assets.DeleteOne(context.Background(), a.URL); err != nil {
		t.Fatalf("delete by URL: %v", err)
	}
	if err := assets.DeleteOne(context.Background(), b.Path); err != nil {
		t.Fatalf("delete by path: %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("expected empty bucket, %d objects remain", len(objects.objects))
	}
}

func TestDeleteMalformedURL(t *testing.T) {
	assets := NewAssetStore(newFakeObjectStore())
	err := assets.DeleteOne(context.Background(), "https://storage.example.com/other-bucket/products/x.png")
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}
