package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/noah-isme/certdesk-go-api/pkg/cloudinary"
)

// ErrStoredFileMissing indicates the stored PDF no longer exists.
var ErrStoredFileMissing = errors.New("stored file missing")

// StoredFile locates a PDF held by a FileStorage.
type StoredFile struct {
	Key string
	URL string
}

// FileStorage abstracts where generated PDFs live.
type FileStorage interface {
	Save(ctx context.Context, name string, data []byte) (StoredFile, error)
	Open(ctx context.Context, file StoredFile) ([]byte, error)
	// Remove reports whether something was deleted.
	Remove(ctx context.Context, file StoredFile) (bool, error)
}

type localStorage struct {
	dir string
}

// NewLocalStorage keeps PDFs in dir, one file per certificate kind and student.
func NewLocalStorage(dir string) FileStorage {
	return &localStorage{dir: dir}
}

func (s *localStorage) Save(ctx context.Context, name string, data []byte) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	name = filepath.Base(name)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create pdf directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("write pdf: %w", err)
	}
	return StoredFile{Key: name}, nil
}

func (s *localStorage) Open(ctx context.Context, file StoredFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(file.Key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStoredFileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

func (s *localStorage) Remove(ctx context.Context, file StoredFile) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(file.Key)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove pdf: %w", err)
	}
	return true, nil
}

// CloudinaryClient is the subset of the Cloudinary service used for PDFs.
type CloudinaryClient interface {
	Upload(ctx context.Context, name string, data []byte) (cloudinary.Asset, error)
	Fetch(ctx context.Context, asset cloudinary.Asset) ([]byte, error)
	Destroy(ctx context.Context, asset cloudinary.Asset) (bool, error)
}

type cloudinaryStorage struct {
	client CloudinaryClient
}

// NewCloudinaryStorage stores PDFs as Cloudinary assets.
func NewCloudinaryStorage(client CloudinaryClient) FileStorage {
	return &cloudinaryStorage{client: client}
}

func (s *cloudinaryStorage) Save(ctx context.Context, name string, data []byte) (StoredFile, error) {
	asset, err := s.client.Upload(ctx, name, data)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Key: asset.PublicID, URL: asset.URL}, nil
}

func (s *cloudinaryStorage) Open(ctx context.Context, file StoredFile) ([]byte, error) {
	data, err := s.client.Fetch(ctx, cloudinary.Asset{PublicID: file.Key, URL: file.URL})
	if errors.Is(err, cloudinary.ErrAssetNotFound) {
		return nil, ErrStoredFileMissing
	}
	return data, err
}

func (s *cloudinaryStorage) Remove(ctx context.Context, file StoredFile) (bool, error) {
	return s.client.Destroy(ctx, cloudinary.Asset{PublicID: file.Key, URL: file.URL})
}
