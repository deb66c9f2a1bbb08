package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/noah-isme/certdesk-go-api/internal/records"
)

// WorkbookRepository persists the student table in a single spreadsheet file.
type WorkbookRepository interface {
	Load(ctx context.Context) (*records.Store, error)
	Save(ctx context.Context, store *records.Store) error
	Path() string
}

type workbookRepository struct {
	path   string
	format records.Format
}

// NewWorkbookRepository binds a repository to path; the extension selects xlsx or csv.
func NewWorkbookRepository(path string) (WorkbookRepository, error) {
	format, err := records.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return &workbookRepository{path: path, format: format}, nil
}

func (r *workbookRepository) Path() string {
	return r.path
}

// Load returns an empty store when the workbook does not exist yet.
func (r *workbookRepository) Load(ctx context.Context) (*records.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return records.NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", r.path, err)
	}

	return records.LoadBytes(data, r.format)
}

// Save replaces the workbook through a sibling temp file so a failed write
// leaves the previous contents intact.
func (r *workbookRepository) Save(ctx context.Context, store *records.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := store.Save(&buf, r.format); err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp workbook: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace workbook %s: %w", r.path, err)
	}
	committed = true
	return nil
}
