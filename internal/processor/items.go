package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rezonia/factura-importer/internal/model"
)

// fileItem is a file on disk
type fileItem struct {
	path string
}

func (f fileItem) Label() string {
	return filepath.Base(f.path)
}

func (f fileItem) Resolve(ctx context.Context, p *Pipeline) *Result {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to read %s: %w", f.path, err)}
	}
	return p.ProcessBytes(ctx, data, filepath.Base(f.path))
}

// FileItem wraps a single file path
func FileItem(path string) Item {
	return fileItem{path: path}
}

// DirectoryItems lists the .xml and .zip files directly inside dir, in
// directory listing order (by name)
func DirectoryItems(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, model.NewValidationError("target_directory", dir, "exists", fmt.Sprintf("cannot read directory: %v", err))
	}

	var items []Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xml", ".zip":
			items = append(items, fileItem{path: filepath.Join(dir, e.Name())})
		}
	}
	return items, nil
}

// bytesItem is an in-memory payload, e.g. an HTTP upload
type bytesItem struct {
	label string
	data  []byte
}

func (b bytesItem) Label() string {
	return b.label
}

func (b bytesItem) Resolve(ctx context.Context, p *Pipeline) *Result {
	return p.ProcessBytes(ctx, b.data, b.label)
}

// BytesItem wraps an in-memory payload
func BytesItem(label string, data []byte) Item {
	return bytesItem{label: label, data: data}
}
