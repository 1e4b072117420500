// Package loader reads documents from the local filesystem.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docchat/internal/contextutil"
	"docchat/internal/extract"
	"docchat/internal/rag"
)

// Scan reads the given files and every supported file below the given
// directories. Hidden directories are skipped. Files named explicitly must have a
// supported extension. Each file is returned once, in walk order.
func Scan(ctx context.Context, paths []string) ([]rag.Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var docs []rag.Document
	seen := make(map[string]bool)
	add := func(path, name string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, rag.Document{Name: name, Data: data})
		return nil
	}

	for _, root := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to access path %s: %w", root, err)
		}

		if !info.IsDir() {
			if !extract.Supported(root) {
				return nil, &rag.ValidationError{
					Field:   "path",
					Message: fmt.Sprintf("%s: unsupported file type (supported: %s)", root, strings.Join(extract.SupportedExtensions(), ", ")),
				}
			}
			if err := add(root, filepath.Base(root)); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("failed to access path %s: %w", path, err)
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !extract.Supported(path) {
				return nil
			}
			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
			}
			return add(path, filepath.ToSlash(relPath))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}

	logger.InfoContext(ctx, "documents loaded", "paths", len(paths), "documents", len(docs))
	return docs, nil
}
