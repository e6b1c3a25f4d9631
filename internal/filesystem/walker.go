package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// Walker walks the filesystem and finds documents to scan
type Walker struct {
	config  *config.Config
	logger  *zap.Logger
	exclude map[string]bool
}

// NewWalker creates a new filesystem walker
func NewWalker(cfg *config.Config, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Build exclude map for fast lookup
	exclude := make(map[string]bool)
	for _, dir := range cfg.Walk.Exclude {
		exclude[dir] = true
	}

	return &Walker{
		config:  cfg,
		logger:  logger,
		exclude: exclude,
	}
}

// Walk recursively walks the directory tree. The callback sees every
// regular file; directories are only used for exclusion.
func (w *Walker) Walk(root string, callback func(*models.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Error accessing path", zap.String("path", path), zap.Error(err))
			return nil // Continue walking
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}

		if d.IsDir() {
			if path != root && w.shouldExclude(d.Name(), relPath) {
				w.logger.Debug("Skipping excluded directory", zap.String("path", relPath))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.logger.Warn("Error reading file info", zap.String("path", path), zap.Error(err))
			return nil
		}

		return callback(&models.FileInfo{
			Path:         path,
			RelativePath: relPath,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			IsHidden:     isHidden(d.Name()),
		})
	})
}

// ShouldScan applies the extension, hidden file and size filters
func (w *Walker) ShouldScan(fi *models.FileInfo, maxSize int64) bool {
	if fi.IsHidden && !w.config.Walk.ScanHidden {
		return false
	}
	if maxSize > 0 && fi.Size > maxSize {
		return false
	}
	return w.config.ShouldScanFile(GetExtension(fi.Path))
}

// shouldExclude checks if a directory should be excluded
func (w *Walker) shouldExclude(name, path string) bool {
	if w.exclude[name] {
		return true
	}

	parts := strings.Split(path, string(os.PathSeparator))
	for _, part := range parts {
		if w.exclude[part] {
			return true
		}
	}

	return false
}

// isHidden checks if a file is hidden
func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// GetExtension returns the file extension without dot
func GetExtension(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}
