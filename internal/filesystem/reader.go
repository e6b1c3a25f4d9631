package filesystem

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// ReadFile reads a file and returns a File model
func ReadFile(fileInfo *models.FileInfo) (*models.File, error) {
	content, err := os.ReadFile(fileInfo.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	size := fileInfo.Size
	if size == 0 {
		size = int64(len(content))
	}

	return &models.File{
		Path:         fileInfo.Path,
		RelativePath: fileInfo.RelativePath,
		Name:         filepath.Base(fileInfo.Path),
		Extension:    GetExtension(fileInfo.Path),
		Size:         size,
		ModTime:      fileInfo.ModTime,
		Content:      content,
		Hash:         calculateHash(content),
		IsHidden:     fileInfo.IsHidden,
	}, nil
}

// ReadDocument reads a single document, refusing files larger than maxSize.
// A maxSize of 0 disables the check.
func ReadDocument(path string, maxSize int64) (*models.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxSize)
	}
	return ReadFile(&models.FileInfo{
		Path:         path,
		RelativePath: filepath.Base(path),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsHidden:     isHidden(info.Name()),
	})
}

// calculateHash calculates CRC32 hash of content
func calculateHash(content []byte) string {
	crc := crc32.ChecksumIEEE(content)
	return fmt.Sprintf("%08x", crc)
}

// ParseSize parses size string (e.g., "64K", "10M") to bytes
func ParseSize(sizeStr string) int64 {
	sizeStr = strings.TrimSpace(sizeStr)
	if len(sizeStr) == 0 {
		return 0
	}

	// Get last character (unit)
	last := sizeStr[len(sizeStr)-1]
	var multiplier int64 = 1

	switch last {
	case 'K', 'k':
		multiplier = 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	}

	// Parse number
	var size int64
	fmt.Sscanf(sizeStr, "%d", &size)

	return size * multiplier
}
