package models

import (
	"time"
)

// File is a markdown document loaded from disk for a batch scan
type File struct {
	Path         string    // Full file path
	RelativePath string    // Path relative to scan root
	Name         string    // File name
	Extension    string    // File extension (without dot)
	Size         int64     // File size in bytes
	ModTime      time.Time // Modification time
	Content      []byte    // File content
	Hash         string    // CRC32 of content
	IsHidden     bool      // Is hidden file
}

// FileInfo contains basic file information without content
type FileInfo struct {
	Path         string
	RelativePath string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	IsHidden     bool
}

// FileResult pairs a scanned file with its scan outcome
type FileResult struct {
	Path   string  `json:"path"`
	Hash   string  `json:"hash"`
	Size   int64   `json:"size"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchResults aggregates a directory scan
type BatchResults struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	ScanPath     string        `json:"scan_path"`
	Mode         Mode          `json:"mode"`
	TotalFiles   int           `json:"total_files"`
	ScannedFiles int           `json:"scanned_files"`
	SkippedFiles int           `json:"skipped_files"`
	UnsafeFiles  int           `json:"unsafe_files"`
	ThreatsFound int           `json:"threats_found"`
	ReadErrors   int           `json:"read_errors"`
	Files        []*FileResult `json:"files"`
}

// AddFile records one scanned file
func (b *BatchResults) AddFile(fr *FileResult) {
	b.Files = append(b.Files, fr)
	if fr.Result == nil {
		b.ReadErrors++
		return
	}
	b.ScannedFiles++
	b.ThreatsFound += len(fr.Result.Threats)
	if !fr.Result.Safe {
		b.UnsafeFiles++
	}
}
