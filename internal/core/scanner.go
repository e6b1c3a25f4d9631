package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/filesystem"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// ProgressCallback is called to report scan progress
type ProgressCallback func(phase string, current, total int, message string)

// Processor runs a single document through the pipeline
type Processor interface {
	Process(ctx context.Context, content string, mode models.Mode, opts models.Options) (*models.Result, error)
}

// Scanner scans every markdown document under a directory
type Scanner struct {
	config           *config.Config
	logger           *zap.Logger
	processor        Processor
	walker           *filesystem.Walker
	results          *models.BatchResults
	progressCallback ProgressCallback
	mu               sync.Mutex
}

// NewScanner creates a new scanner instance
func NewScanner(cfg *config.Config, processor Processor, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		config:    cfg,
		logger:    logger,
		processor: processor,
		walker:    filesystem.NewWalker(cfg, logger),
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(cb ProgressCallback) {
	s.progressCallback = cb
}

// reportProgress calls the progress callback if set
func (s *Scanner) reportProgress(phase string, current, total int, message string) {
	if s.progressCallback != nil {
		s.progressCallback(phase, current, total, message)
	}
}

// Scan walks path and runs every matching document through the pipeline
func (s *Scanner) Scan(ctx context.Context, path string) (*models.BatchResults, error) {
	mode, err := s.config.PipelineMode()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting scan",
		zap.String("path", path),
		zap.String("mode", string(mode)))

	s.results = &models.BatchResults{
		StartTime: time.Now(),
		ScanPath:  path,
		Mode:      mode,
		Files:     []*models.FileResult{},
	}

	s.reportProgress("counting", 0, 0, "Counting files...")
	totalFiles := s.countFiles(path)
	s.reportProgress("counting", totalFiles, totalFiles, fmt.Sprintf("Found %d files to scan", totalFiles))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := s.config.Walk.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	if err := s.scanFiles(ctx, path, mode, workers, totalFiles); err != nil {
		return nil, err
	}

	// Workers finish in any order
	sort.Slice(s.results.Files, func(i, j int) bool {
		return s.results.Files[i].Path < s.results.Files[j].Path
	})

	s.results.EndTime = time.Now()
	s.results.Duration = s.results.EndTime.Sub(s.results.StartTime)

	s.logger.Info("Scan completed",
		zap.Duration("duration", s.results.Duration),
		zap.Int("threats_found", s.results.ThreatsFound),
		zap.Int("files_scanned", s.results.ScannedFiles))

	return s.results, nil
}

func (s *Scanner) maxFileSize() int64 {
	return filesystem.ParseSize(s.config.Walk.MaxFileSize)
}

func (s *Scanner) countFiles(path string) int {
	count := 0
	maxSize := s.maxFileSize()
	s.walker.Walk(path, func(fileInfo *models.FileInfo) error {
		if s.walker.ShouldScan(fileInfo, maxSize) {
			count++
		}
		return nil
	})
	return count
}

func (s *Scanner) scanFiles(ctx context.Context, path string, mode models.Mode, workers int, totalFiles int) error {
	fileChan := make(chan *models.FileInfo, workers*2)
	resultsChan := make(chan *scanResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, mode, fileChan, resultsChan)
	}

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go s.collectResults(&collectWg, resultsChan, totalFiles)

	walkErr := s.walker.Walk(path, func(fileInfo *models.FileInfo) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fileChan <- fileInfo:
			s.mu.Lock()
			s.results.TotalFiles++
			s.mu.Unlock()
			return nil
		}
	})

	close(fileChan)
	wg.Wait()
	close(resultsChan)
	collectWg.Wait()

	if walkErr == nil {
		walkErr = ctx.Err()
	}
	return walkErr
}

func (s *Scanner) worker(ctx context.Context, wg *sync.WaitGroup, mode models.Mode, fileChan <-chan *models.FileInfo, resultsChan chan<- *scanResult) {
	defer wg.Done()

	for fileInfo := range fileChan {
		select {
		case <-ctx.Done():
			return
		default:
			resultsChan <- s.scanFile(ctx, mode, fileInfo)
		}
	}
}

// scanResult is one worker's outcome for a single file
type scanResult struct {
	fileInfo *models.FileInfo
	file     *models.FileResult
	skipped  bool
}

func (s *Scanner) scanFile(ctx context.Context, mode models.Mode, fileInfo *models.FileInfo) *scanResult {
	result := &scanResult{fileInfo: fileInfo}

	if !s.walker.ShouldScan(fileInfo, s.maxFileSize()) {
		result.skipped = true
		return result
	}

	fr := &models.FileResult{Path: fileInfo.RelativePath, Size: fileInfo.Size}
	result.file = fr

	file, err := filesystem.ReadFile(fileInfo)
	if err != nil {
		fr.Error = err.Error()
		return result
	}
	fr.Hash = file.Hash

	res, err := s.processor.Process(ctx, string(file.Content), mode, s.config.Options)
	switch {
	case errors.Is(err, pipeline.ErrEmptyContent):
		result.skipped = true
	case err != nil:
		s.logger.Warn("Pipeline failed",
			zap.String("file", fileInfo.Path),
			zap.Error(err))
		fr.Error = err.Error()
	default:
		fr.Result = res
	}
	return result
}

func (s *Scanner) collectResults(wg *sync.WaitGroup, resultsChan <-chan *scanResult, totalFiles int) {
	defer wg.Done()

	processed := 0
	lastReport := time.Now()

	for result := range resultsChan {
		s.mu.Lock()

		if result.skipped {
			s.results.SkippedFiles++
		} else {
			s.results.AddFile(result.file)
			processed++
		}

		if time.Since(lastReport) > 100*time.Millisecond || processed%100 == 0 {
			s.reportProgress("scanning", processed, totalFiles, result.fileInfo.Path)
			lastReport = time.Now()
		}

		s.mu.Unlock()
	}

	s.reportProgress("scanning", processed, totalFiles, "Scan complete")
}
