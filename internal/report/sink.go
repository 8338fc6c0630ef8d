package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/budget-etl/internal/logger"
)

// FileName is the name of the report inside the output directory.
const FileName = "report.md"

// FileSink writes the report into a directory. The previous report is
// replaced atomically.
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink for dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Path returns the location of the report.
func (s *FileSink) Path() string {
	return filepath.Join(s.Dir, FileName)
}

// Write stores content and returns the report path.
func (s *FileSink) Write(ctx context.Context, content string) (string, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("FileSink.Write: create %s: %w", s.Dir, err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".report-*.md")
	if err != nil {
		return "", fmt.Errorf("FileSink.Write: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("FileSink.Write: write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("FileSink.Write: close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("FileSink.Write: chmod report: %w", err)
	}

	path := s.Path()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("FileSink.Write: publish report: %w", err)
	}

	log.Info().Str("path", path).Int("bytes", len(content)).Msg("Report written")
	return path, nil
}
