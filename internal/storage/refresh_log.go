package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gridironlab/pbp-refresh/internal/domain/refreshlog"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

// LogSink appends refresh attempt records to the run log and mirrors the most
// recent one into the status file.
type LogSink struct {
	logPath    string
	statusPath string
	logger     *logging.Logger
	now        func() time.Time
}

func NewLogSink(logPath, statusPath string, logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{
		logPath:    logPath,
		statusPath: statusPath,
		logger:     logger,
		now:        time.Now,
	}
}

// Record appends one immutable row to the log and overwrites the status file
// with the same row. When the log's header no longer matches the current
// schema the old file is rotated aside with a timestamp suffix so its rows
// are never reinterpreted under the wrong columns.
func (s *LogSink) Record(attempt refreshlog.AttemptRecord) error {
	row := attempt.Record()

	if err := s.rotateOnDrift(); err != nil {
		return err
	}
	if err := s.appendRow(row); err != nil {
		return err
	}

	status := tabular.New(refreshlog.Columns...)
	status.Append(row)
	if err := WriteTableAtomic(s.statusPath, status); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

func (s *LogSink) rotateOnDrift() error {
	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open log: %w", err)
	}
	header, err := csv.NewReader(f).Read()
	_ = f.Close()
	if err != nil || len(header) == 0 {
		return nil
	}

	if sameHeader(header, refreshlog.Columns) {
		return nil
	}

	stamp := s.now().UTC().Format("20060102_150405")
	rotated := strings.TrimSuffix(s.logPath, ".csv") + "_old_" + stamp + ".csv"
	if err := os.Rename(s.logPath, rotated); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	s.logger.Warn("rotated refresh log after schema drift", "rotated_to", rotated)
	return nil
}

func (s *LogSink) appendRow(row tabular.Record) error {
	_, statErr := os.Stat(s.logPath)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(refreshlog.Columns); err != nil {
			return fmt.Errorf("write log header: %w", err)
		}
	}
	record := make([]string, len(refreshlog.Columns))
	for i, col := range refreshlog.Columns {
		record[i] = row[col]
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("append log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LoadStatus reads the latest attempt record, if any.
func (s *LogSink) LoadStatus() (*tabular.Table, error) {
	return ReadTable(s.statusPath)
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
