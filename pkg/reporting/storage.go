package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Storage handles persistence of run reports to disk.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates a Storage rooted at outputDir, creating it if
// necessary.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveReport writes report as JSON to
// "<outputDir>/loadsmith_results_YYYYMMDD_HHMMSS.json" and returns the full
// path. If keepLastN > 0, older reports beyond that count are removed.
func (s *Storage) SaveReport(report *RunReport) (string, error) {
	timestamp := report.StartTime.Format("20060102_150405")
	filename := fmt.Sprintf("loadsmith_results_%s.json", timestamp)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}

	s.logger.Info("run report saved", "path", path)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("failed to clean up old reports", "error", err)
		}
	}

	return path, nil
}

// LoadReport reads a RunReport from path.
func (s *Storage) LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// ReportSummary is a lightweight index entry for ListReports.
type ReportSummary struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
	Status    RunStatus `json:"status"`
	Filepath  string    `json:"filepath"`
}

// ListReports lists every report under the output directory, newest first.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, ReportSummary{
			RunID:     report.RunID,
			Scenario:  report.Scenario,
			StartTime: report.StartTime,
			Duration:  report.Duration,
			Status:    report.Status,
			Filepath:  path,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})

	return summaries, nil
}

// FindReportByRunID finds a report by run ID.
func (s *Storage) FindReportByRunID(runID string) (*RunReport, error) {
	summaries, err := s.ListReports()
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if summary.RunID == runID {
			return s.LoadReport(summary.Filepath)
		}
	}
	return nil, fmt.Errorf("report not found for run ID: %s", runID)
}

func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	for _, summary := range summaries[s.keepLastN:] {
		if err := os.Remove(summary.Filepath); err != nil {
			s.logger.Warn("failed to delete old report", "path", summary.Filepath, "error", err)
		} else {
			s.logger.Debug("deleted old report", "path", summary.Filepath)
		}
	}
	return nil
}

// GetOutputDir returns the output directory path.
func (s *Storage) GetOutputDir() string {
	return s.outputDir
}
