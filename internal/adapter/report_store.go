package adapter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// ReportStore persists transpile run reports.
type ReportStore interface {
	SaveReport(path string, report *m.RunReport) error
	LoadReports(path string) ([]m.RunReport, error)
}

// YAMLReportStore keeps run reports as a YAML list on disk, newest last.
type YAMLReportStore struct{}

// NewYAMLReportStore constructs a YAMLReportStore.
func NewYAMLReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

// SaveReport appends the report to the file at path, creating it when
// missing.
func (s *YAMLReportStore) SaveReport(path string, report *m.RunReport) error {
	reports, err := s.LoadReports(path)
	if err != nil {
		return err
	}

	reports = append(reports, *report)

	data, err := yaml.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// LoadReports reads every report stored at path. A missing file yields an
// empty list.
func (s *YAMLReportStore) LoadReports(path string) ([]m.RunReport, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var reports []m.RunReport
	if err := yaml.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return reports, nil
}
