package model

import "time"

// ScriptReport records what the pipeline did to one script.
type ScriptReport struct {
	Path         string       `yaml:"path"`
	Depth        int          `yaml:"depth"`
	Excluded     bool         `yaml:"excluded,omitempty"`
	Requirements Requirements `yaml:"requirements,omitempty"`
}

// ScriptInfo describes one candidate script for display: where it sits in
// the tree, how big it is and whether the exclusion globs would skip it.
// Lines and Parses are filled by a separate scan pass.
type ScriptInfo struct {
	Path     string
	Class    string
	Depth    int
	Bytes    int
	Lines    int
	Excluded bool
	Parses   bool
}

// RunReport is the persisted record of one transpile run, written by the
// report store so repeated runs over the same plugin stay auditable.
type RunReport struct {
	ID        string         `yaml:"id"`
	Input     string         `yaml:"input"`
	Output    string         `yaml:"output"`
	StartedAt time.Time      `yaml:"started_at"`
	Stats     TranspileStats `yaml:"stats"`
	Scripts   []ScriptReport `yaml:"scripts"`
}
