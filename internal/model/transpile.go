package model

import "time"

// Requirements is the per-script summary of what the rewrite pass found:
// which injected declarations the script needs to keep working once it is
// cut off from the privileged environment.
type Requirements struct {
	Globals bool `yaml:"globals,omitempty"`
	Plugin  bool `yaml:"plugin,omitempty"`
	Enums   bool `yaml:"enums,omitempty"`
}

// NeedsGlobals reports whether the globals object must be in scope, either
// because it was referenced directly or because the plugin handle or enum
// table is derived from it.
func (r Requirements) NeedsGlobals() bool {
	return r.Globals || r.Plugin || r.Enums
}

// Target is one collected rewrite candidate: a script reference and its
// depth below the entry point. Collection finishes before any mutation
// starts, so every Target stays valid through the mutate phase.
type Target struct {
	Ref   Ref
	Depth int
}

// TranspileStats aggregates the diagnostics of one transpile run.
type TranspileStats struct {
	Total     int           `yaml:"total"`
	Excluded  int           `yaml:"excluded"`
	Rewritten int           `yaml:"rewritten"`
	Elapsed   time.Duration `yaml:"elapsed"`
}
