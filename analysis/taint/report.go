// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taint

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/internal/formatutil"
)

// An Issue is one security finding: tainted data of the given categories reached the
// named sink position.
type Issue struct {
	File string
	Line int

	// Categories holds the value-taint bits that reached the sink
	Categories dataflow.Flags

	// Sink names the sink position ("echo", "mysqli_query#2", ...)
	Sink string

	// Function is the enclosing function, or the global-scope marker
	Function string

	// Trail is the cause trail from source to sink
	Trail *dataflow.CausedByLines
}

// Message renders the templated diagnostic text, without the trail.
func (i *Issue) Message(cfg *config.Config) string {
	var cats []string
	for _, bit := range i.Categories.Categories() {
		name := dataflow.CategoryName(bit)
		switch bit {
		case dataflow.Custom1:
			name = cfg.CustomCategoryName(1)
		case dataflow.Custom2:
			name = cfg.CustomCategoryName(2)
		}
		cats = append(cats, name)
	}
	if i.Categories.Has(dataflow.Escaped) {
		return fmt.Sprintf("Calling %s with already-escaped data (double escaping)", i.Sink)
	}
	return fmt.Sprintf("Calling %s with %s-tainted argument", i.Sink, strings.Join(cats, "|"))
}

// RuleID returns a stable identifier for the issue's sink category set, used by the
// SARIF output.
func (i *Issue) RuleID() string {
	cats := i.Categories.Categories()
	if len(cats) == 0 {
		return "taint"
	}
	return "taint-" + dataflow.CategoryName(cats[0])
}

func (i *Issue) key() string {
	return fmt.Sprintf("%s:%d:%s:%d", i.File, i.Line, i.Sink, i.Categories)
}

// A Collector accumulates the issues of one analysis pass, de-duplicated by
// position, sink and category set, and capped by the MaxAlarms option.
type Collector struct {
	cfg    *config.Config
	issues []*Issue
	seen   map[string]bool
}

// NewCollector returns an empty collector.
func NewCollector(cfg *config.Config) *Collector {
	return &Collector{cfg: cfg, seen: map[string]bool{}}
}

// Add records an issue unless it duplicates a previous one or exceeds the alarm cap.
// It reports whether the issue was kept.
func (c *Collector) Add(issue *Issue) bool {
	if c.cfg.MaxAlarms > 0 && len(c.issues) >= c.cfg.MaxAlarms {
		return false
	}
	k := issue.key()
	if c.seen[k] {
		return false
	}
	c.seen[k] = true
	c.issues = append(c.issues, issue)
	return true
}

// Reset clears the collector for the next pass.
func (c *Collector) Reset() {
	c.issues = nil
	c.seen = map[string]bool{}
}

// Issues returns the recorded issues sorted by position.
func (c *Collector) Issues() []*Issue {
	sorted := make([]*Issue, len(c.issues))
	copy(sorted, c.issues)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Line < sorted[j].Line
	})
	return sorted
}

// ReportIssue writes one finding to the logger, with the trail rendered as
// "(file:line) via ...", and appends a flow-*.out report file when configured.
func ReportIssue(cfg *config.Config, logger *config.LogGroup, issue *Issue) {
	pos := fmt.Sprintf("%s:%d", issue.File, issue.Line)
	logger.Infof("%s %s", formatutil.Red(pos), issue.Message(cfg))
	if !issue.Trail.IsEmpty() {
		logger.Infof("  caused by %s", formatutil.Faint(issue.Trail.String()))
	}

	if cfg.ReportPaths && cfg.ReportsDir != "" {
		tmp, err := os.CreateTemp(cfg.ReportsDir, "flow-*.out")
		if err != nil {
			logger.Warnf("could not write flow report: %v", err)
			return
		}
		defer tmp.Close()
		fmt.Fprintf(tmp, "Sink: %s\nAt: %s\nCategories: %s\n", issue.Sink, pos, issue.Categories)
		fmt.Fprintf(tmp, "Trace:\n")
		for _, l := range issue.Trail.Lines() {
			fmt.Fprintf(tmp, "  %s\n", l)
		}
	}
}
