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

package dataflow

import (
	"fmt"
	"strings"

	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// maxCauseLines bounds the length of a cause trail. Entries beyond the bound are
// dropped; the first occurrences are the ones kept.
var maxCauseLines = 25

// SetMaxCauseLines sets the maximum cause trail length. Set once, before analysis.
func SetMaxCauseLines(n int) {
	if n > 0 {
		maxCauseLines = n
	}
}

// A CauseLine is one step of a cause trail: a source position together with a
// snapshot of the taint and the parameter links the value had at that line.
type CauseLine struct {
	File  string
	Line  int
	Taint *Taintedness
	Links *MethodLinks
}

func (c CauseLine) String() string {
	return fmt.Sprintf("%s:%d", c.File, c.Line)
}

// CausedByLines is an ordered, de-duplicated collection of cause lines used to
// reconstruct human-readable source-to-sink chains. It is append-only: entries are
// added and merged, never removed.
type CausedByLines struct {
	lines []CauseLine
}

// NewCausedByLines returns an empty cause trail.
func NewCausedByLines() *CausedByLines {
	return &CausedByLines{}
}

// Clone returns a copy of the trail. CauseLine snapshots are immutable once recorded
// and are shared, not deep-cloned.
func (c *CausedByLines) Clone() *CausedByLines {
	if c == nil {
		return NewCausedByLines()
	}
	res := &CausedByLines{lines: make([]CauseLine, len(c.lines))}
	copy(res.lines, c.lines)
	return res
}

// IsEmpty returns true when the trail has no entries.
func (c *CausedByLines) IsEmpty() bool {
	return c == nil || len(c.lines) == 0
}

// Lines returns the entries in order.
func (c *CausedByLines) Lines() []CauseLine {
	if c == nil {
		return nil
	}
	return c.lines
}

// AddLine appends an entry for the given position. When the same position is already
// recorded, the new taint and links are joined into the existing snapshot instead of
// appending a duplicate.
func (c *CausedByLines) AddLine(file string, line int, taint *Taintedness, links *MethodLinks) {
	for i := range c.lines {
		if c.lines[i].File == file && c.lines[i].Line == line {
			c.lines[i].Taint = MergeTaint(c.lines[i].Taint, taint)
			c.lines[i].Links = MergeLinks(c.lines[i].Links, links)
			return
		}
	}
	if len(c.lines) >= maxCauseLines {
		return
	}
	c.lines = append(c.lines, CauseLine{
		File:  file,
		Line:  line,
		Taint: taint.Clone(),
		Links: links.Clone(),
	})
}

// MergeWith unions other into the receiver, preserving the first occurrence of each
// position and the existing order.
func (c *CausedByLines) MergeWith(other *CausedByLines) {
	if other == nil {
		return
	}
	for _, l := range other.lines {
		c.AddLine(l.File, l.Line, l.Taint, l.Links)
	}
}

// MergeCauses returns the union of a and b without modifying either.
func MergeCauses(a *CausedByLines, b *CausedByLines) *CausedByLines {
	res := a.Clone()
	res.MergeWith(b)
	return res
}

// ForParam keeps only the entries whose link snapshot mentions parameter index of f.
func (c *CausedByLines) ForParam(f *lang.FunctionInfo, index int) *CausedByLines {
	res := NewCausedByLines()
	if c == nil {
		return res
	}
	for _, l := range c.lines {
		if l.Links.HasLinkTo(f, index) {
			res.AddLine(l.File, l.Line, l.Taint, l.Links)
		}
	}
	return res
}

// RelevantFor keeps only the entries whose taint snapshot intersects the given
// categories. Entries with no snapshot are kept.
func (c *CausedByLines) RelevantFor(categories Flags) *CausedByLines {
	res := NewCausedByLines()
	if c == nil {
		return res
	}
	for _, l := range c.lines {
		if l.Taint == nil || l.Taint.Collapse()&categories != 0 {
			res.AddLine(l.File, l.Line, l.Taint, l.Links)
		}
	}
	return res
}

func (c *CausedByLines) String() string {
	if c.IsEmpty() {
		return ""
	}
	var parts []string
	for _, l := range c.lines {
		parts = append(parts, "("+l.String()+")")
	}
	return strings.Join(parts, " via ")
}
