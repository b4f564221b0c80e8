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

// Package dataflow implements the data model of the taint analysis: the flag set of
// taint categories, the shape-preserving Taintedness lattice, the parameter link
// graph, cause trails, per-function contracts and the analyzer state that ties them
// to program symbols.
package dataflow

import "strings"

// Flags is a packed set of taint categories and meta-flags. Every security category X
// occupies a pair of bits: X (a value may be X-dangerous) and XExec (this position is
// a sink for X-dangerous values), with XExec == X << 1. Meta-flags are not categories;
// they modify how a flag set is interpreted.
type Flags uint32

const (
	// HTML means the value may contain unescaped HTML.
	HTML Flags = 1 << iota
	// HTMLExec marks a position that emits its input as HTML.
	HTMLExec
	// SQL means the value may contain an SQL injection payload.
	SQL
	// SQLExec marks a position passed to an SQL driver.
	SQLExec
	// Shell means the value may contain shell metacharacters.
	Shell
	// ShellExec marks a position executed by a shell.
	ShellExec
	// Serialize means the value may contain untrusted serialized data.
	Serialize
	// SerializeExec marks a position that deserializes its input.
	SerializeExec
	// Custom1 is the first user-defined category.
	Custom1
	// Custom1Exec is the sink twin of Custom1.
	Custom1Exec
	// Custom2 is the second user-defined category.
	Custom2
	// Custom2Exec is the sink twin of Custom2.
	Custom2Exec
	// Misc covers categories with no dedicated bit (filesystem paths, headers, ...).
	Misc
	// MiscExec is the sink twin of Misc.
	MiscExec
	// SQLNumkey refines SQL: the tainted string sits at an integer key of an array.
	// Invariant: SQLNumkey implies SQL on the same node.
	SQLNumkey
	// SQLNumkeyExec is the sink twin of SQLNumkey.
	SQLNumkeyExec
	// Escaped means the value has already been escaped; escaping it again is a
	// double-escape bug. It is category data, not a safety certificate.
	Escaped
	// EscapedExec marks a position that escapes its input (sinks Escaped values).
	EscapedExec

	// Unknown is the join-top: the analyzer could not determine the taint.
	Unknown
	// Inapplicable marks a syntactic position that is not a value.
	Inapplicable
	// Preserve means a parameter's taint passes through to the return value.
	Preserve
	// NoOverride locks a user or built-in annotation against refinement.
	NoOverride
	// RawParam records the raw_param annotation modifier on a parameter. The sink
	// check does not consult it.
	RawParam
	// ArrayOk exempts array literal arguments from the parameter's sink check;
	// other arguments that hold arrays are still checked.
	ArrayOk
)

// AllYes is the set of all value-taint category bits.
const AllYes = HTML | SQL | Shell | Serialize | Custom1 | Custom2 | Misc | SQLNumkey | Escaped

// AllExec is the set of all sink category bits.
const AllExec = AllYes << 1

// SafeFlags is the empty flag set.
const SafeFlags Flags = 0

// UserInput is the taint of data crossing the trust boundary: every category except
// the derived ones (numkey is positional, escaped is produced by escapers).
const UserInput = HTML | SQL | Shell | Serialize | Custom1 | Custom2 | Misc

// Has returns true when all bits of other are set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// HasAny returns true when at least one bit of other is set in f.
func (f Flags) HasAny(other Flags) bool {
	return f&other != 0
}

// ExecToYes converts sink bits into the value bits that sink catches. Applying it
// twice always yields zero.
func (f Flags) ExecToYes() Flags {
	return (f & AllExec) >> 1
}

// YesToExec converts value bits into the sink bits that would catch them. Applying it
// twice always yields zero.
func (f Flags) YesToExec() Flags {
	return (f & AllYes) << 1
}

// WithSQLImplied restores the SQLNumkey => SQL invariant after bit arithmetic.
func (f Flags) WithSQLImplied() Flags {
	if f&SQLNumkey != 0 {
		f |= SQL
	}
	if f&SQLNumkeyExec != 0 {
		f |= SQLExec
	}
	return f
}

// categoryNames orders the category bits for display.
var categoryNames = []struct {
	bit  Flags
	name string
}{
	{HTML, "html"},
	{SQL, "sql"},
	{Shell, "shell"},
	{Serialize, "serialize"},
	{Custom1, "custom1"},
	{Custom2, "custom2"},
	{Misc, "misc"},
	{SQLNumkey, "sql_numkey"},
	{Escaped, "escaped"},
}

// CategoryName returns the display name of a single category bit (yes or exec).
func CategoryName(bit Flags) string {
	for _, c := range categoryNames {
		if bit == c.bit {
			return c.name
		}
		if bit == c.bit<<1 {
			return "exec_" + c.name
		}
	}
	return "?"
}

// Categories decomposes the value-taint bits of f into single category bits.
func (f Flags) Categories() []Flags {
	var out []Flags
	for _, c := range categoryNames {
		if f&c.bit != 0 {
			out = append(out, c.bit)
		}
	}
	return out
}

func (f Flags) String() string {
	if f == 0 {
		return "safe"
	}
	var parts []string
	for _, c := range categoryNames {
		if f&c.bit != 0 {
			parts = append(parts, c.name)
		}
		if f&(c.bit<<1) != 0 {
			parts = append(parts, "exec_"+c.name)
		}
	}
	for bit, name := range map[Flags]string{
		Unknown: "unknown", Inapplicable: "inapplicable", Preserve: "preserve",
		NoOverride: "no_override", RawParam: "raw_param", ArrayOk: "array_ok",
	} {
		if f&bit != 0 {
			parts = append(parts, name)
		}
	}
	// map iteration order is not stable for the meta flags; sort for display
	if len(parts) > 1 {
		sortStrings(parts)
	}
	return strings.Join(parts, "|")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
