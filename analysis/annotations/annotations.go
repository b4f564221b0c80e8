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

// Package annotations parses the taint annotations users attach to function
// docblocks. The syntax is, per parameter, "@param-taint $name token[, token]*" and,
// for the return value, "@return-taint token[, token]*". Parsing is a pure
// string-to-flags translation; attaching the result to a contract is the taint
// package's job.
package annotations

import (
	"regexp"
	"strings"

	"github.com/webtaint-tools/webtaint/analysis/dataflow"
)

// categoryByName maps annotation category tokens to their value-taint bit.
var categoryByName = map[string]dataflow.Flags{
	"html":       dataflow.HTML,
	"htmlnoent":  dataflow.HTML,
	"sql":        dataflow.SQL,
	"shell":      dataflow.Shell,
	"serialize":  dataflow.Serialize,
	"custom1":    dataflow.Custom1,
	"custom2":    dataflow.Custom2,
	"misc":       dataflow.Misc,
	"sql_numkey": dataflow.SQLNumkey,
	"escaped":    dataflow.Escaped,
	"tainted":    dataflow.AllYes,
	"none":       dataflow.SafeFlags,
}

// ParamAnnotation is the parsed taint behavior of one parameter.
type ParamAnnotation struct {
	// Sink holds the exec bits of the parameter position
	Sink dataflow.Flags

	// Preserved holds the categories of the argument's taint that flow to the
	// return value
	Preserved dataflow.Flags

	// AddedToReturn holds extra categories the return value gains when this
	// parameter is used (Escaped for onlysafefor_html)
	AddedToReturn dataflow.Flags

	// ArrayOk exempts array literal arguments from the sink check
	ArrayOk bool

	// RawParam marks the parameter as receiving raw, unescaped input
	RawParam bool
}

// FunctionAnnotation is the parsed taint contract of one docblock.
type FunctionAnnotation struct {
	// Params maps parameter names (without the sigil) to their annotation
	Params map[string]ParamAnnotation

	// Order lists the annotated parameter names in order of appearance; the built-in
	// summaries derive positional parameter lists from it
	Order []string

	// Variadic names the parameters annotated with the ... prefix
	Variadic map[string]bool

	// ByRef names the parameters annotated with the & prefix
	ByRef map[string]bool

	// Return holds the value categories of the return value
	Return dataflow.Flags

	// HasReturn is true when a @return-taint line was present
	HasReturn bool

	// AllowOverride is true when the annotation carries allow_override; by default
	// annotations lock the contract against refinement
	AllowOverride bool
}

var (
	paramTaintRegex  = regexp.MustCompile(`@param-taint\s+(&?)(\.\.\.|)\$(\w+)\s+([^\r\n]+)`)
	returnTaintRegex = regexp.MustCompile(`@return-taint\s+([^\r\n]+)`)
)

// ParseDocblock extracts the taint annotation from a raw docblock. The second
// return value is false when the docblock carries no taint annotation at all.
func ParseDocblock(doc string) (FunctionAnnotation, bool) {
	ann := FunctionAnnotation{
		Params:   map[string]ParamAnnotation{},
		Variadic: map[string]bool{},
		ByRef:    map[string]bool{},
	}
	found := false

	for _, m := range paramTaintRegex.FindAllStringSubmatch(doc, -1) {
		name := m[3]
		pa, allowOverride := parseTokens(m[4])
		if _, seen := ann.Params[name]; !seen {
			ann.Order = append(ann.Order, name)
		}
		ann.Params[name] = pa
		if m[1] == "&" {
			ann.ByRef[name] = true
		}
		if m[2] == "..." {
			ann.Variadic[name] = true
		}
		ann.AllowOverride = ann.AllowOverride || allowOverride
		found = true
	}
	if m := returnTaintRegex.FindStringSubmatch(doc); m != nil {
		pa, allowOverride := parseTokens(m[1])
		// on a return line, plain categories are the return taint itself
		ann.Return = pa.Preserved&dataflow.AllYes | pa.AddedToReturn
		ann.HasReturn = true
		ann.AllowOverride = ann.AllowOverride || allowOverride
		found = true
	}
	return ann, found
}

// parseTokens folds a comma-separated token list into one parameter annotation.
// Unknown tokens are ignored rather than failing the whole docblock.
func parseTokens(list string) (ParamAnnotation, bool) {
	var pa ParamAnnotation
	allowOverride := false
	// the token list ends at the first stray docblock decoration
	if i := strings.IndexAny(list, "*"); i >= 0 {
		list = list[:i]
	}
	for _, raw := range strings.Split(list, ",") {
		token := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case token == "":
		case token == "array_ok":
			pa.ArrayOk = true
		case token == "raw_param":
			pa.RawParam = true
		case token == "allow_override":
			allowOverride = true
		case strings.HasPrefix(token, "exec_"):
			if cat, ok := categoryByName[token[len("exec_"):]]; ok {
				pa.Sink |= cat.YesToExec().WithSQLImplied()
			}
		case strings.HasPrefix(token, "escapes_"):
			if cat, ok := categoryByName[token[len("escapes_"):]]; ok {
				pa.Preserved |= dataflow.AllYes &^ cat
				pa.AddedToReturn |= dataflow.Escaped
				// escaping already-escaped input is a double-escape bug, but only
				// entity escaping is affected
				if token == "escapes_html" {
					pa.Sink |= dataflow.EscapedExec
				}
			}
		case strings.HasPrefix(token, "onlysafefor_"):
			if cat, ok := categoryByName[token[len("onlysafefor_"):]]; ok {
				pa.Preserved |= dataflow.AllYes &^ cat
				pa.AddedToReturn |= dataflow.Escaped
			}
		default:
			if cat, ok := categoryByName[token]; ok {
				pa.Preserved |= cat
			}
		}
	}
	return pa, allowOverride
}
