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

// Package summaries provides the taint contracts of built-in library functions that
// the analysis never sees the source of: escapers, sinks and passthroughs. The
// entries are written in the same annotation syntax users put in docblocks, and
// every entry is locked against refinement.
package summaries

import (
	"strings"
	"sync"

	"github.com/webtaint-tools/webtaint/analysis/annotations"
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// builtinDocs is the summary table. One entry per built-in, annotation lines
// separated by newlines. Parameter order in the entry is positional.
var builtinDocs = map[string]string{
	// escapers
	"htmlspecialchars":          "@param-taint $string escapes_html",
	"htmlentities":              "@param-taint $string escapes_html",
	"strip_tags":                "@param-taint $string escapes_html",
	"rawurlencode":              "@param-taint $string onlysafefor_html",
	"urlencode":                 "@param-taint $string onlysafefor_html",
	"mysqli_real_escape_string": "@param-taint $mysql none\n@param-taint $string escapes_sql",
	"mysql_real_escape_string":  "@param-taint $string escapes_sql",
	"pg_escape_string":          "@param-taint $string escapes_sql",
	"addslashes":                "@param-taint $string escapes_sql",
	"escapeshellarg":            "@param-taint $arg escapes_shell",
	"escapeshellcmd":            "@param-taint $command escapes_shell",
	"intval":                    "@param-taint $value none",
	"md5":                       "@param-taint $string none",
	"sha1":                      "@param-taint $string none",
	"crc32":                     "@param-taint $string none",

	// sinks
	"mysql_query":       "@param-taint $query exec_sql",
	"mysqli_query":      "@param-taint $mysql none\n@param-taint $query exec_sql",
	"pg_query":          "@param-taint $connection none\n@param-taint $query exec_sql",
	"sqlite_query":      "@param-taint $query exec_sql",
	"shell_exec":        "@param-taint $command exec_shell\n@return-taint tainted",
	"exec":              "@param-taint $command exec_shell\n@return-taint tainted",
	"system":            "@param-taint $command exec_shell",
	"passthru":          "@param-taint $command exec_shell",
	"popen":             "@param-taint $command exec_shell\n@param-taint $mode none",
	"proc_open":         "@param-taint $command exec_shell",
	"unserialize":       "@param-taint $data exec_serialize\n@return-taint tainted",
	"printf":            "@param-taint $format exec_html\n@param-taint ...$values exec_html",
	"vprintf":           "@param-taint $format exec_html\n@param-taint $values exec_html",
	"print_r":           "@param-taint $value exec_html, array_ok\n@param-taint $return none",
	"var_dump":          "@param-taint ...$values exec_html, array_ok",
	"file_put_contents": "@param-taint $filename exec_misc\n@param-taint $data none",
	"fopen":             "@param-taint $filename exec_misc\n@param-taint $mode none",
	"file_get_contents": "@param-taint $filename exec_misc\n@return-taint tainted",
	"unlink":            "@param-taint $filename exec_misc",
	"header":            "@param-taint $header exec_misc",
	"setcookie":         "@param-taint $name exec_misc\n@param-taint $value none",

	// passthroughs
	"serialize":     "@param-taint $value tainted",
	"base64_encode": "@param-taint $string tainted",
	"base64_decode": "@param-taint $string tainted",
	"json_encode":   "@param-taint $value tainted",
	"json_decode":   "@param-taint $json tainted",
	"sprintf":       "@param-taint $format tainted\n@param-taint ...$values tainted",
	"implode":       "@param-taint $separator tainted\n@param-taint $array tainted",
	"join":          "@param-taint $separator tainted\n@param-taint $array tainted",
	"str_replace":   "@param-taint $search none\n@param-taint $replace tainted\n@param-taint $subject tainted",
	"trim":          "@param-taint $string tainted",
	"substr":        "@param-taint $string tainted",
	"strtolower":    "@param-taint $string tainted",
	"strtoupper":    "@param-taint $string tainted",
	"str_repeat":    "@param-taint $string tainted",
}

var (
	builtinOnce  sync.Once
	builtinTable map[string]builtinEntry
)

type builtinEntry struct {
	info     *lang.FunctionInfo
	contract *dataflow.FunctionTaintedness
}

func buildTable() {
	builtinTable = make(map[string]builtinEntry, len(builtinDocs))
	for name, doc := range builtinDocs {
		ann, ok := annotations.ParseDocblock(doc)
		if !ok {
			continue
		}
		info := &lang.FunctionInfo{Name: name, IsBuiltin: true}
		for _, pname := range ann.Order {
			info.Params = append(info.Params, lang.ParamInfo{
				Name:     pname,
				ByRef:    ann.ByRef[pname],
				Variadic: ann.Variadic[pname],
			})
		}
		ft := ContractFromAnnotation(info, ann)
		ft.Locked = true
		builtinTable[strings.ToLower(name)] = builtinEntry{info: info, contract: ft}
	}
}

// Builtin resolves a built-in function by name. The returned contract is shared:
// callers must not mutate it (all entries are locked).
func Builtin(name string) (*lang.FunctionInfo, *dataflow.FunctionTaintedness, bool) {
	builtinOnce.Do(buildTable)
	e, ok := builtinTable[strings.ToLower(name)]
	if !ok {
		return nil, nil, false
	}
	return e.info, e.contract, true
}

// IsBuiltin returns true when the name is in the summary table.
func IsBuiltin(name string) bool {
	builtinOnce.Do(buildTable)
	_, ok := builtinTable[strings.ToLower(name)]
	return ok
}

// ContractFromAnnotation translates a parsed docblock annotation into a function
// contract for f. The contract is locked unless the annotation allows overrides.
func ContractFromAnnotation(f *lang.FunctionInfo, ann annotations.FunctionAnnotation) *dataflow.FunctionTaintedness {
	ft := dataflow.NewFunctionTaintedness(f)
	for i, p := range f.Params {
		pa, ok := ann.Params[p.Name]
		if !ok {
			// an unannotated parameter of an annotated function preserves nothing
			// and sinks nothing
			continue
		}
		sink := pa.Sink
		if pa.ArrayOk {
			sink |= dataflow.ArrayOk
		}
		if pa.RawParam {
			sink |= dataflow.RawParam
		}
		if !ann.AllowOverride {
			sink |= dataflow.NoOverride
		}
		preserved := dataflow.NewPreservedTaintedness(dataflow.NewTaintedness(pa.Preserved))
		if p.Variadic || ann.Variadic[p.Name] {
			ft.Variadic = dataflow.NewTaintedness(sink)
			ft.VariadicPreserved = preserved
			if ft.VariadicIndex < 0 {
				ft.VariadicIndex = i
			}
		} else if i < len(ft.Params) {
			ft.Params[i] = dataflow.NewTaintedness(sink)
			ft.Preserved[i] = preserved
		}
		ft.Overall.AddFlags(pa.AddedToReturn)
	}
	if ann.HasReturn {
		ft.Overall.AddFlags(ann.Return)
	}
	ft.Locked = !ann.AllowOverride
	return ft
}
