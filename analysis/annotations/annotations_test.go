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

package annotations

import (
	"testing"

	"github.com/webtaint-tools/webtaint/analysis/dataflow"
)

func TestParseDocblock_execSink(t *testing.T) {
	doc := `/**
	 * Runs a query.
	 * @param-taint $sql exec_sql
	 */`
	ann, ok := ParseDocblock(doc)
	if !ok {
		t.Fatalf("expected a taint annotation")
	}
	pa, ok := ann.Params["sql"]
	if !ok {
		t.Fatalf("expected an annotation for $sql, got %v", ann.Params)
	}
	if !pa.Sink.Has(dataflow.SQLExec) {
		t.Errorf("exec_sql must set the sql exec bit, got %s", pa.Sink)
	}
	if ann.AllowOverride {
		t.Errorf("annotations must lock by default")
	}
}

func TestParseDocblock_execNumkeyImpliesSQL(t *testing.T) {
	ann, _ := ParseDocblock(`@param-taint $q exec_sql_numkey`)
	pa := ann.Params["q"]
	if !pa.Sink.Has(dataflow.SQLNumkeyExec | dataflow.SQLExec) {
		t.Errorf("exec_sql_numkey must imply exec_sql, got %s", pa.Sink)
	}
}

func TestParseDocblock_escapesHTML(t *testing.T) {
	ann, _ := ParseDocblock(`@param-taint $s escapes_html`)
	pa := ann.Params["s"]
	if pa.Preserved.HasAny(dataflow.HTML) {
		t.Errorf("escapes_html must stop the html category, got %s", pa.Preserved)
	}
	if !pa.Preserved.HasAny(dataflow.SQL) {
		t.Errorf("escapes_html must let the other categories through")
	}
	if !pa.Sink.Has(dataflow.EscapedExec) {
		t.Errorf("escapes_html must install a double-escape sink")
	}
	if !pa.AddedToReturn.Has(dataflow.Escaped) {
		t.Errorf("the return value of an escaper is escaped data")
	}
}

func TestParseDocblock_onlySafeForHTML(t *testing.T) {
	ann, _ := ParseDocblock(`@param-taint $s onlysafefor_html`)
	pa := ann.Params["s"]
	if pa.Sink.HasAny(dataflow.EscapedExec) {
		t.Errorf("onlysafefor_html must not install a double-escape sink")
	}
	if !pa.AddedToReturn.Has(dataflow.Escaped) {
		t.Errorf("onlysafefor_html must add escaped instead")
	}
}

func TestParseDocblock_modifiersAndOverride(t *testing.T) {
	ann, _ := ParseDocblock(`@param-taint $opts tainted, array_ok, raw_param, allow_override`)
	pa := ann.Params["opts"]
	if !pa.ArrayOk || !pa.RawParam {
		t.Errorf("modifiers must be recorded, got %+v", pa)
	}
	if pa.Preserved != dataflow.AllYes {
		t.Errorf("tainted must preserve every category, got %s", pa.Preserved)
	}
	if !ann.AllowOverride {
		t.Errorf("allow_override must unlock the annotation")
	}
}

func TestParseDocblock_returnTaint(t *testing.T) {
	ann, _ := ParseDocblock(`/**
	 * @return-taint html, sql
	 */`)
	if !ann.HasReturn {
		t.Fatalf("expected a return annotation")
	}
	if !ann.Return.Has(dataflow.HTML | dataflow.SQL) {
		t.Errorf("return categories must be recorded, got %s", ann.Return)
	}
}

func TestParseDocblock_noAnnotation(t *testing.T) {
	if _, ok := ParseDocblock(`/** Just a doc. @param string $x */`); ok {
		t.Errorf("a docblock without taint annotations must report none")
	}
}

func TestParseDocblock_byRefAndVariadicParams(t *testing.T) {
	ann, _ := ParseDocblock("@param-taint &$out exec_shell\n@param-taint ...$rest none")
	if _, ok := ann.Params["out"]; !ok {
		t.Errorf("by-ref parameter names must parse, got %v", ann.Params)
	}
	if _, ok := ann.Params["rest"]; !ok {
		t.Errorf("variadic parameter names must parse, got %v", ann.Params)
	}
}
