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
	"testing"

	"github.com/webtaint-tools/webtaint/analysis/dataflow"
)

func TestSuperglobals_requestInputs(t *testing.T) {
	for _, name := range []string{"_GET", "_POST", "_REQUEST", "_COOKIE", "_SERVER",
		"_SESSION", "_ENV", "GLOBALS", "argv", "http_response_header"} {
		taint, ok := SuperglobalTaint(name)
		if !ok {
			t.Errorf("%s must be a superglobal", name)
			continue
		}
		if !taint.Collapse().HasAny(dataflow.HTML) {
			t.Errorf("%s must carry user input, got %s", name, taint)
		}
	}
}

func TestSuperglobals_argcIsSafe(t *testing.T) {
	taint, ok := SuperglobalTaint("argc")
	if !ok {
		t.Fatalf("argc must be a superglobal")
	}
	if !taint.IsSafe() {
		t.Errorf("argc is an integer and carries no taint, got %s", taint)
	}
}

func TestSuperglobals_uploadsAreShaped(t *testing.T) {
	taint, ok := SuperglobalTaint("_FILES")
	if !ok {
		t.Fatalf("_FILES must be a superglobal")
	}
	entry := taint.ProjectOffset(nil)

	name := dataflow.StrOffset("name")
	if !entry.ProjectOffset(&name).Get().HasAny(dataflow.HTML) {
		t.Errorf("the client-controlled name entry must be tainted")
	}
	tmp := dataflow.StrOffset("tmp_name")
	if entry.ProjectOffset(&tmp).Get().HasAny(dataflow.AllYes) {
		t.Errorf("the runtime-controlled tmp_name entry must be safe, got %s",
			entry.ProjectOffset(&tmp))
	}
	if !taint.KeyFlags().HasAny(dataflow.HTML) {
		t.Errorf("upload keys are client-controlled")
	}
}

func TestSuperglobals_unknownName(t *testing.T) {
	if IsSuperglobal("not_a_superglobal") {
		t.Errorf("unknown names must not be superglobals")
	}
}
