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

import "github.com/webtaint-tools/webtaint/analysis/dataflow"

// inputTaint returns the shape of a request superglobal: the container itself is
// clean, every element and every key is user input.
func inputTaint() *dataflow.Taintedness {
	t := dataflow.SafeTaint()
	t.AddKeyFlags(dataflow.UserInput)
	t.SetOffset(nil, dataflow.NewTaintedness(dataflow.UserInput), false)
	return t
}

// uploadsTaint returns the shape of the file-upload superglobal: per upload, the
// client-controlled name and type entries are tainted while tmp_name, error and size
// come from the runtime; keys are client-controlled.
func uploadsTaint() *dataflow.Taintedness {
	entry := dataflow.SafeTaint()
	name := dataflow.StrOffset("name")
	typ := dataflow.StrOffset("type")
	tmp := dataflow.StrOffset("tmp_name")
	errk := dataflow.StrOffset("error")
	size := dataflow.StrOffset("size")
	entry.SetOffset(&name, dataflow.NewTaintedness(dataflow.UserInput), true)
	entry.SetOffset(&typ, dataflow.NewTaintedness(dataflow.UserInput), true)
	entry.SetOffset(&tmp, dataflow.SafeTaint(), true)
	entry.SetOffset(&errk, dataflow.SafeTaint(), true)
	entry.SetOffset(&size, dataflow.SafeTaint(), true)

	t := dataflow.SafeTaint()
	t.AddKeyFlags(dataflow.UserInput)
	t.SetOffset(nil, entry, false)
	return t
}

// superglobalBuilders maps the well-known input-source identifiers to their taint.
var superglobalBuilders = map[string]func() *dataflow.Taintedness{
	"_GET":                 inputTaint,
	"_POST":                inputTaint,
	"_REQUEST":             inputTaint,
	"_COOKIE":              inputTaint,
	"_SERVER":              inputTaint,
	"_SESSION":             inputTaint,
	"_ENV":                 inputTaint,
	"_FILES":               uploadsTaint,
	"GLOBALS":              inputTaint,
	"argv":                 func() *dataflow.Taintedness { return dataflow.NewTaintedness(dataflow.UserInput) },
	"argc":                 dataflow.SafeTaint,
	"http_response_header": func() *dataflow.Taintedness { return dataflow.NewTaintedness(dataflow.UserInput) },
}

// SuperglobalTaint returns the hardcoded taint of a superglobal read, and whether
// the name is a superglobal at all.
func SuperglobalTaint(name string) (*dataflow.Taintedness, bool) {
	if build, ok := superglobalBuilders[name]; ok {
		return build(), true
	}
	return nil, false
}

// IsSuperglobal returns true when the name denotes a well-known input source.
func IsSuperglobal(name string) bool {
	_, ok := superglobalBuilders[name]
	return ok
}
