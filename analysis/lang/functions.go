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

package lang

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ParamInfo describes one formal parameter of a function.
type ParamInfo struct {
	Name     string
	ByRef    bool
	Variadic bool

	// TypeHint is the declared type of the parameter, empty when undeclared
	TypeHint string
}

// FunctionInfo is the analyzer's view of one function, method or closure.
type FunctionInfo struct {
	// Name is the fully qualified name. Methods use "Class::method".
	Name string

	// Class is the declaring class, empty for free functions and closures
	Class string

	File string
	Line int

	Params []ParamInfo

	// ReturnTypeHint is the declared return type, empty when undeclared
	ReturnTypeHint string

	// Docblock is the raw docblock attached to the declaration
	Docblock string

	// Body is nil for built-in functions
	Body *Node

	// IsBuiltin marks functions known from the built-in summaries rather than source
	IsBuiltin bool
}

// VariadicIndex returns the position of the variadic parameter, or -1.
func (f *FunctionInfo) VariadicIndex() int {
	for i, p := range f.Params {
		if p.Variadic {
			return i
		}
	}
	return -1
}

// ParamIndex returns the position of the named parameter, or -1.
func (f *FunctionInfo) ParamIndex(name string) int {
	for i, p := range f.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (f *FunctionInfo) String() string {
	return f.Name
}

// ClassInfo is the analyzer's view of one class declaration.
type ClassInfo struct {
	Name   string
	Parent string
	File   string
	Line   int

	Methods map[string]*FunctionInfo // keyed by lower-cased method name
	Props   []string
}

// A SourceFile is one parsed file: its name and the root of its AST. Top-level code
// (outside any function) hangs off Root directly.
type SourceFile struct {
	Name string
	Root *Node
}

// CodeBase is the registry of everything the analyzer knows about the program:
// functions, classes and parsed files. Function and class lookups are
// case-insensitive, matching the analyzed language's resolution rules.
type CodeBase struct {
	funcs   map[string]*FunctionInfo
	classes map[string]*ClassInfo
	Files   []*SourceFile
}

// NewCodeBase returns an empty code base.
func NewCodeBase() *CodeBase {
	return &CodeBase{
		funcs:   map[string]*FunctionInfo{},
		classes: map[string]*ClassInfo{},
	}
}

// AddFunction registers a function or method. Re-declarations keep the first one.
func (cb *CodeBase) AddFunction(f *FunctionInfo) {
	key := strings.ToLower(f.Name)
	if _, ok := cb.funcs[key]; !ok {
		cb.funcs[key] = f
	}
	if f.Class != "" {
		if cls, ok := cb.classes[strings.ToLower(f.Class)]; ok {
			name := f.Name
			if i := strings.LastIndex(name, "::"); i >= 0 {
				name = name[i+2:]
			}
			cls.Methods[strings.ToLower(name)] = f
		}
	}
}

// AddClass registers a class declaration.
func (cb *CodeBase) AddClass(c *ClassInfo) {
	if c.Methods == nil {
		c.Methods = map[string]*FunctionInfo{}
	}
	cb.classes[strings.ToLower(c.Name)] = c
}

// FunctionNamed resolves a function by name, case-insensitively.
func (cb *CodeBase) FunctionNamed(name string) (*FunctionInfo, bool) {
	f, ok := cb.funcs[strings.ToLower(name)]
	return f, ok
}

// MethodNamed resolves a method on a class, walking up the parent chain.
func (cb *CodeBase) MethodNamed(class string, method string) (*FunctionInfo, bool) {
	seen := map[string]bool{}
	for class != "" && !seen[strings.ToLower(class)] {
		seen[strings.ToLower(class)] = true
		cls, ok := cb.classes[strings.ToLower(class)]
		if !ok {
			return nil, false
		}
		if m, ok := cls.Methods[strings.ToLower(method)]; ok {
			return m, true
		}
		class = cls.Parent
	}
	return nil, false
}

// ClassNamed resolves a class by name, case-insensitively.
func (cb *CodeBase) ClassNamed(name string) (*ClassInfo, bool) {
	c, ok := cb.classes[strings.ToLower(name)]
	return c, ok
}

// Functions returns all registered functions in a deterministic order.
func (cb *CodeBase) Functions() []*FunctionInfo {
	keys := maps.Keys(cb.funcs)
	slices.Sort(keys)
	fns := make([]*FunctionInfo, 0, len(keys))
	for _, k := range keys {
		fns = append(fns, cb.funcs[k])
	}
	return fns
}
