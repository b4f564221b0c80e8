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

// A SymbolID is a stable identity for a variable, parameter or property. The analyzer
// keys its side-tables by SymbolID rather than attaching state to AST nodes.
type SymbolID string

// GlobalScopeName is the pseudo-function name of the top-level scope.
const GlobalScopeName = "{global}"

// VarSymbol returns the identity of a local variable in the given function scope.
// A nil function means the top-level scope.
func VarSymbol(f *FunctionInfo, name string) SymbolID {
	scope := GlobalScopeName
	if f != nil {
		scope = f.Name
	}
	return SymbolID(scope + "::$" + name)
}

// GlobalVarSymbol returns the identity of a variable in the global scope.
func GlobalVarSymbol(name string) SymbolID {
	return SymbolID(GlobalScopeName + "::$" + name)
}

// PropSymbol returns the identity of an instance property. Property state is tracked
// per declaring class, not per instance.
func PropSymbol(class string, prop string) SymbolID {
	return SymbolID(class + "->" + prop)
}

// StaticPropSymbol returns the identity of a static property.
func StaticPropSymbol(qualified string) SymbolID {
	return SymbolID(qualified)
}
