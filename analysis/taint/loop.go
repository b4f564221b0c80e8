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

import "github.com/webtaint-tools/webtaint/analysis/lang"

// visitBranches joins the symbol tables of the two sides of a conditional: each
// branch runs on the state before the conditional, and the results are OR-merged.
// There is no path-sensitive pruning.
func (v *visitor) visitBranches(then *lang.Node, els *lang.Node) {
	before := v.state.SymbolsSnapshot()
	v.visitStmt(then)
	afterThen := v.state.SymbolsSnapshot()
	v.state.RestoreSymbols(before)
	if els != nil {
		v.visitStmt(els)
	}
	v.state.MergeSymbols(afterThen)
}

// visitLoop performs a one-shot widening before committing the loop body: the body
// runs once on a scratch table whose effects are joined back into the pre-loop
// state, then runs again so loop-carried taint reaches every use. The issues of the
// widening run and the real run de-duplicate in the collector.
func (v *visitor) visitLoop(cond *lang.Node, body *lang.Node) {
	if cond != nil {
		v.visitExpr(cond)
	}
	if body == nil {
		return
	}
	before := v.state.SymbolsSnapshot()
	v.visitStmt(body)
	after := v.state.SymbolsSnapshot()
	v.state.RestoreSymbols(before)
	v.state.MergeSymbols(after)

	v.visitStmt(body)
	if cond != nil {
		v.visitExpr(cond)
	}
}
