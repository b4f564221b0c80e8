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
	"github.com/webtaint-tools/webtaint/analysis/lang"
	"github.com/webtaint-tools/webtaint/internal/funcutil"
	"github.com/webtaint-tools/webtaint/internal/graphutil"
	"github.com/yourbasic/graph"
)

// BuildCallGraph builds the syntactic call graph of the code base: edges go from
// caller to every statically resolvable callee with a body.
func BuildCallGraph(cb *lang.CodeBase) graphutil.FuncGraph {
	var funcs []*lang.FunctionInfo
	for _, f := range cb.Functions() {
		if f.Body != nil {
			funcs = append(funcs, f)
		}
	}
	return graphutil.NewFuncGraph(funcs, func(f *lang.FunctionInfo) []*lang.FunctionInfo {
		var out []*lang.FunctionInfo
		for _, name := range lang.CalledNames(f.Body) {
			if callee, ok := cb.FunctionNamed(name); ok && callee.Body != nil {
				out = append(out, callee)
			} else if callee, ok := cb.MethodNamed(f.Class, name); ok && callee.Body != nil {
				out = append(out, callee)
			}
		}
		return out
	})
}

// AnalysisOrder returns the functions of the code base callee-first: the strongly
// connected components of the call graph are condensed and topologically sorted, and
// emitted leaves first. Within a cycle the order is arbitrary; the fixpoint passes
// absorb the imprecision.
func AnalysisOrder(cb *lang.CodeBase) []*lang.FunctionInfo {
	fg := BuildCallGraph(cb)
	if fg.Order() == 0 {
		return nil
	}

	components := graph.StrongComponents(fg)

	// condensation: one node per component, edges follow the call edges
	compOf := make(map[int64]int, fg.Order())
	for ci, comp := range components {
		for _, v := range comp {
			compOf[int64(v)] = ci
		}
	}
	cond := graph.New(len(components))
	for from, tos := range fg.Edges {
		for to := range tos {
			cf, ct := compOf[from], compOf[to]
			if cf != ct {
				cond.Add(cf, ct)
			}
		}
	}

	order, ok := graph.TopSort(cond)
	if !ok {
		// the condensation of a directed graph is acyclic; falling back to the raw
		// component order keeps the analysis going regardless
		order = make([]int, len(components))
		for i := range order {
			order[i] = i
		}
	}

	// edges point caller -> callee, so the topological order lists callers first;
	// reverse it to analyze callees before their callers
	var out []*lang.FunctionInfo
	for _, ci := range order {
		for _, v := range components[ci] {
			out = append(out, fg.IDMap[int64(v)])
		}
	}
	funcutil.Reverse(out)
	return out
}
