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

// Package graphutil is an abstraction over the analyzer's call graph to work with
// existing graph libraries. FuncGraph satisfies yourbasic/graph's Iterator, which
// drives the strongly-connected-component and topological passes of the scheduler.
package graphutil

import (
	"sort"

	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// FuncGraph is the syntactic call graph of a code base: one node per function with a
// body, one edge per statically resolvable call.
type FuncGraph struct {
	// the order of the graph
	order int

	// IDMap maps node IDs to functions
	IDMap map[int64]*lang.FunctionInfo

	// IDs is the inverse of IDMap
	IDs map[*lang.FunctionInfo]int64

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency set: Edges[x][y] means x calls y
	Edges map[int64]map[int64]bool
}

// NewFuncGraph builds the call graph over funcs, asking callees for the statically
// resolvable callees of each function. Callees outside funcs are ignored.
func NewFuncGraph(funcs []*lang.FunctionInfo, callees func(*lang.FunctionInfo) []*lang.FunctionInfo) FuncGraph {
	n := len(funcs)
	idmap := make(map[int64]*lang.FunctionInfo, n)
	ids := make(map[*lang.FunctionInfo]int64, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, 0, n)

	for i, f := range funcs {
		id := int64(i)
		idmap[id] = f
		ids[f] = id
		edges[id] = map[int64]bool{}
		keys = append(keys, id)
	}
	for _, f := range funcs {
		for _, callee := range callees(f) {
			if calleeID, ok := ids[callee]; ok {
				edges[ids[f]][calleeID] = true
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return FuncGraph{
		order: n,
		IDMap: idmap,
		IDs:   ids,
		Keys:  keys,
		Edges: edges,
	}
}

// Order implements the yourbasic graph.Iterator interface.
func (g FuncGraph) Order() int {
	return g.order
}

// Visit implements the yourbasic graph.Iterator interface.
func (g FuncGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for w := range g.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}
