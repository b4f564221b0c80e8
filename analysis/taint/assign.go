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
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// assign writes the right-hand side triple into the left-hand side, walking complex
// targets: nested subscripts write shape-aware, destructuring distributes, property
// writes go to the per-class state. override distinguishes plain assignment from
// joining writes (branch-local, by-reference refinement).
func (v *visitor) assign(lhs *lang.Node, rhs ExprResult, override bool, line int) {
	if lhs == nil {
		return
	}
	// the trail of a stored value includes the line that stored it
	rhs = rhs.clone()
	if !rhs.Taint.IsSafe() {
		rhs.Causes.AddLine(v.fileName(), line, rhs.Taint, rhs.Links)
	}

	switch lhs.Kind {
	case lang.KindVar:
		v.assignSymbol(v.symbolID(lhs.Name), rhs, override)
		// writes through a "global" alias reach the global symbol as well
		if v.fn != nil && v.globals[lhs.Name] {
			v.assignSymbol(lang.GlobalVarSymbol(lhs.Name), rhs, override)
		}

	case lang.KindDim:
		v.assignDim(lhs, rhs, override)

	case lang.KindProp:
		if id, ok := v.propSymbol(lhs); ok {
			v.assignSymbol(id, rhs, override)
		}
		// a write through an unresolvable object is dropped silently

	case lang.KindStaticProp:
		v.assignSymbol(lang.StaticPropSymbol(lhs.Name), rhs, override)

	case lang.KindList, lang.KindArray:
		v.assignDestructuring(lhs, rhs, line)
	}
}

// assignSymbol writes a whole-symbol triple.
func (v *visitor) assignSymbol(id lang.SymbolID, rhs ExprResult, override bool) {
	var ann *dataflow.SymbolAnnotation
	if existing := v.state.SymbolOf(id); existing != nil && !override {
		ann = existing.Clone()
		ann.Taint.MergeWith(rhs.Taint)
		ann.Causes.MergeWith(rhs.Causes)
		ann.Links.MergeWith(rhs.Links)
	} else {
		ann = &dataflow.SymbolAnnotation{
			Taint:  rhs.Taint.Clone(),
			Causes: rhs.Causes.Clone(),
			Links:  rhs.Links.Clone(),
		}
	}
	v.state.SetSymbol(id, ann)
}

// assignDim walks a chain of subscripts down to its base symbol and writes the
// value at the collected offset path.
func (v *visitor) assignDim(lhs *lang.Node, rhs ExprResult, override bool) {
	base, path, keyTaints := v.collectDimPath(lhs)
	if base == nil {
		return
	}

	var id lang.SymbolID
	switch base.Kind {
	case lang.KindVar:
		id = v.symbolID(base.Name)
	case lang.KindProp:
		pid, ok := v.propSymbol(base)
		if !ok {
			return
		}
		id = pid
	case lang.KindStaticProp:
		id = lang.StaticPropSymbol(base.Name)
	default:
		return
	}

	ann := v.state.EnsureSymbol(id).Clone()
	ann.Taint.SetAtPath(path, keyTaints, rhs.Taint, override)
	ann.Links.SetAtPath(path, rhs.Links, override)
	ann.Causes.MergeWith(rhs.Causes)

	// numkey rule: writing an SQL-tainted string at an integer (or appended) key
	// flags the containing array
	last := path[len(path)-1]
	if (last == nil || last.IsInt()) && rhs.Taint.Collapse().HasAny(dataflow.SQL) {
		ann.Taint.SetAtPath(path[:len(path)-1], nil,
			dataflow.NewTaintedness(dataflow.SQLNumkey|dataflow.SQL), false)
	}

	v.state.SetSymbol(id, ann)
}

// collectDimPath flattens $base[k1][k2]... into the base node and the offset path
// in source order. Keys that cannot be resolved become nil offsets and contribute
// their own taint as key taint at that level. An absent index ($a[] = ...) is an
// unresolved offset with no key taint.
func (v *visitor) collectDimPath(n *lang.Node) (*lang.Node, []*dataflow.Offset, []dataflow.Flags) {
	var revPath []*dataflow.Offset
	var revKeys []dataflow.Flags
	cur := n
	for cur != nil && cur.Kind == lang.KindDim {
		idx := cur.Child(1)
		off := v.resolveOffset(idx)
		var keyTaint dataflow.Flags
		if off == nil && idx != nil {
			keyRes := v.visitExpr(idx)
			keyTaint = keyRes.Taint.Collapse() & dataflow.AllYes
		}
		revPath = append(revPath, off)
		revKeys = append(revKeys, keyTaint)
		cur = cur.Child(0)
	}
	if cur == nil {
		return nil, nil, nil
	}
	path := make([]*dataflow.Offset, len(revPath))
	keys := make([]dataflow.Flags, len(revKeys))
	for i := range revPath {
		path[len(revPath)-1-i] = revPath[i]
		keys[len(revKeys)-1-i] = revKeys[i]
	}
	return cur, path, keys
}

// assignDestructuring distributes the right-hand side over a list target: each slot
// receives the projection of the source at the slot's key, recursively.
func (v *visitor) assignDestructuring(lhs *lang.Node, rhs ExprResult, line int) {
	nextKey := int64(0)
	for _, elem := range lhs.Children {
		if elem == nil {
			nextKey++
			continue
		}
		var keyNode, target *lang.Node
		if elem.Kind == lang.KindArrayElem {
			keyNode, target = elem.Child(0), elem.Child(1)
		} else {
			target = elem
		}
		if target == nil {
			nextKey++
			continue
		}

		var off *dataflow.Offset
		if keyNode == nil {
			o := dataflow.IntOffset(nextKey)
			nextKey++
			off = &o
		} else if off = v.resolveOffset(keyNode); off == nil {
			v.visitExpr(keyNode)
		}

		slot := ExprResult{
			Taint:  rhs.Taint.ProjectOffset(off),
			Causes: rhs.Causes.Clone(),
			Links:  rhs.Links.ProjectOffset(off),
		}
		v.assign(target, slot, true, line)
	}
}
