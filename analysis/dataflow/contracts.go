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

package dataflow

import (
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// PreservedTaintedness encodes which categories of a parameter's taint appear in a
// function's return value, per shape position. It lets a call site transfer argument
// taint to the call result without re-analyzing the callee.
type PreservedTaintedness struct {
	shape *Taintedness
}

// NewPreservedTaintedness returns a preserved-taint projection from its shape; the
// flags at every position are the categories that flow through.
func NewPreservedTaintedness(shape *Taintedness) *PreservedTaintedness {
	if shape == nil {
		shape = SafeTaint()
	}
	return &PreservedTaintedness{shape: shape}
}

// PreserveNone returns the empty projection.
func PreserveNone() *PreservedTaintedness {
	return NewPreservedTaintedness(SafeTaint())
}

// IsEmpty returns true when nothing preserves.
func (p *PreservedTaintedness) IsEmpty() bool {
	return p == nil || p.shape.Collapse() == 0
}

// Clone returns a deep copy.
func (p *PreservedTaintedness) Clone() *PreservedTaintedness {
	if p == nil {
		return nil
	}
	return &PreservedTaintedness{shape: p.shape.Clone()}
}

// MergeWith joins other into the receiver and reports whether anything was added.
func (p *PreservedTaintedness) MergeWith(other *PreservedTaintedness) bool {
	if other == nil {
		return false
	}
	before := p.shape.Clone()
	p.shape.MergeWith(other.shape)
	return !p.shape.Equals(before)
}

// AsTaintednessForArgument applies the projection to an argument's taint: the result
// has the projection's shape, and at every position carries the argument's collapsed
// categories restricted to the categories that preserve there.
func (p *PreservedTaintedness) AsTaintednessForArgument(arg *Taintedness) *Taintedness {
	if p == nil || arg == nil {
		return SafeTaint()
	}
	argFlags := arg.Collapse() & AllYes
	return p.applyFlags(p.shape, argFlags)
}

func (p *PreservedTaintedness) applyFlags(node *Taintedness, argFlags Flags) *Taintedness {
	if node == nil {
		return nil
	}
	res := NewTaintedness((node.flags & argFlags).WithSQLImplied())
	for k, child := range node.known {
		sub := p.applyFlags(child, argFlags)
		if sub.Collapse() != 0 {
			if res.known == nil {
				res.known = map[Offset]*Taintedness{}
			}
			res.known[k] = sub
		}
	}
	if node.unknown != nil {
		sub := p.applyFlags(node.unknown, argFlags)
		if sub.Collapse() != 0 {
			res.unknown = sub
		}
	}
	return res
}

// Shape exposes the underlying taintedness for rendering and tests.
func (p *PreservedTaintedness) Shape() *Taintedness {
	if p == nil {
		return SafeTaint()
	}
	return p.shape
}

// FunctionTaintedness is the inferred contract of one function: the taint of its
// return value, per-parameter sink behavior, per-parameter preserved taint, and the
// taint it writes back into by-reference parameters. Contracts are monotone under
// re-analysis: bits are added, never removed, unless the contract is locked by a
// NoOverride annotation.
type FunctionTaintedness struct {
	Func *lang.FunctionInfo

	// Overall is the taint of the return value regardless of arguments
	Overall *Taintedness

	// Params holds the sink taintedness of each positional parameter: exec bits mean
	// the parameter position sinks that category. Meta-flags RawParam and ArrayOk
	// adjust the per-parameter sink behavior.
	Params []*Taintedness

	// Preserved holds, per positional parameter, the projection of the parameter's
	// taint into the return value
	Preserved []*PreservedTaintedness

	// ByRef holds the taint the function leaves in each by-reference parameter
	ByRef []*Taintedness

	// Variadic* describe the variadic tail when VariadicIndex >= 0
	VariadicIndex     int
	Variadic          *Taintedness
	VariadicPreserved *PreservedTaintedness

	// Locked marks contracts from annotations or built-in summaries that refinement
	// must not override
	Locked bool
}

// NewFunctionTaintedness returns a safe default contract for f: nothing sinks,
// nothing preserves, the return is safe.
func NewFunctionTaintedness(f *lang.FunctionInfo) *FunctionTaintedness {
	n := 0
	variadic := -1
	if f != nil {
		n = len(f.Params)
		variadic = f.VariadicIndex()
	}
	ft := &FunctionTaintedness{
		Func:          f,
		Overall:       SafeTaint(),
		Params:        make([]*Taintedness, n),
		Preserved:     make([]*PreservedTaintedness, n),
		ByRef:         make([]*Taintedness, n),
		VariadicIndex: variadic,
	}
	for i := 0; i < n; i++ {
		ft.Params[i] = SafeTaint()
		ft.Preserved[i] = PreserveNone()
		ft.ByRef[i] = SafeTaint()
	}
	if variadic >= 0 {
		ft.Variadic = SafeTaint()
		ft.VariadicPreserved = PreserveNone()
	}
	return ft
}

// ParamSink returns the sink taintedness at argument position i, mapping positions
// beyond the variadic parameter onto the variadic entry. Never nil.
func (ft *FunctionTaintedness) ParamSink(i int) *Taintedness {
	if ft.VariadicIndex >= 0 && i >= ft.VariadicIndex {
		if ft.Variadic == nil {
			return SafeTaint()
		}
		return ft.Variadic
	}
	if i < 0 || i >= len(ft.Params) || ft.Params[i] == nil {
		return SafeTaint()
	}
	return ft.Params[i]
}

// ParamPreserved returns the preserved-taint projection at argument position i,
// mapping variadic positions onto the variadic entry. Never nil.
func (ft *FunctionTaintedness) ParamPreserved(i int) *PreservedTaintedness {
	if ft.VariadicIndex >= 0 && i >= ft.VariadicIndex {
		if ft.VariadicPreserved == nil {
			return PreserveNone()
		}
		return ft.VariadicPreserved
	}
	if i < 0 || i >= len(ft.Preserved) || ft.Preserved[i] == nil {
		return PreserveNone()
	}
	return ft.Preserved[i]
}

// ParamByRef returns the by-reference write-back taint at position i, or nil when
// i is outside the parameter list. A parameter the function never writes yields
// the safe taintedness of the default contract.
func (ft *FunctionTaintedness) ParamByRef(i int) *Taintedness {
	if i < 0 || i >= len(ft.ByRef) {
		return nil
	}
	return ft.ByRef[i]
}

// AddParamSinkFlags ORs sink flags into the parameter slot at position i and reports
// whether the contract changed. Locked contracts and NoOverride parameter slots are
// left alone. This is the back-propagation entry point of the sink protocol.
func (ft *FunctionTaintedness) AddParamSinkFlags(i int, flags Flags) bool {
	if ft.Locked {
		return false
	}
	target := ft.paramSlot(i)
	if target == nil || target.Get().Has(NoOverride) {
		return false
	}
	added := flags.WithSQLImplied() &^ target.Get()
	if added == 0 {
		return false
	}
	target.AddFlags(added)
	return true
}

func (ft *FunctionTaintedness) paramSlot(i int) *Taintedness {
	if ft.VariadicIndex >= 0 && i >= ft.VariadicIndex {
		if ft.Variadic == nil {
			ft.Variadic = SafeTaint()
		}
		return ft.Variadic
	}
	if i < 0 || i >= len(ft.Params) {
		return nil
	}
	if ft.Params[i] == nil {
		ft.Params[i] = SafeTaint()
	}
	return ft.Params[i]
}

// MergeWith joins other into the receiver monotonically and reports whether any bit
// was added. A locked receiver is never modified.
func (ft *FunctionTaintedness) MergeWith(other *FunctionTaintedness) bool {
	if other == nil || ft.Locked {
		return false
	}
	changed := false
	if other.Overall != nil {
		before := ft.Overall.Clone()
		ft.Overall.MergeWith(other.Overall)
		changed = changed || !ft.Overall.Equals(before)
	}
	for i := range other.Params {
		if i >= len(ft.Params) {
			break
		}
		if other.Params[i] != nil && !ft.Params[i].Get().Has(NoOverride) {
			before := ft.Params[i].Clone()
			ft.Params[i].MergeWith(other.Params[i])
			changed = changed || !ft.Params[i].Equals(before)
		}
		if other.Preserved[i] != nil {
			changed = ft.Preserved[i].MergeWith(other.Preserved[i]) || changed
		}
		if other.ByRef[i] != nil {
			before := ft.ByRef[i].Clone()
			ft.ByRef[i].MergeWith(other.ByRef[i])
			changed = changed || !ft.ByRef[i].Equals(before)
		}
	}
	if other.Variadic != nil {
		if ft.Variadic == nil {
			ft.Variadic = SafeTaint()
		}
		before := ft.Variadic.Clone()
		ft.Variadic.MergeWith(other.Variadic)
		changed = changed || !ft.Variadic.Equals(before)
	}
	if other.VariadicPreserved != nil {
		if ft.VariadicPreserved == nil {
			ft.VariadicPreserved = PreserveNone()
		}
		changed = ft.VariadicPreserved.MergeWith(other.VariadicPreserved) || changed
	}
	return changed
}

// SetByRef records the taint the function leaves in by-reference parameter i. The
// write joins into the existing value, keeping the contract monotone.
func (ft *FunctionTaintedness) SetByRef(i int, taint *Taintedness) bool {
	if ft.Locked || i < 0 || i >= len(ft.ByRef) || taint == nil {
		return false
	}
	if ft.ByRef[i] == nil {
		ft.ByRef[i] = SafeTaint()
	}
	before := ft.ByRef[i].Clone()
	ft.ByRef[i].MergeWith(taint)
	return !ft.ByRef[i].Equals(before)
}

// FunctionCausedByLines stores, per function, the cause trails that explain the
// contract: one for the overall return taint and one per parameter slot.
type FunctionCausedByLines struct {
	Overall  *CausedByLines
	Params   []*CausedByLines
	Variadic *CausedByLines
}

// NewFunctionCausedByLines returns empty trails sized for f.
func NewFunctionCausedByLines(f *lang.FunctionInfo) *FunctionCausedByLines {
	n := 0
	if f != nil {
		n = len(f.Params)
	}
	fc := &FunctionCausedByLines{
		Overall: NewCausedByLines(),
		Params:  make([]*CausedByLines, n),
	}
	for i := 0; i < n; i++ {
		fc.Params[i] = NewCausedByLines()
	}
	if f != nil && f.VariadicIndex() >= 0 {
		fc.Variadic = NewCausedByLines()
	}
	return fc
}

// ParamCauses returns the trail for argument position i, mapping positions past the
// declared parameter list onto the variadic trail. Never nil.
func (fc *FunctionCausedByLines) ParamCauses(i int) *CausedByLines {
	if fc.Variadic != nil && i >= len(fc.Params) {
		return fc.Variadic
	}
	if i < 0 || i >= len(fc.Params) || fc.Params[i] == nil {
		return NewCausedByLines()
	}
	return fc.Params[i]
}

// MergeWith unions other's trails into the receiver's.
func (fc *FunctionCausedByLines) MergeWith(other *FunctionCausedByLines) {
	if other == nil {
		return
	}
	fc.Overall.MergeWith(other.Overall)
	for i := range other.Params {
		if i < len(fc.Params) {
			fc.Params[i].MergeWith(other.Params[i])
		}
	}
	if other.Variadic != nil {
		if fc.Variadic == nil {
			fc.Variadic = NewCausedByLines()
		}
		fc.Variadic.MergeWith(other.Variadic)
	}
}
