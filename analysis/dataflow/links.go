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
	"fmt"
	"sort"
	"strings"

	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// SingleFunctionLinks records through which parameters of one function a value was
// derived, with a per-parameter category filter restricting which taint categories
// flow through that parameter.
type SingleFunctionLinks struct {
	params map[int]Flags
}

// NewSingleFunctionLinks returns links through the single parameter index with the
// given category filter.
func NewSingleFunctionLinks(index int, filter Flags) *SingleFunctionLinks {
	return &SingleFunctionLinks{params: map[int]Flags{index: filter & AllYes}}
}

// AddParam records parameter index with the given filter, joining filters on repeats.
func (l *SingleFunctionLinks) AddParam(index int, filter Flags) {
	if l.params == nil {
		l.params = map[int]Flags{}
	}
	l.params[index] |= filter & AllYes
}

// Filter returns the category filter for the parameter index, zero when the
// parameter is not linked.
func (l *SingleFunctionLinks) Filter(index int) Flags {
	if l == nil {
		return SafeFlags
	}
	return l.params[index]
}

// ParamIndexes returns the linked parameter indexes in increasing order.
func (l *SingleFunctionLinks) ParamIndexes() []int {
	if l == nil {
		return nil
	}
	idx := make([]int, 0, len(l.params))
	for i := range l.params {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (l *SingleFunctionLinks) clone() *SingleFunctionLinks {
	res := &SingleFunctionLinks{params: make(map[int]Flags, len(l.params))}
	for i, f := range l.params {
		res.params[i] = f
	}
	return res
}

func (l *SingleFunctionLinks) mergeWith(other *SingleFunctionLinks) {
	for i, f := range other.params {
		l.AddParam(i, f)
	}
}

// A LinksSet maps functions to the parameter links recorded for one value position.
type LinksSet map[*lang.FunctionInfo]*SingleFunctionLinks

func (s LinksSet) clone() LinksSet {
	res := make(LinksSet, len(s))
	for f, l := range s {
		res[f] = l.clone()
	}
	return res
}

func (s LinksSet) mergeWith(other LinksSet) LinksSet {
	if s == nil && other == nil {
		return nil
	}
	if s == nil {
		s = LinksSet{}
	}
	for f, l := range other {
		if existing, ok := s[f]; ok {
			existing.mergeWith(l)
		} else {
			s[f] = l.clone()
		}
	}
	return s
}

// MethodLinks mirrors Taintedness at the structural level: a links set for the value
// at this depth, per-known-offset children and an unknown-offset child. It records,
// for every value, which formal parameters of which functions the value or any of
// its sub-offsets derives from.
type MethodLinks struct {
	links   LinksSet
	known   map[Offset]*MethodLinks
	unknown *MethodLinks
}

// NewMethodLinks returns empty links.
func NewMethodLinks() *MethodLinks {
	return &MethodLinks{}
}

// LinksForParam returns links recording derivation from parameter index of f, with
// every category allowed to flow.
func LinksForParam(f *lang.FunctionInfo, index int) *MethodLinks {
	return &MethodLinks{links: LinksSet{f: NewSingleFunctionLinks(index, AllYes)}}
}

// IsEmpty returns true when no link is recorded anywhere in the shape.
func (m *MethodLinks) IsEmpty() bool {
	if m == nil {
		return true
	}
	if len(m.links) > 0 {
		return false
	}
	for _, child := range m.known {
		if !child.IsEmpty() {
			return false
		}
	}
	return m.unknown.IsEmpty()
}

// Clone returns a deep copy sharing no structure with the receiver.
func (m *MethodLinks) Clone() *MethodLinks {
	if m == nil {
		return nil
	}
	res := &MethodLinks{}
	if m.links != nil {
		res.links = m.links.clone()
	}
	if m.known != nil {
		res.known = make(map[Offset]*MethodLinks, len(m.known))
		for k, child := range m.known {
			res.known[k] = child.Clone()
		}
	}
	if m.unknown != nil {
		res.unknown = m.unknown.Clone()
	}
	return res
}

// MergeWith unions other into the receiver at every depth. other is not modified.
func (m *MethodLinks) MergeWith(other *MethodLinks) {
	if other == nil {
		return
	}
	m.links = m.links.mergeWith(other.links)
	for k, oChild := range other.known {
		if tChild, ok := m.known[k]; ok {
			tChild.MergeWith(oChild)
		} else {
			if m.known == nil {
				m.known = map[Offset]*MethodLinks{}
			}
			m.known[k] = oChild.Clone()
		}
	}
	if other.unknown != nil {
		if m.unknown == nil {
			m.unknown = other.unknown.Clone()
		} else {
			m.unknown.MergeWith(other.unknown)
		}
	}
}

// MergeLinks returns the union of a and b without modifying either.
func MergeLinks(a *MethodLinks, b *MethodLinks) *MethodLinks {
	if a == nil {
		return b.Clone()
	}
	res := a.Clone()
	res.MergeWith(b)
	return res
}

// ProjectOffset returns the links of the element at the given offset, with the same
// resolution rules as Taintedness.ProjectOffset.
func (m *MethodLinks) ProjectOffset(off *Offset) *MethodLinks {
	if m == nil {
		return NewMethodLinks()
	}
	res := &MethodLinks{}
	if m.links != nil {
		res.links = m.links.clone()
	}
	if off == nil {
		for _, child := range m.known {
			res.MergeWith(child)
		}
		if m.unknown != nil {
			res.MergeWith(m.unknown)
		}
		return res
	}
	if child, ok := m.known[*off]; ok {
		res.MergeWith(child)
	}
	if m.unknown != nil {
		res.MergeWith(m.unknown)
	}
	return res
}

// SetAtPath writes links at the end of the offset path, with the same autovivify,
// override and depth-bound rules as Taintedness.SetAtPath.
func (m *MethodLinks) SetAtPath(path []*Offset, value *MethodLinks, override bool) {
	if len(path) == 0 {
		if override {
			*m = *value.Clone()
		} else {
			m.MergeWith(value)
		}
		return
	}
	cur := m
	for i, off := range path {
		if i == len(path)-1 {
			cur.setOffset(off, value, override)
			return
		}
		if i >= maxShapeDepth {
			cur.setOffset(nil, value.AsCollapsed(), false)
			return
		}
		cur = cur.descend(off)
	}
}

func (m *MethodLinks) setOffset(off *Offset, value *MethodLinks, override bool) {
	if off == nil {
		if m.unknown == nil {
			m.unknown = value.Clone()
		} else {
			m.unknown.MergeWith(value)
		}
		return
	}
	if m.known == nil {
		m.known = map[Offset]*MethodLinks{}
	}
	if existing, ok := m.known[*off]; ok && !override {
		existing.MergeWith(value)
		return
	}
	m.known[*off] = value.Clone()
}

func (m *MethodLinks) descend(off *Offset) *MethodLinks {
	if off == nil {
		if m.unknown == nil {
			m.unknown = NewMethodLinks()
		}
		return m.unknown
	}
	if m.known == nil {
		m.known = map[Offset]*MethodLinks{}
	}
	if child, ok := m.known[*off]; ok {
		return child
	}
	child := NewMethodLinks()
	m.known[*off] = child
	return child
}

// AsCollapsed flattens all depths into a single-level links value.
func (m *MethodLinks) AsCollapsed() *MethodLinks {
	res := &MethodLinks{links: m.CollapsedLinks()}
	return res
}

// CollapsedLinks returns the union of the links sets at every depth.
func (m *MethodLinks) CollapsedLinks() LinksSet {
	if m == nil {
		return nil
	}
	res := LinksSet{}
	res = res.mergeWith(m.links)
	for _, child := range m.known {
		res = res.mergeWith(child.CollapsedLinks())
	}
	if m.unknown != nil {
		res = res.mergeWith(m.unknown.CollapsedLinks())
	}
	return res
}

// HasLinkTo returns true when the value derives from parameter index of f at any
// depth.
func (m *MethodLinks) HasLinkTo(f *lang.FunctionInfo, index int) bool {
	if m == nil {
		return false
	}
	if l, ok := m.links[f]; ok {
		if _, linked := l.params[index]; linked {
			return true
		}
	}
	for _, child := range m.known {
		if child.HasLinkTo(f, index) {
			return true
		}
	}
	return m.unknown.HasLinkTo(f, index)
}

// PreservedTaintednessForParam walks the shape and builds, for every position, the
// set of categories that would preserve from parameter index of f to this position.
func (m *MethodLinks) PreservedTaintednessForParam(f *lang.FunctionInfo, index int) *PreservedTaintedness {
	t := m.preservedShape(f, index)
	if t == nil {
		t = SafeTaint()
	}
	return &PreservedTaintedness{shape: t}
}

func (m *MethodLinks) preservedShape(f *lang.FunctionInfo, index int) *Taintedness {
	if m == nil {
		return nil
	}
	var res *Taintedness
	if l, ok := m.links[f]; ok {
		if filter, linked := l.params[index]; linked {
			res = NewTaintedness(filter)
		}
	}
	for k, child := range m.known {
		if sub := child.preservedShape(f, index); sub != nil {
			if res == nil {
				res = SafeTaint()
			}
			off := k
			res.SetOffset(&off, sub, true)
		}
	}
	if m.unknown != nil {
		if sub := m.unknown.preservedShape(f, index); sub != nil {
			if res == nil {
				res = SafeTaint()
			}
			res.SetOffset(nil, sub, false)
		}
	}
	return res
}

func (m *MethodLinks) String() string {
	if m == nil {
		return "{}"
	}
	var parts []string
	for f, l := range m.links {
		idx := funcParamsString(l)
		parts = append(parts, fmt.Sprintf("%s(%s)", f.Name, idx))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

func funcParamsString(l *SingleFunctionLinks) string {
	var ps []string
	for _, i := range l.ParamIndexes() {
		ps = append(ps, fmt.Sprintf("#%d", i+1))
	}
	return strings.Join(ps, ",")
}
