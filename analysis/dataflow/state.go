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
	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// A SymbolAnnotation is the analysis state attached to one program symbol: its
// taintedness, the trail explaining it, and its parameter links. The analyzer owns
// this side-table; symbols themselves stay immutable.
type SymbolAnnotation struct {
	Taint  *Taintedness
	Causes *CausedByLines
	Links  *MethodLinks
}

// NewSymbolAnnotation returns a safe annotation.
func NewSymbolAnnotation() *SymbolAnnotation {
	return &SymbolAnnotation{
		Taint:  SafeTaint(),
		Causes: NewCausedByLines(),
		Links:  NewMethodLinks(),
	}
}

// Clone returns a deep copy of the annotation.
func (a *SymbolAnnotation) Clone() *SymbolAnnotation {
	if a == nil {
		return nil
	}
	return &SymbolAnnotation{
		Taint:  a.Taint.Clone(),
		Causes: a.Causes.Clone(),
		Links:  a.Links.Clone(),
	}
}

// MergeWith joins other into the receiver.
func (a *SymbolAnnotation) MergeWith(other *SymbolAnnotation) {
	if other == nil {
		return
	}
	a.Taint.MergeWith(other.Taint)
	a.Causes.MergeWith(other.Causes)
	a.Links.MergeWith(other.Links)
}

// AnalyzerState carries everything the analysis accumulates across passes: the code
// base, the symbol side-table, the per-function contracts with their cause trails,
// and the monotone changed predicate the fixpoint driver polls.
type AnalyzerState struct {
	Config *config.Config
	Logger *config.LogGroup

	CodeBase *lang.CodeBase

	symbols        map[lang.SymbolID]*SymbolAnnotation
	contracts      map[*lang.FunctionInfo]*FunctionTaintedness
	contractCauses map[*lang.FunctionInfo]*FunctionCausedByLines

	// inProgress guards against infinite recursion when a function's contract is
	// requested while the function itself is being analyzed
	inProgress map[*lang.FunctionInfo]bool

	changed bool
}

// NewAnalyzerState returns a fresh state over the given code base.
func NewAnalyzerState(cfg *config.Config, logger *config.LogGroup, cb *lang.CodeBase) *AnalyzerState {
	SetMaxShapeDepth(cfg.MaxShapeDepth)
	SetMaxCauseLines(cfg.MaxCauseLines)
	return &AnalyzerState{
		Config:         cfg,
		Logger:         logger,
		CodeBase:       cb,
		symbols:        map[lang.SymbolID]*SymbolAnnotation{},
		contracts:      map[*lang.FunctionInfo]*FunctionTaintedness{},
		contractCauses: map[*lang.FunctionInfo]*FunctionCausedByLines{},
		inProgress:     map[*lang.FunctionInfo]bool{},
	}
}

// SymbolOf returns the annotation for id, or nil when the symbol has no state yet.
func (s *AnalyzerState) SymbolOf(id lang.SymbolID) *SymbolAnnotation {
	return s.symbols[id]
}

// EnsureSymbol returns the annotation for id, creating a safe one when absent.
func (s *AnalyzerState) EnsureSymbol(id lang.SymbolID) *SymbolAnnotation {
	if a, ok := s.symbols[id]; ok {
		return a
	}
	a := NewSymbolAnnotation()
	s.symbols[id] = a
	return a
}

// SetSymbol stores the annotation for id, cloning it so the caller's value stays
// private. Symbol writes do not trip the changed predicate: symbols oscillate
// within a pass (an override can narrow them), so the fixpoint driver compares
// end-of-pass snapshots with SymbolsGrewSince instead.
func (s *AnalyzerState) SetSymbol(id lang.SymbolID, a *SymbolAnnotation) {
	s.symbols[id] = a.Clone()
}

// SymbolsGrewSince reports whether any symbol in the current table carries taint
// bits it did not carry in the snapshot. Growth of the symbol tables between two
// pass boundaries means another pass can still discover flows.
func (s *AnalyzerState) SymbolsGrewSince(snap map[lang.SymbolID]*SymbolAnnotation) bool {
	for id, cur := range s.symbols {
		prev, ok := snap[id]
		if !ok {
			if !cur.Taint.IsSafe() {
				return true
			}
			continue
		}
		joined := MergeTaint(prev.Taint, cur.Taint)
		if !joined.Equals(prev.Taint) {
			return true
		}
	}
	return false
}

// DropSymbol removes the annotation for id (unset support).
func (s *AnalyzerState) DropSymbol(id lang.SymbolID) {
	delete(s.symbols, id)
}

// SymbolsSnapshot returns a copy of the symbol table for branch joins. The values
// are cloned: writing through the snapshot does not alias live state.
func (s *AnalyzerState) SymbolsSnapshot() map[lang.SymbolID]*SymbolAnnotation {
	snap := make(map[lang.SymbolID]*SymbolAnnotation, len(s.symbols))
	for id, a := range s.symbols {
		snap[id] = a.Clone()
	}
	return snap
}

// RestoreSymbols replaces the symbol table with a snapshot.
func (s *AnalyzerState) RestoreSymbols(snap map[lang.SymbolID]*SymbolAnnotation) {
	s.symbols = snap
}

// MergeSymbols OR-merges the taint and unions the links and trails of every symbol
// in other into the current table. This is the branch-join operation.
func (s *AnalyzerState) MergeSymbols(other map[lang.SymbolID]*SymbolAnnotation) {
	for id, a := range other {
		if existing, ok := s.symbols[id]; ok {
			existing.MergeWith(a)
		} else {
			s.symbols[id] = a.Clone()
		}
	}
}

// ContractOf returns the stored contract for f, or nil.
func (s *AnalyzerState) ContractOf(f *lang.FunctionInfo) *FunctionTaintedness {
	return s.contracts[f]
}

// EnsureContract returns the contract for f, installing a safe default when absent.
// The safe default is what terminates recursive references.
func (s *AnalyzerState) EnsureContract(f *lang.FunctionInfo) *FunctionTaintedness {
	if ft, ok := s.contracts[f]; ok {
		return ft
	}
	ft := NewFunctionTaintedness(f)
	s.contracts[f] = ft
	return ft
}

// SetContract installs a contract wholesale (annotations, built-in summaries).
func (s *AnalyzerState) SetContract(f *lang.FunctionInfo, ft *FunctionTaintedness) {
	s.contracts[f] = ft
	s.changed = true
}

// MergeContract joins a newly inferred contract into f's stored one, monotonically.
func (s *AnalyzerState) MergeContract(f *lang.FunctionInfo, ft *FunctionTaintedness) {
	existing := s.EnsureContract(f)
	if existing.MergeWith(ft) {
		s.changed = true
	}
}

// CausesOf returns the contract trails for f, creating empty ones when absent.
func (s *AnalyzerState) CausesOf(f *lang.FunctionInfo) *FunctionCausedByLines {
	if fc, ok := s.contractCauses[f]; ok {
		return fc
	}
	fc := NewFunctionCausedByLines(f)
	s.contractCauses[f] = fc
	return fc
}

// MarkInProgress flags f as being analyzed; returns false when it already was.
func (s *AnalyzerState) MarkInProgress(f *lang.FunctionInfo) bool {
	if s.inProgress[f] {
		return false
	}
	s.inProgress[f] = true
	return true
}

// DoneInProgress clears the in-analysis flag for f.
func (s *AnalyzerState) DoneInProgress(f *lang.FunctionInfo) {
	delete(s.inProgress, f)
}

// ResetChanged clears the changed predicate at the start of a pass.
func (s *AnalyzerState) ResetChanged() {
	s.changed = false
}

// Changed reports whether any contract changed (or MarkChanged was called) since
// the last reset; symbol writes do not set it. The fixpoint driver stops when a
// whole pass leaves this false and SymbolsGrewSince reports no growth.
func (s *AnalyzerState) Changed() bool {
	return s.changed
}

// MarkChanged trips the changed predicate explicitly.
func (s *AnalyzerState) MarkChanged() {
	s.changed = true
}
