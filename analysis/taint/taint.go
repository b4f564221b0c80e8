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

// Package taint implements the taint-flow analysis: the propagation visitor over
// the program's AST, shape-aware assignment, the call handler, the sink protocol
// and the fixpoint driver that refines per-function contracts until nothing
// changes.
package taint

import (
	"time"

	"github.com/webtaint-tools/webtaint/analysis/annotations"
	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
	"github.com/webtaint-tools/webtaint/analysis/summaries"
)

// AnalysisResult is what a whole-program analysis returns.
type AnalysisResult struct {
	// Issues contains all findings of the final pass, sorted by position
	Issues []*Issue

	// Passes is the number of fixpoint passes that ran
	Passes int

	// State is the analyzer state at the end of the analysis, for callers that
	// want to inspect contracts or chain another analysis
	State *dataflow.AnalyzerState

	// Stats aggregates per-function timing data
	Stats *Stats
}

// Analyze runs the taint analysis over the code base until the contracts reach a
// fixpoint or the configured pass bound is hit. Functions are analyzed callee-first
// so most contracts are complete when their call sites are visited; the monotone
// changed predicate decides whether another pass is warranted.
func Analyze(cfg *config.Config, logger *config.LogGroup, cb *lang.CodeBase) AnalysisResult {
	state := dataflow.NewAnalyzerState(cfg, logger, cb)
	collector := NewCollector(cfg)
	stats := NewStats()

	seedAnnotatedContracts(state, cb)
	order := AnalysisOrder(cb)
	logger.Debugf("analyzing %d functions in callee-first order", len(order))

	passes := 0
	prevEnd := state.SymbolsSnapshot()
	for pass := 1; pass <= cfg.MaxPasses; pass++ {
		passes = pass
		state.ResetChanged()
		collector.Reset()

		for _, f := range order {
			start := time.Now()
			if state.MarkInProgress(f) {
				analyzeFunctionBody(state, collector, f)
				state.DoneInProgress(f)
			}
			stats.Record(f.Name, time.Since(start))
		}
		for _, file := range cb.Files {
			start := time.Now()
			v := newVisitor(state, collector, file, nil)
			v.visitStmt(file.Root)
			stats.Record(lang.GlobalScopeName+" "+file.Name, time.Since(start))
		}

		grew := state.SymbolsGrewSince(prevEnd)
		prevEnd = state.SymbolsSnapshot()
		logger.Debugf("pass %d done, contracts changed=%v, symbols grew=%v",
			pass, state.Changed(), grew)
		if !state.Changed() && !grew {
			break
		}
	}

	return AnalysisResult{
		Issues: collector.Issues(),
		Passes: passes,
		State:  state,
		Stats:  stats,
	}
}

// seedAnnotatedContracts installs the contracts of docblock-annotated functions
// before the first pass, so call sites see them regardless of analysis order.
func seedAnnotatedContracts(state *dataflow.AnalyzerState, cb *lang.CodeBase) {
	for _, f := range cb.Functions() {
		if f.Docblock == "" {
			continue
		}
		if ann, ok := annotations.ParseDocblock(f.Docblock); ok {
			state.SetContract(f, summaries.ContractFromAnnotation(f, ann))
		}
	}
}

// analyzeFunctionBody runs the propagation visitor over one function: parameters
// are seeded with their links, the body is walked, and the by-reference post-state
// is folded into the contract. The caller guards re-entrancy via MarkInProgress.
func analyzeFunctionBody(state *dataflow.AnalyzerState, issues *Collector, f *lang.FunctionInfo) {
	if f.Body == nil {
		return
	}
	state.EnsureContract(f)

	for i, p := range f.Params {
		ann := dataflow.NewSymbolAnnotation()
		ann.Links = dataflow.LinksForParam(f, i)
		state.SetSymbol(lang.VarSymbol(f, p.Name), ann)
	}

	file := &lang.SourceFile{Name: f.File}
	v := newVisitor(state, issues, file, f)
	v.visitStmt(f.Body)

	ft := state.EnsureContract(f)
	for i, p := range f.Params {
		if !p.ByRef {
			continue
		}
		if a := state.SymbolOf(lang.VarSymbol(f, p.Name)); a != nil {
			if ft.SetByRef(i, a.Taint.Without(dataflow.AllExec)) {
				state.MarkChanged()
				state.CausesOf(f).ParamCauses(i).MergeWith(a.Causes)
			}
		}
	}
}
