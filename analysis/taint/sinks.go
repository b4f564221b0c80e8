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

// checkSimpleSink runs the sink protocol for a hard-coded, shapeless sink position
// (echo, eval, backticks, ...).
func (v *visitor) checkSimpleSink(n *lang.Node, sinkFlags dataflow.Flags, res ExprResult, context string) {
	v.checkSink(n.Line, dataflow.NewTaintedness(sinkFlags), res, context, nil)
}

// checkSink is the sink protocol: intersect the value against the sink's shape,
// emit a diagnostic when dangerous categories remain, and back-propagate the sink
// flags into the contracts of every function parameter the value derives from.
// extraTrail carries the callee-side trail of annotated parameter sinks.
func (v *visitor) checkSink(line int, sinkTaint *dataflow.Taintedness, res ExprResult, context string, extraTrail *dataflow.CausedByLines) {
	sinkExec := sinkTaint.Collapse() & dataflow.AllExec
	if sinkExec == 0 {
		return
	}

	dangerous := dataflow.IntersectForSink(sinkTaint.AsExecToYes(), res.Taint).Collapse() & dataflow.AllYes
	if dangerous != 0 && !v.cfg.IsFalsePositive(v.funcName(), v.fileName()) {
		trail := res.Causes.RelevantFor(dangerous).Clone()
		if extraTrail != nil {
			trail.MergeWith(extraTrail)
		}
		v.issues.Add(&Issue{
			File:       v.fileName(),
			Line:       line,
			Categories: dangerous,
			Sink:       context,
			Function:   v.funcName(),
			Trail:      trail,
		})
	}

	v.backPropagateSink(line, sinkExec, res)
}

// backPropagateSink teaches the contracts: for every (function, parameter) link
// recorded anywhere in the value, the parameter slot gains the sink's exec bits,
// restricted by the link's category filter. This is how the analyzer learns that a
// function's parameter ends up in a sink.
func (v *visitor) backPropagateSink(line int, sinkExec dataflow.Flags, res ExprResult) {
	for f, links := range res.Links.CollapsedLinks() {
		for _, i := range links.ParamIndexes() {
			add := sinkExec & links.Filter(i).YesToExec()
			if add == 0 {
				continue
			}
			ft := v.state.EnsureContract(f)
			if ft.AddParamSinkFlags(i, add) {
				v.state.MarkChanged()
				fc := v.state.CausesOf(f)
				trail := res.Causes.ForParam(f, i)
				trail.AddLine(v.fileName(), line, dataflow.NewTaintedness(add.ExecToYes()), nil)
				fc.ParamCauses(i).MergeWith(trail)
			}
		}
	}
}
