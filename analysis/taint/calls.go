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
	"fmt"
	"strings"

	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
	"github.com/webtaint-tools/webtaint/analysis/summaries"
)

// visitCall handles a free function call. Dynamic callees through variables cannot
// be resolved and produce unknown.
func (v *visitor) visitCall(n *lang.Node) ExprResult {
	callee := n.Child(0)
	args := n.Children[1:]
	if callee == nil {
		return unknownResult()
	}
	if callee.Kind != lang.KindName {
		v.visitExpr(callee)
		v.visitArgsOnly(args)
		return unknownResult()
	}
	return v.applyCall(n.Line, v.resolveCallees(callee.Name), args)
}

// visitMethodCall handles method and static calls. Methods resolve through $this
// and the declaring class hierarchy; calls on objects of unknown class are unknown.
func (v *visitor) visitMethodCall(n *lang.Node) ExprResult {
	var args []*lang.Node
	var callee *lang.FunctionInfo

	if n.Kind == lang.KindMethodCall {
		obj := n.Child(0)
		args = n.Children[1:]
		v.visitExpr(obj)
		if obj != nil && obj.Kind == lang.KindVar && obj.Name == "this" && v.fn != nil && v.fn.Class != "" {
			if m, ok := v.state.CodeBase.MethodNamed(v.fn.Class, n.Name); ok {
				callee = m
			}
		}
	} else {
		args = n.Children
		if class, method, ok := splitStaticName(n.Name); ok {
			if m, found := v.state.CodeBase.MethodNamed(class, method); found {
				callee = m
			}
		}
	}

	if callee == nil {
		v.visitArgsOnly(args)
		return unknownResult()
	}
	return v.applyCall(n.Line, []*lang.FunctionInfo{callee}, args)
}

// visitNew runs the constructor like a call, then models the object's taint as the
// merged return of its __toString, safe when the class has none.
func (v *visitor) visitNew(n *lang.Node) ExprResult {
	class, ok := v.state.CodeBase.ClassNamed(n.Name)
	if !ok {
		v.visitArgsOnly(n.Children)
		return unknownResult()
	}
	if ctor, found := v.state.CodeBase.MethodNamed(class.Name, "__construct"); found {
		v.applyCall(n.Line, []*lang.FunctionInfo{ctor}, n.Children)
	} else {
		v.visitArgsOnly(n.Children)
	}
	if toString, found := v.state.CodeBase.MethodNamed(class.Name, "__toString"); found {
		ft := v.contractFor(toString)
		res := taintResult(ft.Overall.Clone().Without(dataflow.AllExec))
		res.Causes = v.state.CausesOf(toString).Overall.Clone()
		return res
	}
	return safeResult()
}

func splitStaticName(name string) (string, string, bool) {
	i := strings.LastIndex(name, "::")
	if i <= 0 || i+2 >= len(name) {
		return "", "", false
	}
	return name[:i], name[i+2:], true
}

// resolveCallees resolves a syntactic callee name: user functions first, then the
// built-in summaries.
func (v *visitor) resolveCallees(name string) []*lang.FunctionInfo {
	if f, ok := v.state.CodeBase.FunctionNamed(name); ok {
		return []*lang.FunctionInfo{f}
	}
	if f, _, ok := summaries.Builtin(name); ok {
		return []*lang.FunctionInfo{f}
	}
	return nil
}

// contractFor fetches the callee's contract, installing the built-in summary or
// lazily analyzing the body when no contract exists yet. A safe contract is
// installed before a lazy analysis starts, so recursion terminates.
func (v *visitor) contractFor(f *lang.FunctionInfo) *dataflow.FunctionTaintedness {
	if ft := v.state.ContractOf(f); ft != nil {
		return ft
	}
	if f.IsBuiltin {
		if _, ft, ok := summaries.Builtin(f.Name); ok {
			v.state.SetContract(f, ft)
			return ft
		}
	}
	ft := v.state.EnsureContract(f)
	if f.Body != nil && v.state.MarkInProgress(f) {
		analyzeFunctionBody(v.state, v.issues, f)
		v.state.DoneInProgress(f)
		ft = v.state.EnsureContract(f)
	} else if f.Body == nil {
		v.logger.Debugf("no source for %s, using a safe default contract", f.Name)
	}
	return ft
}

// visitArgsOnly evaluates arguments for their side effects when the callee is not
// resolvable.
func (v *visitor) visitArgsOnly(args []*lang.Node) {
	for _, a := range args {
		if a != nil {
			v.visitExpr(argValue(a))
		}
	}
}

func argValue(arg *lang.Node) *lang.Node {
	if arg != nil && arg.Kind == lang.KindArg {
		return arg.Child(0)
	}
	return arg
}

// applyCall attributes the value flow of one call site: per argument it runs the
// parameter's sink check, transfers preserved taint into the return value, extends
// the link graph so taint reaches callers of callers, and writes by-reference
// post-state back into the argument l-values in argument order.
func (v *visitor) applyCall(line int, callees []*lang.FunctionInfo, args []*lang.Node) ExprResult {
	if len(callees) == 0 {
		v.visitArgsOnly(args)
		return unknownResult()
	}

	argRes := make([]ExprResult, len(args))
	for i, a := range args {
		if a == nil {
			argRes[i] = safeResult()
			continue
		}
		argRes[i] = v.visitExpr(argValue(a))
	}

	out := safeResult()
	for _, f := range callees {
		ft := v.contractFor(f)
		fc := v.state.CausesOf(f)

		ret := ft.Overall.Clone().Without(dataflow.AllExec)
		retCauses := fc.Overall.Clone()
		retLinks := dataflow.NewMethodLinks()

		for i := range args {
			if args[i] == nil {
				continue
			}
			pSink := ft.ParamSink(i)
			if pSink.Collapse()&dataflow.AllExec != 0 && !v.sinkExempt(pSink, args[i]) {
				v.checkSink(line, pSink, argRes[i],
					fmt.Sprintf("%s#%d", f.Name, i+1), fc.ParamCauses(i))
			}

			pres := ft.ParamPreserved(i)
			if !pres.IsEmpty() {
				contrib := pres.AsTaintednessForArgument(argRes[i].Taint)
				if contrib.Collapse() != 0 {
					ret.MergeWith(contrib)
					retCauses.MergeWith(argRes[i].Causes)
				}
				retLinks.MergeWith(argRes[i].Links)
			}

			if v.paramIsByRef(f, i) || args[i].ByRef {
				if wb := ft.ParamByRef(i); wb != nil {
					wbRes := taintResult(wb.Clone())
					wbRes.Causes = fc.ParamCauses(i).Clone()
					v.assign(argValue(args[i]), wbRes, true, line)
				}
			}
		}

		out = out.merge(ExprResult{Taint: ret, Causes: retCauses, Links: retLinks})
	}

	if !out.Taint.IsSafe() {
		out.Causes.AddLine(v.fileName(), line, out.Taint, out.Links)
	}
	return out
}

// sinkExempt implements the ArrayOk parameter modifier: array literal arguments
// skip the sink check at that position.
func (v *visitor) sinkExempt(pSink *dataflow.Taintedness, arg *lang.Node) bool {
	return pSink.Get().Has(dataflow.ArrayOk) && argValue(arg) != nil &&
		argValue(arg).Kind == lang.KindArray
}

func (v *visitor) paramIsByRef(f *lang.FunctionInfo, i int) bool {
	if i < len(f.Params) {
		return f.Params[i].ByRef
	}
	return false
}
