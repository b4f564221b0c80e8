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
	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// An ExprResult is the triple the propagation visitor computes for every
// expression: its taintedness, the trail explaining the taint, and the parameter
// links recording where the value derives from.
type ExprResult struct {
	Taint  *dataflow.Taintedness
	Causes *dataflow.CausedByLines
	Links  *dataflow.MethodLinks
}

func safeResult() ExprResult {
	return ExprResult{
		Taint:  dataflow.SafeTaint(),
		Causes: dataflow.NewCausedByLines(),
		Links:  dataflow.NewMethodLinks(),
	}
}

func unknownResult() ExprResult {
	r := safeResult()
	r.Taint = dataflow.UnknownTaint()
	return r
}

// inapplicableResult marks syntactic positions that are not values.
func inapplicableResult() ExprResult {
	r := safeResult()
	r.Taint = dataflow.NewTaintedness(dataflow.Inapplicable)
	return r
}

func taintResult(t *dataflow.Taintedness) ExprResult {
	r := safeResult()
	r.Taint = t
	return r
}

// merge joins other into the receiver and returns the receiver.
func (r ExprResult) merge(other ExprResult) ExprResult {
	r.Taint.MergeWith(other.Taint)
	r.Causes.MergeWith(other.Causes)
	r.Links.MergeWith(other.Links)
	return r
}

// clone returns a result sharing no structure with the receiver.
func (r ExprResult) clone() ExprResult {
	return ExprResult{
		Taint:  r.Taint.Clone(),
		Causes: r.Causes.Clone(),
		Links:  r.Links.Clone(),
	}
}

// A visitor runs the per-function propagation: it walks statements, computes the
// taint triple of every expression, performs shape-aware assignments, checks sinks
// and refines contracts. One visitor instance analyzes one scope; its current triple
// is local to the walk by construction.
type visitor struct {
	state  *dataflow.AnalyzerState
	cfg    *config.Config
	logger *config.LogGroup
	issues *Collector

	file *lang.SourceFile

	// fn is the function being analyzed, nil in the global scope
	fn *lang.FunctionInfo

	// globals names the variables pulled in with a global declaration
	globals map[string]bool
}

func newVisitor(state *dataflow.AnalyzerState, issues *Collector, file *lang.SourceFile, fn *lang.FunctionInfo) *visitor {
	return &visitor{
		state:   state,
		cfg:     state.Config,
		logger:  state.Logger,
		issues:  issues,
		file:    file,
		fn:      fn,
		globals: map[string]bool{},
	}
}

func (v *visitor) fileName() string {
	if v.file != nil {
		return v.file.Name
	}
	return ""
}

func (v *visitor) funcName() string {
	if v.fn != nil {
		return v.fn.Name
	}
	return lang.GlobalScopeName
}

func (v *visitor) symbolID(name string) lang.SymbolID {
	return lang.VarSymbol(v.fn, name)
}

// visitStmt dispatches one statement. Statement kinds are inapplicable positions:
// they produce no triple, only side effects on the symbol table and the issue list.
func (v *visitor) visitStmt(n *lang.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case lang.KindBlock:
		for _, c := range n.Children {
			v.visitStmt(c)
		}

	case lang.KindExprStmt:
		v.visitExpr(n.Child(0))

	case lang.KindEcho:
		for _, c := range n.Children {
			res := v.visitExpr(c)
			v.checkSimpleSink(c, dataflow.HTMLExec, res, "echo")
		}

	case lang.KindReturn:
		v.handleReturn(n)

	case lang.KindGlobal:
		v.handleGlobalDecl(n)

	case lang.KindStaticVar:
		// statics initialize safe on every invocation; cross-invocation
		// persistence is not modeled
		if n.Child(0) != nil {
			v.visitExpr(n.Child(0))
		}
		v.state.SetSymbol(v.symbolID(n.Name), dataflow.NewSymbolAnnotation())

	case lang.KindUnset:
		for _, c := range n.Children {
			v.handleUnset(c)
		}

	case lang.KindIf:
		v.visitExpr(n.Child(0))
		v.visitBranches(n.Child(1), n.Child(2))

	case lang.KindWhile:
		v.visitLoop(n.Child(0), n.Child(1))

	case lang.KindDoWhile:
		v.visitLoop(n.Child(1), n.Child(0))

	case lang.KindFor:
		if n.Child(0) != nil {
			v.visitStmtOrExpr(n.Child(0))
		}
		v.visitLoop(n.Child(1), n.Child(3))
		if n.Child(2) != nil {
			v.visitExpr(n.Child(2))
		}

	case lang.KindForeach:
		v.visitForeach(n)

	case lang.KindSwitch:
		v.visitSwitch(n)

	case lang.KindTry:
		for _, c := range n.Children {
			switch {
			case c == nil:
			case c.Kind == lang.KindCatch:
				if c.Child(0) != nil && c.Child(0).Kind == lang.KindVar {
					v.state.SetSymbol(v.symbolID(c.Child(0).Name), dataflow.NewSymbolAnnotation())
				}
				v.visitStmt(c.Child(1))
			default:
				v.visitStmt(c)
			}
		}

	case lang.KindThrow:
		v.visitExpr(n.Child(0))

	case lang.KindFuncDecl:
		// bodies are analyzed by the driver; a declaration in statement position
		// only guarantees a contract exists so recursive references terminate
		if n.Func != nil {
			v.state.EnsureContract(n.Func)
		}

	case lang.KindClassDecl:
		for _, c := range n.Children {
			v.visitStmt(c)
		}

	case lang.KindBreak, lang.KindContinue, lang.KindNop:

	default:
		// expressions in statement position
		v.visitExpr(n)
	}
}

// visitStmtOrExpr handles positions (for-loop init) that may hold either.
func (v *visitor) visitStmtOrExpr(n *lang.Node) {
	switch n.Kind {
	case lang.KindBlock, lang.KindExprStmt:
		v.visitStmt(n)
	default:
		v.visitExpr(n)
	}
}

// visitExpr computes the taint triple of one expression. Literals and
// boolean-producing constructs are safe; unresolvable reads are unknown; everything
// else follows the per-construct propagation rules.
func (v *visitor) visitExpr(n *lang.Node) ExprResult {
	if n == nil {
		return inapplicableResult()
	}
	switch n.Kind {
	case lang.KindIntLit, lang.KindFloatLit, lang.KindStringLit, lang.KindBoolLit,
		lang.KindNullLit, lang.KindMagicConst, lang.KindConst, lang.KindClassConst,
		lang.KindName, lang.KindIsset, lang.KindEmpty, lang.KindInstanceOf:
		for _, c := range n.Children {
			v.visitExpr(c)
		}
		return safeResult()

	case lang.KindVar:
		return v.visitVarRead(n)

	case lang.KindDim:
		return v.visitDimRead(n)

	case lang.KindProp, lang.KindStaticProp:
		return v.visitPropRead(n)

	case lang.KindBinaryOp:
		return v.visitBinaryOp(n)

	case lang.KindUnaryOp:
		res := v.visitExpr(n.Child(0))
		switch n.Op {
		case "~", "@":
			return res
		default:
			// boolean and numeric coercions kill taint
			return safeResult()
		}

	case lang.KindCast:
		res := v.visitExpr(n.Child(0))
		switch n.Name {
		case "string", "array", "object":
			out := res.clone()
			out.Taint = res.Taint.AsCollapsed()
			return out
		default:
			return safeResult()
		}

	case lang.KindIncDec:
		return v.visitExpr(n.Child(0))

	case lang.KindCond:
		cond := v.visitExpr(n.Child(0))
		var then ExprResult
		if n.Child(1) != nil {
			then = v.visitExpr(n.Child(1))
		} else {
			// elvis: the condition is the value
			then = cond
		}
		els := v.visitExpr(n.Child(2))
		return then.clone().merge(els)

	case lang.KindMatch:
		return v.visitMatch(n)

	case lang.KindArray:
		return v.visitArrayLiteral(n)

	case lang.KindEncaps:
		return v.visitEncaps(n)

	case lang.KindClone:
		return v.visitExpr(n.Child(0)).clone()

	case lang.KindAssign:
		rhs := v.visitExpr(n.Child(1))
		v.assign(n.Child(0), rhs, true, n.Line)
		return rhs

	case lang.KindAssignOp:
		lhs := v.visitExpr(n.Child(0))
		rhs := v.visitExpr(n.Child(1))
		combined := v.binaryOpResult(n.Op, lhs, rhs, n.Line)
		v.assign(n.Child(0), combined, true, n.Line)
		return combined

	case lang.KindAssignRef:
		// reference binding is copy-at-bind: later writes to either side do not
		// propagate to the other (known limitation)
		rhs := v.visitExpr(n.Child(1))
		v.assign(n.Child(0), rhs, true, n.Line)
		return rhs

	case lang.KindList:
		// a bare list outside an assignment has no value
		return inapplicableResult()

	case lang.KindCall:
		return v.visitCall(n)

	case lang.KindMethodCall, lang.KindStaticCall:
		return v.visitMethodCall(n)

	case lang.KindNew:
		return v.visitNew(n)

	case lang.KindClosure:
		if n.Func != nil {
			v.state.EnsureContract(n.Func)
		}
		return safeResult()

	case lang.KindPrint:
		res := v.visitExpr(n.Child(0))
		v.checkSimpleSink(n, dataflow.HTMLExec, res, "print")
		return safeResult()

	case lang.KindExit:
		if n.Child(0) != nil {
			res := v.visitExpr(n.Child(0))
			v.checkSimpleSink(n, dataflow.HTMLExec, res, "exit")
		}
		return inapplicableResult()

	case lang.KindEval:
		res := v.visitExpr(n.Child(0))
		v.checkSimpleSink(n, dataflow.MiscExec, res, "eval")
		return unknownResult()

	case lang.KindInclude:
		res := v.visitExpr(n.Child(0))
		v.checkSimpleSink(n, dataflow.MiscExec, res, n.Name)
		return unknownResult()

	case lang.KindShellExec:
		parts := safeResult()
		for _, c := range n.Children {
			parts = parts.merge(v.visitExpr(c))
		}
		parts.Taint = parts.Taint.AsCollapsed()
		v.checkSimpleSink(n, dataflow.ShellExec, parts, "shell_exec")
		return unknownResult()

	default:
		return inapplicableResult()
	}
}

// visitVarRead resolves a variable read: superglobals return their hardcoded taint,
// known symbols return their stored triple, anything else is unknown.
func (v *visitor) visitVarRead(n *lang.Node) ExprResult {
	if t, ok := SuperglobalTaint(n.Name); ok {
		res := taintResult(t)
		res.Causes.AddLine(v.fileName(), n.Line, t, nil)
		return res
	}
	if a := v.state.SymbolOf(v.symbolID(n.Name)); a != nil {
		return ExprResult{Taint: a.Taint.Clone(), Causes: a.Causes.Clone(), Links: a.Links.Clone()}
	}
	return unknownResult()
}

// visitDimRead projects the base's triple at the subscript offset.
func (v *visitor) visitDimRead(n *lang.Node) ExprResult {
	base := v.visitExpr(n.Child(0))
	off := v.resolveOffset(n.Child(1))
	if n.Child(1) != nil && off == nil {
		v.visitExpr(n.Child(1))
	}
	return ExprResult{
		Taint:  base.Taint.ProjectOffset(off),
		Causes: base.Causes,
		Links:  base.Links.ProjectOffset(off),
	}
}

// resolveOffset turns a scalar-literal index into an offset; nil for anything else.
func (v *visitor) resolveOffset(idx *lang.Node) *dataflow.Offset {
	if idx == nil || !idx.IsScalarLiteral() {
		return nil
	}
	switch idx.Kind {
	case lang.KindIntLit:
		off := dataflow.IntOffset(idx.IntVal)
		return &off
	case lang.KindStringLit:
		off := dataflow.StrOffset(idx.StrVal)
		return &off
	case lang.KindBoolLit:
		i := int64(0)
		if idx.BoolVal {
			i = 1
		}
		off := dataflow.IntOffset(i)
		return &off
	default:
		return nil
	}
}

// visitPropRead reads a property. Properties resolvable to a declaring class use the
// stored per-class state; dynamic objects fall back to the base's own taint plus
// unknown.
func (v *visitor) visitPropRead(n *lang.Node) ExprResult {
	if n.Kind == lang.KindStaticProp {
		if a := v.state.SymbolOf(lang.StaticPropSymbol(n.Name)); a != nil {
			return ExprResult{Taint: a.Taint.Clone(), Causes: a.Causes.Clone(), Links: a.Links.Clone()}
		}
		return unknownResult()
	}
	base := v.visitExpr(n.Child(0))
	if id, ok := v.propSymbol(n); ok {
		if a := v.state.SymbolOf(id); a != nil {
			res := ExprResult{Taint: a.Taint.Clone(), Causes: a.Causes.Clone(), Links: a.Links.Clone()}
			res.Taint.AddFlags(base.Taint.Get())
			return res
		}
		return taintResult(dataflow.NewTaintedness(base.Taint.Get()))
	}
	// the object's class is unknown: the property may hold anything derived from it
	t := dataflow.NewTaintedness(base.Taint.Get() | dataflow.Unknown)
	res := taintResult(t)
	res.Causes = base.Causes
	res.Links = base.Links.ProjectOffset(nil)
	return res
}

// propSymbol resolves $this->prop accesses to the declaring class's property state.
func (v *visitor) propSymbol(n *lang.Node) (lang.SymbolID, bool) {
	base := n.Child(0)
	if base != nil && base.Kind == lang.KindVar && base.Name == "this" &&
		v.fn != nil && v.fn.Class != "" && n.Name != "" {
		return lang.PropSymbol(v.fn.Class, n.Name), true
	}
	return "", false
}

// visitBinaryOp computes the operator mask and applies it to the operands.
func (v *visitor) visitBinaryOp(n *lang.Node) ExprResult {
	l := v.visitExpr(n.Child(0))
	r := v.visitExpr(n.Child(1))
	return v.binaryOpResult(n.Op, l, r, n.Line)
}

func (v *visitor) binaryOpResult(op string, l ExprResult, r ExprResult, line int) ExprResult {
	switch op {
	case ".", ".=":
		res := ExprResult{
			Taint:  dataflow.NewTaintedness((l.Taint.Collapse() | r.Taint.Collapse()) & (dataflow.AllYes | dataflow.Unknown)),
			Causes: dataflow.MergeCauses(l.Causes, r.Causes),
			Links:  dataflow.MergeLinks(l.Links.AsCollapsed(), r.Links.AsCollapsed()),
		}
		return res
	case "+", "+=":
		if l.Taint.HasShape() || r.Taint.HasShape() {
			return ExprResult{
				Taint:  dataflow.ArrayPlus(l.Taint, r.Taint),
				Causes: dataflow.MergeCauses(l.Causes, r.Causes),
				Links:  dataflow.MergeLinks(l.Links, r.Links),
			}
		}
		return safeResult()
	case "??":
		return l.clone().merge(r)
	default:
		// pure numeric, bitwise, boolean and comparison operators produce
		// taint-free results
		return safeResult()
	}
}

// visitMatch merges the triples of all arms that can produce a value; arms that
// unconditionally diverge contribute nothing.
func (v *visitor) visitMatch(n *lang.Node) ExprResult {
	v.visitExpr(n.Child(0))
	res := safeResult()
	for _, arm := range n.Children[1:] {
		if arm == nil || arm.Kind != lang.KindMatchArm || len(arm.Children) == 0 {
			continue
		}
		body := arm.Child(len(arm.Children) - 1)
		for _, c := range arm.Children[:len(arm.Children)-1] {
			v.visitExpr(c)
		}
		if body != nil && (body.Kind == lang.KindThrow || body.Kind == lang.KindExit) {
			v.visitStmt(body)
			continue
		}
		res = res.merge(v.visitExpr(body))
	}
	return res
}

// visitArrayLiteral builds the taint shape of an array literal: implicit numeric
// keys auto-increment, key taint flows into keyFlags, and the numkey rule flags
// arrays carrying SQL-tainted strings at integer keys.
func (v *visitor) visitArrayLiteral(n *lang.Node) ExprResult {
	res := safeResult()
	nextKey := int64(0)
	for _, elem := range n.Children {
		if elem == nil || elem.Kind != lang.KindArrayElem {
			continue
		}
		keyNode, valueNode := elem.Child(0), elem.Child(1)
		valueRes := v.visitExpr(valueNode)

		var off *dataflow.Offset
		intKey := false
		if keyNode == nil {
			o := dataflow.IntOffset(nextKey)
			nextKey++
			off = &o
			intKey = true
		} else if off = v.resolveOffset(keyNode); off != nil {
			if off.IsInt() {
				intKey = true
			}
		} else {
			keyRes := v.visitExpr(keyNode)
			res.Taint.AddKeyFlags(keyRes.Taint.Collapse())
			res.Causes.MergeWith(keyRes.Causes)
		}

		res.Taint.SetOffset(off, valueRes.Taint, true)
		var path []*dataflow.Offset
		path = append(path, off)
		res.Links.SetAtPath(path, valueRes.Links, true)
		res.Causes.MergeWith(valueRes.Causes)

		if intKey && valueRes.Taint.Collapse().HasAny(dataflow.SQL) && isStringish(valueNode) {
			res.Taint.AddFlags(dataflow.SQLNumkey | dataflow.SQL)
		}
	}
	return res
}

// isStringish approximates "statically string-typed" for the numkey rule: literal
// numbers are excluded, everything that could be a string qualifies.
func isStringish(n *lang.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case lang.KindIntLit, lang.KindFloatLit, lang.KindBoolLit, lang.KindNullLit:
		return false
	default:
		return true
	}
}

// visitEncaps ORs the taints of the interpolated parts; the result is a string, so
// the shape collapses.
func (v *visitor) visitEncaps(n *lang.Node) ExprResult {
	res := safeResult()
	for _, c := range n.Children {
		part := v.visitExpr(c)
		res.Taint.AddFlags(part.Taint.Collapse() & (dataflow.AllYes | dataflow.Unknown))
		res.Causes.MergeWith(part.Causes)
		res.Links.MergeWith(part.Links.AsCollapsed())
	}
	return res
}

// handleReturn updates the enclosing function's contract from a return expression:
// exec bits are stripped, the declared return type masks impossible categories, and
// preserved taint is derived from the expression's parameter links.
func (v *visitor) handleReturn(n *lang.Node) {
	var res ExprResult
	if n.Child(0) != nil {
		res = v.visitExpr(n.Child(0))
	} else {
		res = safeResult()
	}
	if v.fn == nil {
		return
	}

	ret := res.Taint.Without(dataflow.AllExec)
	ret = ret.WithOnly(typeTaintMask(v.fn.ReturnTypeHint) | dataflow.Unknown)

	ft := dataflow.NewFunctionTaintedness(v.fn)
	ft.Overall = ret
	for i := range v.fn.Params {
		pres := res.Links.PreservedTaintednessForParam(v.fn, i)
		if v.fn.Params[i].Variadic {
			ft.VariadicPreserved = pres
		} else {
			ft.Preserved[i] = pres
		}
	}
	v.state.MergeContract(v.fn, ft)

	fc := v.state.CausesOf(v.fn)
	fc.Overall.MergeWith(res.Causes)
	for i := range v.fn.Params {
		fc.ParamCauses(i).MergeWith(res.Causes.ForParam(v.fn, i))
	}
}

// typeTaintMask returns the categories a value of the declared type can carry.
func typeTaintMask(hint string) dataflow.Flags {
	switch hint {
	case "int", "float", "bool", "void", "null":
		return 0
	default:
		return dataflow.AllYes
	}
}

// handleGlobalDecl copies the global symbol's state into the function-scoped alias,
// creating the global when it does not exist yet.
func (v *visitor) handleGlobalDecl(n *lang.Node) {
	if v.fn == nil {
		return
	}
	v.globals[n.Name] = true
	global := v.state.EnsureSymbol(lang.GlobalVarSymbol(n.Name))
	v.state.SetSymbol(lang.VarSymbol(v.fn, n.Name), global)
}

// handleUnset clears a symbol or one offset of its shape.
func (v *visitor) handleUnset(target *lang.Node) {
	if target == nil {
		return
	}
	switch target.Kind {
	case lang.KindVar:
		v.state.DropSymbol(v.symbolID(target.Name))
	case lang.KindDim:
		base := target.Child(0)
		if base != nil && base.Kind == lang.KindVar {
			if a := v.state.SymbolOf(v.symbolID(base.Name)); a != nil {
				if off := v.resolveOffset(target.Child(1)); off != nil {
					a.Taint.SetOffset(off, dataflow.SafeTaint(), true)
				}
			}
		}
	}
}

// visitForeach binds the key and value variables from the iterable's shape and runs
// the body as a loop.
func (v *visitor) visitForeach(n *lang.Node) {
	iter := v.visitExpr(n.Child(0))

	if keyVar := n.Child(1); keyVar != nil && keyVar.Kind == lang.KindVar {
		keyRes := taintResult(dataflow.NewTaintedness(iter.Taint.KeyFlags()))
		keyRes.Causes = iter.Causes.Clone()
		v.assign(keyVar, keyRes, true, n.Line)
	}
	if valueVar := n.Child(2); valueVar != nil {
		valueRes := ExprResult{
			Taint:  iter.Taint.ProjectOffset(nil),
			Causes: iter.Causes.Clone(),
			Links:  iter.Links.ProjectOffset(nil),
		}
		v.assign(valueVar, valueRes, true, n.Line)
	}
	v.visitLoop(nil, n.Child(3))
}

// visitSwitch joins the case bodies like branches.
func (v *visitor) visitSwitch(n *lang.Node) {
	v.visitExpr(n.Child(0))
	before := v.state.SymbolsSnapshot()
	merged := v.state.SymbolsSnapshot()
	for _, c := range n.Children[1:] {
		if c == nil || c.Kind != lang.KindCase {
			continue
		}
		v.state.RestoreSymbols(cloneSymbols(before))
		if c.Child(0) != nil {
			v.visitExpr(c.Child(0))
		}
		for _, stmt := range c.Children[1:] {
			v.visitStmt(stmt)
		}
		after := v.state.SymbolsSnapshot()
		mergeSymbolTables(merged, after)
	}
	v.state.RestoreSymbols(merged)
}

func cloneSymbols(m map[lang.SymbolID]*dataflow.SymbolAnnotation) map[lang.SymbolID]*dataflow.SymbolAnnotation {
	res := make(map[lang.SymbolID]*dataflow.SymbolAnnotation, len(m))
	for id, a := range m {
		res[id] = a.Clone()
	}
	return res
}

func mergeSymbolTables(dst map[lang.SymbolID]*dataflow.SymbolAnnotation, src map[lang.SymbolID]*dataflow.SymbolAnnotation) {
	for id, a := range src {
		if existing, ok := dst[id]; ok {
			existing.MergeWith(a)
		} else {
			dst[id] = a.Clone()
		}
	}
}
