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
	"io"
	"testing"

	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// runOn builds a one-file code base from the statements, registers every function
// declaration found in them, and runs the analysis with a quiet logger.
func runOn(stmts ...*lang.Node) AnalysisResult {
	cfg := config.NewDefault()
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)

	cb := lang.NewCodeBase()
	root := lang.NewBlock(stmts...)
	lang.Visit(root, func(n *lang.Node) bool {
		if n.Kind == lang.KindFuncDecl && n.Func != nil {
			if n.Func.File == "" {
				n.Func.File = "test.php"
			}
			cb.AddFunction(n.Func)
		}
		return true
	}, nil)
	cb.Files = append(cb.Files, &lang.SourceFile{Name: "test.php", Root: root})

	return Analyze(cfg, logger, cb)
}

func getRead(line int, key string) *lang.Node {
	return lang.NewDim(line, lang.NewVar(line, "_GET"), lang.NewString(line, key))
}

func requireIssues(t *testing.T, res AnalysisResult, want int) []*Issue {
	t.Helper()
	if len(res.Issues) != want {
		for _, i := range res.Issues {
			t.Logf("  issue: %s:%d %s (%s)", i.File, i.Line, i.Sink, i.Categories)
		}
		t.Fatalf("expected %d issue(s), got %d", want, len(res.Issues))
	}
	return res.Issues
}

func TestDirectEchoOfUntrustedInput(t *testing.T) {
	// $x = $_GET['q']; echo $x;
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "x"), getRead(1, "q")),
		lang.NewEcho(2, lang.NewVar(2, "x")),
	)
	issues := requireIssues(t, res, 1)
	issue := issues[0]
	if issue.Line != 2 || issue.Sink != "echo" {
		t.Errorf("the diagnostic must point at the echo, got %s at line %d", issue.Sink, issue.Line)
	}
	if !issue.Categories.HasAny(dataflow.HTML) {
		t.Errorf("echoing user input is an html finding, got %s", issue.Categories)
	}
	foundAssignment := false
	for _, l := range issue.Trail.Lines() {
		if l.Line == 1 {
			foundAssignment = true
		}
	}
	if !foundAssignment {
		t.Errorf("the cause trail must point at the assignment, got %s", issue.Trail)
	}
}

func TestEscaperLaundering(t *testing.T) {
	// echo htmlspecialchars($_GET['q']);
	res := runOn(
		lang.NewEcho(1, lang.NewCall(1, "htmlspecialchars", getRead(1, "q"))),
	)
	requireIssues(t, res, 0)
}

func TestDoubleEscapeIsFlagged(t *testing.T) {
	// echo htmlspecialchars(htmlspecialchars($_GET['q']));
	res := runOn(
		lang.NewEcho(1, lang.NewCall(1, "htmlspecialchars",
			lang.NewCall(1, "htmlspecialchars", getRead(1, "q")))),
	)
	issues := requireIssues(t, res, 1)
	if !issues[0].Categories.HasAny(dataflow.Escaped) {
		t.Errorf("escaping twice is a double-escape finding, got %s", issues[0].Categories)
	}
}

// byRefPair declares the two helpers of the by-reference ordering scenario:
// safe(&$x) writes a constant, unsafe(&$x) writes user input.
func byRefPair() (*lang.Node, *lang.Node) {
	safeInfo := &lang.FunctionInfo{
		Name:   "safe",
		Params: []lang.ParamInfo{{Name: "x", ByRef: true}},
	}
	safeDecl := lang.NewFuncDecl(1, safeInfo, lang.NewBlock(
		&lang.Node{Kind: lang.KindExprStmt, Line: 1, Children: []*lang.Node{
			lang.NewAssign(1, lang.NewVar(1, "x"), lang.NewString(1, "Foo")),
		}},
	))
	unsafeInfo := &lang.FunctionInfo{
		Name:   "unsafe",
		Params: []lang.ParamInfo{{Name: "x", ByRef: true}},
	}
	unsafeDecl := lang.NewFuncDecl(2, unsafeInfo, lang.NewBlock(
		&lang.Node{Kind: lang.KindExprStmt, Line: 2, Children: []*lang.Node{
			lang.NewAssign(2, lang.NewVar(2, "x"), getRead(2, "x")),
		}},
	))
	return safeDecl, unsafeDecl
}

func TestByRefOrdering_safeThenUnsafe(t *testing.T) {
	// $v = ''; safe(&$v); unsafe(&$v); echo $v;  -- the later write wins
	safeDecl, unsafeDecl := byRefPair()
	res := runOn(
		safeDecl, unsafeDecl,
		lang.NewAssign(10, lang.NewVar(10, "v"), lang.NewString(10, "")),
		&lang.Node{Kind: lang.KindExprStmt, Line: 11, Children: []*lang.Node{
			lang.NewCallByRef(11, "safe", []bool{true}, lang.NewVar(11, "v")),
		}},
		&lang.Node{Kind: lang.KindExprStmt, Line: 12, Children: []*lang.Node{
			lang.NewCallByRef(12, "unsafe", []bool{true}, lang.NewVar(12, "v")),
		}},
		lang.NewEcho(13, lang.NewVar(13, "v")),
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 13 {
		t.Errorf("the finding must be on the echo line, got %d", issues[0].Line)
	}
}

func TestByRefOrdering_unsafeThenSafe(t *testing.T) {
	// $v = ''; unsafe(&$v); safe(&$v); echo $v;  -- the safe write overrides
	safeDecl, unsafeDecl := byRefPair()
	res := runOn(
		safeDecl, unsafeDecl,
		lang.NewAssign(10, lang.NewVar(10, "v"), lang.NewString(10, "")),
		&lang.Node{Kind: lang.KindExprStmt, Line: 11, Children: []*lang.Node{
			lang.NewCallByRef(11, "unsafe", []bool{true}, lang.NewVar(11, "v")),
		}},
		&lang.Node{Kind: lang.KindExprStmt, Line: 12, Children: []*lang.Node{
			lang.NewCallByRef(12, "safe", []bool{true}, lang.NewVar(12, "v")),
		}},
		lang.NewEcho(13, lang.NewVar(13, "v")),
	)
	requireIssues(t, res, 0)
}

func TestByRefOrdering_insideFunctionScope(t *testing.T) {
	// the same ordering pair must round-trip inside a function body
	safeDecl, unsafeDecl := byRefPair()
	callerInfo := &lang.FunctionInfo{Name: "caller"}
	callerDecl := lang.NewFuncDecl(20, callerInfo, lang.NewBlock(
		&lang.Node{Kind: lang.KindExprStmt, Line: 21, Children: []*lang.Node{
			lang.NewAssign(21, lang.NewVar(21, "v"), lang.NewString(21, "")),
		}},
		&lang.Node{Kind: lang.KindExprStmt, Line: 22, Children: []*lang.Node{
			lang.NewCallByRef(22, "safe", []bool{true}, lang.NewVar(22, "v")),
		}},
		&lang.Node{Kind: lang.KindExprStmt, Line: 23, Children: []*lang.Node{
			lang.NewCallByRef(23, "unsafe", []bool{true}, lang.NewVar(23, "v")),
		}},
		lang.NewEcho(24, lang.NewVar(24, "v")),
	))
	res := runOn(safeDecl, unsafeDecl, callerDecl)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 24 {
		t.Errorf("the finding must be on the echo line, got %d", issues[0].Line)
	}
}

func TestShapePreservingAssignment(t *testing.T) {
	// $a = ['safe' => 'x']; $a['danger'] = $_GET['q']; echo $a['safe'];
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "a"), lang.NewArray(1,
			lang.NewArrayElem(1, lang.NewString(1, "safe"), lang.NewString(1, "x")))),
		lang.NewAssign(2,
			lang.NewDim(2, lang.NewVar(2, "a"), lang.NewString(2, "danger")),
			getRead(2, "q")),
		lang.NewEcho(3, lang.NewDim(3, lang.NewVar(3, "a"), lang.NewString(3, "safe"))),
	)
	requireIssues(t, res, 0)
}

func TestShapePreservingAssignment_taintedKeyAlerts(t *testing.T) {
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "a"), lang.NewArray(1,
			lang.NewArrayElem(1, lang.NewString(1, "safe"), lang.NewString(1, "x")))),
		lang.NewAssign(2,
			lang.NewDim(2, lang.NewVar(2, "a"), lang.NewString(2, "danger")),
			getRead(2, "q")),
		lang.NewEcho(3, lang.NewDim(3, lang.NewVar(3, "a"), lang.NewString(3, "danger"))),
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 3 {
		t.Errorf("the finding must be on the echo of the tainted key, got line %d", issues[0].Line)
	}
}

// dbQueryDecl declares db_query with an annotated sql sink parameter.
func dbQueryDecl(numkey bool) *lang.Node {
	doc := "/**\n * @param-taint $q exec_sql\n */"
	if numkey {
		doc = "/**\n * @param-taint $q exec_sql, exec_sql_numkey\n */"
	}
	info := &lang.FunctionInfo{
		Name:     "db_query",
		Params:   []lang.ParamInfo{{Name: "q"}},
		Docblock: doc,
	}
	return lang.NewFuncDecl(1, info, lang.NewBlock())
}

func TestSQLNumkey_implicitIntKey(t *testing.T) {
	// $arr = [$_GET['q']]; db_query("..." . $arr[0] . ")");
	res := runOn(
		dbQueryDecl(true),
		lang.NewAssign(2, lang.NewVar(2, "arr"), lang.NewArray(2,
			lang.NewArrayElem(2, nil, getRead(2, "q")))),
		&lang.Node{Kind: lang.KindExprStmt, Line: 3, Children: []*lang.Node{
			lang.NewCall(3, "db_query",
				lang.NewBinary(3, ".",
					lang.NewBinary(3, ".",
						lang.NewString(3, "SELECT * WHERE x IN ("),
						lang.NewDim(3, lang.NewVar(3, "arr"), lang.NewInt(3, 0))),
					lang.NewString(3, ")"))),
		}},
	)
	issues := requireIssues(t, res, 1)
	if !issues[0].Categories.HasAny(dataflow.SQL) {
		t.Errorf("expected an sql finding, got %s", issues[0].Categories)
	}
	if !issues[0].Categories.HasAny(dataflow.SQLNumkey) {
		t.Errorf("an implicit integer key must carry the numkey refinement, got %s",
			issues[0].Categories)
	}
}

func TestSQLNumkey_stringKeyHasNoNumkey(t *testing.T) {
	// $arr = ['k' => $_GET['q']]; db_query("..." . $arr['k'] . ")");
	res := runOn(
		dbQueryDecl(true),
		lang.NewAssign(2, lang.NewVar(2, "arr"), lang.NewArray(2,
			lang.NewArrayElem(2, lang.NewString(2, "k"), getRead(2, "q")))),
		&lang.Node{Kind: lang.KindExprStmt, Line: 3, Children: []*lang.Node{
			lang.NewCall(3, "db_query",
				lang.NewBinary(3, ".",
					lang.NewString(3, "SELECT "),
					lang.NewDim(3, lang.NewVar(3, "arr"), lang.NewString(3, "k")))),
		}},
	)
	issues := requireIssues(t, res, 1)
	if !issues[0].Categories.HasAny(dataflow.SQL) {
		t.Errorf("expected an sql finding, got %s", issues[0].Categories)
	}
	if issues[0].Categories.HasAny(dataflow.SQLNumkey) {
		t.Errorf("a string key must not carry the numkey refinement, got %s",
			issues[0].Categories)
	}
}

func TestCrossFunctionPropagation(t *testing.T) {
	// function wrap($s) { return "<b>$s</b>"; } echo wrap($_GET['q']);
	wrapInfo := &lang.FunctionInfo{
		Name:   "wrap",
		Params: []lang.ParamInfo{{Name: "s"}},
	}
	wrapDecl := lang.NewFuncDecl(1, wrapInfo, lang.NewBlock(
		lang.NewReturn(2, lang.NewEncaps(2,
			lang.NewString(2, "<b>"),
			lang.NewVar(2, "s"),
			lang.NewString(2, "</b>"),
		)),
	))
	res := runOn(
		wrapDecl,
		lang.NewEcho(4, lang.NewCall(4, "wrap", getRead(4, "q"))),
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 4 || !issues[0].Categories.HasAny(dataflow.HTML) {
		t.Errorf("expected an html finding at the echo, got %s at %d",
			issues[0].Categories, issues[0].Line)
	}

	// after analysis, wrap's contract records that parameter 0 preserves html
	f, ok := res.State.CodeBase.FunctionNamed("wrap")
	if !ok {
		t.Fatalf("wrap must be registered")
	}
	ft := res.State.ContractOf(f)
	if ft == nil {
		t.Fatalf("wrap must have a contract after analysis")
	}
	pres := ft.ParamPreserved(0)
	if pres.IsEmpty() || !pres.Shape().Collapse().HasAny(dataflow.HTML) {
		t.Errorf("wrap's contract must show parameter 0 preserving html, got %s",
			pres.Shape())
	}
}

func TestParameterSinkIsLearnedAcrossCalls(t *testing.T) {
	// function out($s) { echo $s; } out($_GET['q']);
	outInfo := &lang.FunctionInfo{
		Name:   "out",
		Params: []lang.ParamInfo{{Name: "s"}},
	}
	outDecl := lang.NewFuncDecl(1, outInfo, lang.NewBlock(
		lang.NewEcho(2, lang.NewVar(2, "s")),
	))
	res := runOn(
		outDecl,
		&lang.Node{Kind: lang.KindExprStmt, Line: 4, Children: []*lang.Node{
			lang.NewCall(4, "out", getRead(4, "q")),
		}},
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 4 {
		t.Errorf("the finding must be at the call site, got line %d", issues[0].Line)
	}

	f, _ := res.State.CodeBase.FunctionNamed("out")
	ft := res.State.ContractOf(f)
	if ft == nil || !ft.ParamSink(0).Get().Has(dataflow.HTMLExec) {
		t.Errorf("out's contract must record parameter 0 as an html sink")
	}
}

func TestBranchJoinMergesTaint(t *testing.T) {
	// if ($c) { $x = $_GET['a']; } else { $x = 'safe'; } echo $x;
	res := runOn(
		&lang.Node{Kind: lang.KindIf, Line: 1, Children: []*lang.Node{
			lang.NewVar(1, "c"),
			lang.NewBlock(lang.NewAssign(2, lang.NewVar(2, "x"), getRead(2, "a"))),
			lang.NewBlock(lang.NewAssign(3, lang.NewVar(3, "x"), lang.NewString(3, "safe"))),
		}},
		lang.NewEcho(5, lang.NewVar(5, "x")),
	)
	requireIssues(t, res, 1)
}

func TestLoopCarriedTaintReachesEarlierUse(t *testing.T) {
	// $x = ''; while ($c) { echo $x; $x = $_GET['a']; }
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "x"), lang.NewString(1, "")),
		&lang.Node{Kind: lang.KindWhile, Line: 2, Children: []*lang.Node{
			lang.NewVar(2, "c"),
			lang.NewBlock(
				lang.NewEcho(3, lang.NewVar(3, "x")),
				lang.NewAssign(4, lang.NewVar(4, "x"), getRead(4, "a")),
			),
		}},
	)
	requireIssues(t, res, 1)
}

func TestUnknownVariableDoesNotAlert(t *testing.T) {
	res := runOn(
		lang.NewEcho(1, lang.NewVar(1, "never_assigned")),
	)
	requireIssues(t, res, 0)
}

func TestSymbolRoundTrip(t *testing.T) {
	// assigning a triple into a symbol and reading it back reproduces the taint
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "x"), getRead(1, "q")),
		lang.NewAssign(2, lang.NewVar(2, "y"), lang.NewVar(2, "x")),
		lang.NewEcho(3, lang.NewVar(3, "y")),
	)
	requireIssues(t, res, 1)
}

func TestFixpointTerminates(t *testing.T) {
	// mutual recursion must not loop forever
	aInfo := &lang.FunctionInfo{Name: "a", Params: []lang.ParamInfo{{Name: "x"}}}
	bInfo := &lang.FunctionInfo{Name: "b", Params: []lang.ParamInfo{{Name: "x"}}}
	aDecl := lang.NewFuncDecl(1, aInfo, lang.NewBlock(
		lang.NewReturn(2, lang.NewCall(2, "b", lang.NewVar(2, "x"))),
	))
	bDecl := lang.NewFuncDecl(3, bInfo, lang.NewBlock(
		lang.NewReturn(4, lang.NewCall(4, "a", lang.NewVar(4, "x"))),
	))
	res := runOn(aDecl, bDecl,
		lang.NewEcho(6, lang.NewCall(6, "a", getRead(6, "q"))),
	)
	if res.Passes < 1 || res.Passes > config.DefaultMaxPasses {
		t.Errorf("the fixpoint driver must stay within the pass bound, ran %d", res.Passes)
	}
}
