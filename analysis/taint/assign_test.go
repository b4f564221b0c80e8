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
	"testing"

	"github.com/webtaint-tools/webtaint/analysis/dataflow"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

func TestAssign_augmentedConcatAccumulates(t *testing.T) {
	// $x = 'a'; $x .= $_GET['q']; echo $x;
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "x"), lang.NewString(1, "a")),
		&lang.Node{Kind: lang.KindExprStmt, Line: 2, Children: []*lang.Node{
			lang.NewAssignOp(2, ".=", lang.NewVar(2, "x"), getRead(2, "q")),
		}},
		lang.NewEcho(3, lang.NewVar(3, "x")),
	)
	requireIssues(t, res, 1)
}

func TestAssign_plainOverridesTaint(t *testing.T) {
	// $x = $_GET['q']; $x = 'safe'; echo $x;
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "x"), getRead(1, "q")),
		lang.NewAssign(2, lang.NewVar(2, "x"), lang.NewString(2, "safe")),
		lang.NewEcho(3, lang.NewVar(3, "x")),
	)
	requireIssues(t, res, 0)
}

func TestAssign_nestedPathPreservesSiblings(t *testing.T) {
	// $a['x']['y'] = $_GET['q']; echo $a['x']['z']; echo $a['x']['y'];
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "a"), lang.NewArray(1)),
		lang.NewAssign(2,
			lang.NewDim(2,
				lang.NewDim(2, lang.NewVar(2, "a"), lang.NewString(2, "x")),
				lang.NewString(2, "y")),
			getRead(2, "q")),
		lang.NewEcho(3,
			lang.NewDim(3,
				lang.NewDim(3, lang.NewVar(3, "a"), lang.NewString(3, "x")),
				lang.NewString(3, "z"))),
		lang.NewEcho(4,
			lang.NewDim(4,
				lang.NewDim(4, lang.NewVar(4, "a"), lang.NewString(4, "x")),
				lang.NewString(4, "y"))),
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 4 {
		t.Errorf("only the tainted leaf must alert, got line %d", issues[0].Line)
	}
}

func TestAssign_appendWritesUnknownOffset(t *testing.T) {
	// $a = []; $a[] = $_GET['q']; echo $a[0];
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "a"), lang.NewArray(1)),
		lang.NewAssign(2,
			lang.NewDim(2, lang.NewVar(2, "a"), nil),
			getRead(2, "q")),
		lang.NewEcho(3, lang.NewDim(3, lang.NewVar(3, "a"), lang.NewInt(3, 0))),
	)
	requireIssues(t, res, 1)
}

func TestAssign_destructuring(t *testing.T) {
	// [$a, $b] = [$_GET['q'], 'safe']; echo $b; echo $a;
	res := runOn(
		lang.NewAssign(1,
			&lang.Node{Kind: lang.KindList, Line: 1, Children: []*lang.Node{
				lang.NewArrayElem(1, nil, lang.NewVar(1, "a")),
				lang.NewArrayElem(1, nil, lang.NewVar(1, "b")),
			}},
			lang.NewArray(1,
				lang.NewArrayElem(1, nil, getRead(1, "q")),
				lang.NewArrayElem(1, nil, lang.NewString(1, "safe")),
			)),
		lang.NewEcho(2, lang.NewVar(2, "b")),
		lang.NewEcho(3, lang.NewVar(3, "a")),
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 3 {
		t.Errorf("only the tainted slot must alert, got line %d", issues[0].Line)
	}
}

func TestAssign_globalDeclarationCopiesState(t *testing.T) {
	// $g = $_GET['q']; function f() { global $g; echo $g; }
	fInfo := &lang.FunctionInfo{Name: "f"}
	fDecl := lang.NewFuncDecl(2, fInfo, lang.NewBlock(
		&lang.Node{Kind: lang.KindGlobal, Line: 3, Name: "g"},
		lang.NewEcho(4, lang.NewVar(4, "g")),
	))
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "g"), getRead(1, "q")),
		fDecl,
	)
	issues := requireIssues(t, res, 1)
	if issues[0].Line != 4 {
		t.Errorf("the echo of the global alias must alert, got line %d", issues[0].Line)
	}
}

func TestAssign_taintedKeyWrite(t *testing.T) {
	// $a[$_GET['k']] = 'v'; -- the key taint must be recorded on the array
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "a"), lang.NewArray(1)),
		lang.NewAssign(2,
			lang.NewDim(2, lang.NewVar(2, "a"), getRead(2, "k")),
			lang.NewString(2, "v")),
	)
	requireIssues(t, res, 0)

	a := res.State.SymbolOf(lang.GlobalVarSymbol("a"))
	if a == nil {
		t.Fatalf("$a must have recorded state")
	}
	if !a.Taint.KeyFlags().HasAny(dataflow.HTML) {
		t.Errorf("the tainted key must be recorded in the key flags, got %s", a.Taint)
	}
}

func TestAssign_referenceBindingCopies(t *testing.T) {
	// $a = &$b after $b is tainted: $a carries the taint (copy-at-bind)
	res := runOn(
		lang.NewAssign(1, lang.NewVar(1, "b"), getRead(1, "q")),
		&lang.Node{Kind: lang.KindExprStmt, Line: 2, Children: []*lang.Node{
			{Kind: lang.KindAssignRef, Line: 2, Children: []*lang.Node{
				lang.NewVar(2, "a"), lang.NewVar(2, "b")}},
		}},
		lang.NewEcho(3, lang.NewVar(3, "a")),
	)
	requireIssues(t, res, 1)
}

func TestForeach_valueAndKeyBinding(t *testing.T) {
	// foreach ($_GET as $k => $v) { echo $v; } -- both value and key are tainted
	res := runOn(
		&lang.Node{Kind: lang.KindForeach, Line: 1, Children: []*lang.Node{
			lang.NewVar(1, "_GET"),
			lang.NewVar(1, "k"),
			lang.NewVar(1, "v"),
			lang.NewBlock(lang.NewEcho(2, lang.NewVar(2, "v"))),
		}},
	)
	requireIssues(t, res, 1)
}
