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

package lang

// Constructors for AST nodes. The frontend and the tests build programs with these
// instead of filling Node structs by hand.

// NewVar returns a variable node.
func NewVar(line int, name string) *Node {
	return &Node{Kind: KindVar, Line: line, Name: name}
}

// NewName returns a bare identifier node.
func NewName(line int, name string) *Node {
	return &Node{Kind: KindName, Line: line, Name: name}
}

// NewString returns a string literal node.
func NewString(line int, s string) *Node {
	return &Node{Kind: KindStringLit, Line: line, StrVal: s}
}

// NewInt returns an integer literal node.
func NewInt(line int, i int64) *Node {
	return &Node{Kind: KindIntLit, Line: line, IntVal: i}
}

// NewDim returns a subscript node base[index]. index may be nil for base[].
func NewDim(line int, base *Node, index *Node) *Node {
	return &Node{Kind: KindDim, Line: line, Children: []*Node{base, index}}
}

// NewAssign returns a plain assignment node.
func NewAssign(line int, lhs *Node, rhs *Node) *Node {
	return &Node{Kind: KindAssign, Line: line, Children: []*Node{lhs, rhs}}
}

// NewAssignOp returns an augmented assignment node with the given operator.
func NewAssignOp(line int, op string, lhs *Node, rhs *Node) *Node {
	return &Node{Kind: KindAssignOp, Line: line, Op: op, Children: []*Node{lhs, rhs}}
}

// NewBinary returns a binary operation node.
func NewBinary(line int, op string, l *Node, r *Node) *Node {
	return &Node{Kind: KindBinaryOp, Line: line, Op: op, Children: []*Node{l, r}}
}

// NewEcho returns an echo statement with the given expressions.
func NewEcho(line int, exprs ...*Node) *Node {
	return &Node{Kind: KindEcho, Line: line, Children: exprs}
}

// NewCall returns a function call node with plain (non-reference) arguments.
func NewCall(line int, name string, args ...*Node) *Node {
	children := []*Node{NewName(line, name)}
	for _, a := range args {
		children = append(children, &Node{Kind: KindArg, Line: line, Children: []*Node{a}})
	}
	return &Node{Kind: KindCall, Line: line, Children: children}
}

// NewCallByRef returns a function call node; byRef[i] marks argument i as &$x.
func NewCallByRef(line int, name string, byRef []bool, args ...*Node) *Node {
	children := []*Node{NewName(line, name)}
	for i, a := range args {
		arg := &Node{Kind: KindArg, Line: line, Children: []*Node{a}}
		if i < len(byRef) {
			arg.ByRef = byRef[i]
		}
		children = append(children, arg)
	}
	return &Node{Kind: KindCall, Line: line, Children: children}
}

// NewArrayElem returns one array literal element. key may be nil.
func NewArrayElem(line int, key *Node, value *Node) *Node {
	return &Node{Kind: KindArrayElem, Line: line, Children: []*Node{key, value}}
}

// NewArray returns an array literal from its elements.
func NewArray(line int, elems ...*Node) *Node {
	return &Node{Kind: KindArray, Line: line, Children: elems}
}

// NewReturn returns a return statement. expr may be nil.
func NewReturn(line int, expr *Node) *Node {
	if expr == nil {
		return &Node{Kind: KindReturn, Line: line}
	}
	return &Node{Kind: KindReturn, Line: line, Children: []*Node{expr}}
}

// NewEncaps returns a string interpolation node from its parts.
func NewEncaps(line int, parts ...*Node) *Node {
	return &Node{Kind: KindEncaps, Line: line, Children: parts}
}

// NewBlock returns a statement list.
func NewBlock(stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Children: stmts}
}

// NewFuncDecl returns a function declaration node and registers the body on the info.
func NewFuncDecl(line int, info *FunctionInfo, body *Node) *Node {
	info.Body = body
	info.Line = line
	return &Node{Kind: KindFuncDecl, Line: line, Func: info}
}
