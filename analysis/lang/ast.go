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

// Package lang models the analyzed language: its AST, the scopes and symbols of a
// program, and the code base registry of functions and classes. The AST is a closed
// enumeration of node kinds, which the analysis dispatches on with a single switch.
package lang

import "fmt"

// NodeKind identifies the syntactic construct a Node represents.
type NodeKind int

const (
	// KindNop is a node that the analysis ignores entirely.
	KindNop NodeKind = iota

	// Expressions

	KindVar        // a variable read/write; Name is the variable name without the sigil
	KindName       // a bare identifier (function name, constant)
	KindIntLit     // integer literal; IntVal
	KindFloatLit   // float literal
	KindStringLit  // single-quoted string literal; StrVal
	KindBoolLit    // true/false
	KindNullLit    // null
	KindMagicConst // __FILE__, __LINE__, ...
	KindConst      // a global constant reference; Name
	KindClassConst // Class::CONST or Class::class; Name is "Class::CONST"
	KindDim        // subscript a[k]; Children: [base, index] where index may be nil (a[])
	KindProp       // property access; Children: [base]; Name is the property name
	KindStaticProp // static property; Name is "Class::$prop"
	KindArray      // array literal; Children are KindArrayElem nodes
	KindArrayElem  // one element of an array literal; Children: [key, value], key may be nil
	KindList       // destructuring target [$a, $b] or list(...); Children are KindArrayElem
	KindEncaps     // double-quoted string interpolation; Children are parts
	KindBinaryOp   // binary operation; Op; Children: [left, right]
	KindUnaryOp    // unary operation; Op; Children: [operand]
	KindCast       // cast; Name is the target type; Children: [operand]
	KindCond       // a ? b : c; Children: [cond, then, else], then may be nil (elvis)
	KindMatch      // match expression; Children: [subject, arms...]
	KindMatchArm   // one arm; Children: [conditions..., body]; default arm when Name == "default"
	KindAssign     // plain assignment; Children: [lhs, rhs]
	KindAssignOp   // augmented assignment; Op; Children: [lhs, rhs]
	KindAssignRef  // reference binding $a = &$b; Children: [lhs, rhs]
	KindIncDec     // ++/--; Op; Children: [operand]
	KindCall       // function call; Children: [callee, args...]
	KindMethodCall // method call; Name is the method name; Children: [object, args...]
	KindStaticCall // static call; Name is "Class::method"; Children are args
	KindNew        // object creation; Name is the class name; Children are args
	KindArg        // call argument; ByRef for &$x arguments; Children: [value]
	KindClone      // clone expression; Children: [operand]
	KindIsset      // isset(...)
	KindEmpty      // empty(...)
	KindInstanceOf // $x instanceof C
	KindClosure    // closure literal; Func holds the function info
	KindShellExec  // `backticks`; Children are the interpolated parts
	KindPrint      // print expr; Children: [operand]
	KindEval       // eval(expr); Children: [operand]
	KindInclude    // include/require family; Name is the keyword; Children: [operand]
	KindExit       // exit/die; Children: [operand] or empty

	// Statements

	KindBlock     // a statement list
	KindExprStmt  // an expression used as a statement
	KindEcho      // echo e1, e2, ...; Children are the expressions
	KindReturn    // return; Children: [expr] or empty
	KindGlobal    // global $x; Name is the variable name
	KindStaticVar // static $x = init; Name; Children: [init] or empty
	KindUnset     // unset(...); Children are the targets
	KindIf        // Children: [cond, then, else] where else may be nil
	KindWhile     // Children: [cond, body]
	KindDoWhile   // Children: [body, cond]
	KindFor       // Children: [init, cond, step, body], any may be nil
	KindForeach   // Children: [iterable, keyVar, valueVar, body]; keyVar may be nil
	KindSwitch    // Children: [subject, cases...]
	KindCase      // Children: [cond, stmts...]; default case when cond is nil
	KindTry       // Children: [body, catches..., finally]
	KindCatch     // Children: [var, body]; var may be nil
	KindThrow     // Children: [expr]
	KindFuncDecl  // function declaration; Func holds the function info
	KindClassDecl // class declaration; Name; Children are member declarations
	KindBreak
	KindContinue
)

// A Node is one node of the analyzed program's AST. The meaning of Name, Op, the
// literal payloads and the Children slice depends on the Kind; nil entries in Children
// are allowed where the grammar makes a position optional.
type Node struct {
	Kind NodeKind
	Line int

	// Name is the identifier payload of the node (variable name, method name, ...)
	Name string

	// Op is the operator token for binary, unary, inc/dec and augmented assignments
	Op string

	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool

	// ByRef is set on arguments passed by reference and by-ref array elements
	ByRef bool

	// Func is the declared function for KindFuncDecl and KindClosure nodes
	Func *FunctionInfo

	Children []*Node
}

// Child returns the i-th child or nil when the node has fewer children.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// IsScalarLiteral returns true when the node is a literal whose value is known
// statically, i.e. a candidate for array-key resolution.
func (n *Node) IsScalarLiteral() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case KindIntLit, KindStringLit, KindBoolLit, KindFloatLit, KindNullLit:
		return true
	default:
		return false
	}
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var kindNames = map[NodeKind]string{
	KindNop: "nop", KindVar: "var", KindName: "name", KindIntLit: "int",
	KindFloatLit: "float", KindStringLit: "string", KindBoolLit: "bool",
	KindNullLit: "null", KindMagicConst: "magic-const", KindConst: "const",
	KindClassConst: "class-const", KindDim: "dim", KindProp: "prop",
	KindStaticProp: "static-prop", KindArray: "array", KindArrayElem: "array-elem",
	KindList: "list", KindEncaps: "encaps", KindBinaryOp: "binary-op",
	KindUnaryOp: "unary-op", KindCast: "cast", KindCond: "cond", KindMatch: "match",
	KindMatchArm: "match-arm", KindAssign: "assign", KindAssignOp: "assign-op",
	KindAssignRef: "assign-ref", KindIncDec: "incdec", KindCall: "call",
	KindMethodCall: "method-call", KindStaticCall: "static-call", KindNew: "new",
	KindArg: "arg", KindClone: "clone", KindIsset: "isset", KindEmpty: "empty",
	KindInstanceOf: "instanceof", KindClosure: "closure", KindShellExec: "shell-exec",
	KindPrint: "print", KindEval: "eval", KindInclude: "include", KindExit: "exit",
	KindBlock: "block", KindExprStmt: "expr-stmt", KindEcho: "echo",
	KindReturn: "return", KindGlobal: "global", KindStaticVar: "static-var",
	KindUnset: "unset", KindIf: "if", KindWhile: "while", KindDoWhile: "do-while",
	KindFor: "for", KindForeach: "foreach", KindSwitch: "switch", KindCase: "case",
	KindTry: "try", KindCatch: "catch", KindThrow: "throw", KindFuncDecl: "func-decl",
	KindClassDecl: "class-decl", KindBreak: "break", KindContinue: "continue",
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Name != "" {
		return fmt.Sprintf("<%s %s @%d>", n.Kind, n.Name, n.Line)
	}
	return fmt.Sprintf("<%s @%d>", n.Kind, n.Line)
}
