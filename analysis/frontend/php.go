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

// Package frontend parses PHP sources with tree-sitter and translates them into the
// analyzer's AST. The translation is defensive: node types the analyzer has no rule
// for become generic containers so the walk never stops on unexpected syntax.
package frontend

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/webtaint-tools/webtaint/analysis/lang"
)

// A translator converts one parsed file, registering declarations into the code
// base as it goes.
type translator struct {
	src      []byte
	file     string
	cb       *lang.CodeBase
	class    string
	closures int

	// lastComment is the most recent comment seen at the current nesting level,
	// candidate docblock for the next declaration
	lastComment string
}

// LoadFiles parses all paths into a fresh code base.
func LoadFiles(paths []string) (*lang.CodeBase, error) {
	cb := lang.NewCodeBase()
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not read source file: %w", err)
		}
		if err := ParseInto(cb, p, src); err != nil {
			return nil, err
		}
	}
	return cb, nil
}

// ParseInto parses one source buffer and adds its declarations and top-level code
// to the code base.
func ParseInto(cb *lang.CodeBase, name string, src []byte) error {
	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", name, err)
	}
	defer tree.Close()

	tr := &translator{src: src, file: name, cb: cb}
	root := tr.container(tree.RootNode())
	cb.Files = append(cb.Files, &lang.SourceFile{Name: name, Root: root})
	return nil
}

func (t *translator) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (t *translator) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.src)
}

// container translates all named children into a block node.
func (t *translator) container(n *sitter.Node) *lang.Node {
	block := &lang.Node{Kind: lang.KindBlock, Line: t.line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			t.lastComment = t.content(child)
			continue
		}
		if stmt := t.node(child); stmt != nil {
			block.Children = append(block.Children, stmt)
		}
	}
	return block
}

// node translates one tree-sitter node. A nil return drops the node entirely.
//
//gocyclo:ignore
func (t *translator) node(n *sitter.Node) *lang.Node {
	if n == nil {
		return nil
	}
	line := t.line(n)
	switch n.Type() {
	case "php_tag", "text", "text_interpolation", "comment":
		return nil

	case "program", "compound_statement", "declaration_list", "switch_block":
		return t.container(n)

	case "expression_statement":
		return &lang.Node{Kind: lang.KindExprStmt, Line: line,
			Children: []*lang.Node{t.node(n.NamedChild(0))}}

	case "echo_statement":
		echo := &lang.Node{Kind: lang.KindEcho, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			echo.Children = append(echo.Children, t.node(n.NamedChild(i)))
		}
		return echo

	case "print_intrinsic":
		return &lang.Node{Kind: lang.KindPrint, Line: line,
			Children: []*lang.Node{t.node(n.NamedChild(0))}}

	case "exit_statement":
		var arg *lang.Node
		if n.NamedChildCount() > 0 {
			arg = t.node(n.NamedChild(0))
		}
		e := &lang.Node{Kind: lang.KindExit, Line: line}
		if arg != nil {
			e.Children = []*lang.Node{arg}
		}
		return e

	case "unset_statement":
		u := &lang.Node{Kind: lang.KindUnset, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			u.Children = append(u.Children, t.node(n.NamedChild(i)))
		}
		return u

	case "global_declaration":
		// one node per variable keeps the copy rule simple
		block := &lang.Node{Kind: lang.KindBlock, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			name := t.varName(n.NamedChild(i))
			if name != "" {
				block.Children = append(block.Children,
					&lang.Node{Kind: lang.KindGlobal, Line: line, Name: name})
			}
		}
		return block

	case "function_static_declaration":
		block := &lang.Node{Kind: lang.KindBlock, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "static_variable_declaration" {
				continue
			}
			sv := &lang.Node{Kind: lang.KindStaticVar, Line: line,
				Name: t.varName(decl.ChildByFieldName("name"))}
			if init := decl.ChildByFieldName("value"); init != nil {
				sv.Children = []*lang.Node{t.node(init)}
			}
			block.Children = append(block.Children, sv)
		}
		return block

	case "function_definition":
		return t.functionDecl(n, "")

	case "class_declaration":
		return t.classDecl(n)

	case "method_declaration":
		return t.functionDecl(n, t.class)

	case "anonymous_function_creation_expression":
		t.closures++
		name := fmt.Sprintf("{closure#%d@%s:%d}", t.closures, t.file, line)
		decl := t.functionDecl(n, "")
		if decl != nil && decl.Func != nil {
			decl.Func.Name = name
			t.cb.AddFunction(decl.Func)
			return &lang.Node{Kind: lang.KindClosure, Line: line, Func: decl.Func}
		}
		return &lang.Node{Kind: lang.KindClosure, Line: line}

	case "if_statement":
		return t.ifStmt(n)

	case "while_statement":
		return &lang.Node{Kind: lang.KindWhile, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("condition")),
			t.node(n.ChildByFieldName("body")),
		}}

	case "do_statement":
		return &lang.Node{Kind: lang.KindDoWhile, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("body")),
			t.node(n.ChildByFieldName("condition")),
		}}

	case "for_statement":
		return &lang.Node{Kind: lang.KindFor, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("initialize")),
			t.node(n.ChildByFieldName("condition")),
			t.node(n.ChildByFieldName("update")),
			t.node(n.ChildByFieldName("body")),
		}}

	case "foreach_statement":
		return t.foreachStmt(n)

	case "switch_statement":
		sw := &lang.Node{Kind: lang.KindSwitch, Line: line,
			Children: []*lang.Node{t.node(n.ChildByFieldName("condition"))}}
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				c := body.NamedChild(i)
				switch c.Type() {
				case "case_statement", "default_statement":
					cs := &lang.Node{Kind: lang.KindCase, Line: t.line(c)}
					cs.Children = append(cs.Children, t.node(c.ChildByFieldName("value")))
					for j := 0; j < int(c.NamedChildCount()); j++ {
						stmt := c.NamedChild(j)
						if cv := c.ChildByFieldName("value"); cv != nil && stmt.Equal(cv) {
							continue
						}
						cs.Children = append(cs.Children, t.node(stmt))
					}
					sw.Children = append(sw.Children, cs)
				}
			}
		}
		return sw

	case "return_statement":
		r := &lang.Node{Kind: lang.KindReturn, Line: line}
		if n.NamedChildCount() > 0 {
			r.Children = []*lang.Node{t.node(n.NamedChild(0))}
		}
		return r

	case "try_statement":
		tr := &lang.Node{Kind: lang.KindTry, Line: line,
			Children: []*lang.Node{t.node(n.ChildByFieldName("body"))}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "catch_clause":
				tr.Children = append(tr.Children, &lang.Node{
					Kind: lang.KindCatch, Line: t.line(c),
					Children: []*lang.Node{
						t.node(c.ChildByFieldName("name")),
						t.node(c.ChildByFieldName("body")),
					}})
			case "finally_clause":
				tr.Children = append(tr.Children, t.node(c.ChildByFieldName("body")))
			}
		}
		return tr

	case "throw_expression", "throw_statement":
		return &lang.Node{Kind: lang.KindThrow, Line: line,
			Children: []*lang.Node{t.node(n.NamedChild(0))}}

	case "break_statement":
		return &lang.Node{Kind: lang.KindBreak, Line: line}
	case "continue_statement":
		return &lang.Node{Kind: lang.KindContinue, Line: line}

	default:
		return t.expr(n)
	}
}

// expr translates expression nodes.
//
//gocyclo:ignore
func (t *translator) expr(n *sitter.Node) *lang.Node {
	line := t.line(n)
	switch n.Type() {
	case "variable_name":
		return &lang.Node{Kind: lang.KindVar, Line: line, Name: t.varName(n)}

	case "name", "qualified_name":
		return &lang.Node{Kind: lang.KindName, Line: line,
			Name: strings.TrimPrefix(t.content(n), "\\")}

	case "integer":
		i, _ := strconv.ParseInt(strings.ReplaceAll(t.content(n), "_", ""), 0, 64)
		return &lang.Node{Kind: lang.KindIntLit, Line: line, IntVal: i}

	case "float":
		f, _ := strconv.ParseFloat(t.content(n), 64)
		return &lang.Node{Kind: lang.KindFloatLit, Line: line, FloatVal: f}

	case "string":
		return &lang.Node{Kind: lang.KindStringLit, Line: line, StrVal: stripQuotes(t.content(n))}

	case "encapsed_string", "heredoc":
		enc := &lang.Node{Kind: lang.KindEncaps, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "string_value", "string_content", "escape_sequence":
				enc.Children = append(enc.Children,
					&lang.Node{Kind: lang.KindStringLit, Line: t.line(c), StrVal: t.content(c)})
			default:
				enc.Children = append(enc.Children, t.node(c))
			}
		}
		return enc

	case "boolean":
		return &lang.Node{Kind: lang.KindBoolLit, Line: line,
			BoolVal: strings.EqualFold(t.content(n), "true")}

	case "null":
		return &lang.Node{Kind: lang.KindNullLit, Line: line}

	case "shell_command_expression":
		sh := &lang.Node{Kind: lang.KindShellExec, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			sh.Children = append(sh.Children, t.node(n.NamedChild(i)))
		}
		return sh

	case "assignment_expression":
		return &lang.Node{Kind: lang.KindAssign, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("left")), t.node(n.ChildByFieldName("right"))}}

	case "augmented_assignment_expression":
		return &lang.Node{Kind: lang.KindAssignOp, Line: line,
			Op: t.content(n.ChildByFieldName("operator")),
			Children: []*lang.Node{
				t.node(n.ChildByFieldName("left")), t.node(n.ChildByFieldName("right"))}}

	case "reference_assignment_expression":
		return &lang.Node{Kind: lang.KindAssignRef, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("left")), t.node(n.ChildByFieldName("right"))}}

	case "binary_expression":
		return &lang.Node{Kind: lang.KindBinaryOp, Line: line,
			Op: t.content(n.ChildByFieldName("operator")),
			Children: []*lang.Node{
				t.node(n.ChildByFieldName("left")), t.node(n.ChildByFieldName("right"))}}

	case "unary_op_expression":
		return &lang.Node{Kind: lang.KindUnaryOp, Line: line,
			Op:       t.content(n.ChildByFieldName("operator")),
			Children: []*lang.Node{t.node(n.ChildByFieldName("argument"))}}

	case "cast_expression":
		return &lang.Node{Kind: lang.KindCast, Line: line,
			Name:     strings.ToLower(t.content(n.ChildByFieldName("type"))),
			Children: []*lang.Node{t.node(n.ChildByFieldName("value"))}}

	case "update_expression":
		return &lang.Node{Kind: lang.KindIncDec, Line: line,
			Children: []*lang.Node{t.node(n.ChildByFieldName("argument"))}}

	case "conditional_expression":
		return &lang.Node{Kind: lang.KindCond, Line: line, Children: []*lang.Node{
			t.node(n.ChildByFieldName("condition")),
			t.node(n.ChildByFieldName("body")),
			t.node(n.ChildByFieldName("alternative"))}}

	case "match_expression":
		m := &lang.Node{Kind: lang.KindMatch, Line: line,
			Children: []*lang.Node{t.node(n.ChildByFieldName("condition"))}}
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				arm := body.NamedChild(i)
				a := &lang.Node{Kind: lang.KindMatchArm, Line: t.line(arm)}
				if arm.Type() == "match_default_expression" {
					a.Name = "default"
				}
				for j := 0; j < int(arm.NamedChildCount()); j++ {
					a.Children = append(a.Children, t.node(arm.NamedChild(j)))
				}
				m.Children = append(m.Children, a)
			}
		}
		return m

	case "array_creation_expression":
		arr := &lang.Node{Kind: lang.KindArray, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "array_element_initializer" {
				continue
			}
			elem := &lang.Node{Kind: lang.KindArrayElem, Line: t.line(c)}
			if c.NamedChildCount() >= 2 {
				elem.Children = []*lang.Node{t.node(c.NamedChild(0)), t.node(c.NamedChild(1))}
			} else {
				elem.Children = []*lang.Node{nil, t.node(c.NamedChild(0))}
			}
			arr.Children = append(arr.Children, elem)
		}
		return arr

	case "list_literal":
		l := &lang.Node{Kind: lang.KindList, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.Children = append(l.Children, t.node(n.NamedChild(i)))
		}
		return l

	case "subscript_expression":
		var index *lang.Node
		if n.NamedChildCount() >= 2 {
			index = t.node(n.NamedChild(1))
		}
		return &lang.Node{Kind: lang.KindDim, Line: line,
			Children: []*lang.Node{t.node(n.NamedChild(0)), index}}

	case "member_access_expression":
		return &lang.Node{Kind: lang.KindProp, Line: line,
			Name:     t.content(n.ChildByFieldName("name")),
			Children: []*lang.Node{t.node(n.ChildByFieldName("object"))}}

	case "scoped_property_access_expression":
		return &lang.Node{Kind: lang.KindStaticProp, Line: line,
			Name: t.content(n.ChildByFieldName("scope")) + "::" +
				t.content(n.ChildByFieldName("name"))}

	case "function_call_expression":
		return t.callExpr(n)

	case "member_call_expression":
		call := &lang.Node{Kind: lang.KindMethodCall, Line: line,
			Name:     t.content(n.ChildByFieldName("name")),
			Children: []*lang.Node{t.node(n.ChildByFieldName("object"))}}
		call.Children = append(call.Children, t.args(n.ChildByFieldName("arguments"))...)
		return call

	case "scoped_call_expression":
		call := &lang.Node{Kind: lang.KindStaticCall, Line: line,
			Name: t.content(n.ChildByFieldName("scope")) + "::" +
				t.content(n.ChildByFieldName("name"))}
		call.Children = t.args(n.ChildByFieldName("arguments"))
		return call

	case "object_creation_expression":
		nw := &lang.Node{Kind: lang.KindNew, Line: line}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "name" || c.Type() == "qualified_name" {
				nw.Name = strings.TrimPrefix(t.content(c), "\\")
			}
			if c.Type() == "arguments" {
				nw.Children = t.args(c)
			}
		}
		return nw

	case "clone_expression":
		return &lang.Node{Kind: lang.KindClone, Line: line,
			Children: []*lang.Node{t.node(n.NamedChild(0))}}

	case "isset_expression":
		return t.intrinsic(n, lang.KindIsset)

	case "empty_intrinsic":
		return t.intrinsic(n, lang.KindEmpty)

	case "instanceof_expression":
		return t.intrinsic(n, lang.KindInstanceOf)

	case "include_expression", "include_once_expression",
		"require_expression", "require_once_expression":
		keyword := strings.TrimSuffix(n.Type(), "_expression")
		return &lang.Node{Kind: lang.KindInclude, Line: line, Name: keyword,
			Children: []*lang.Node{t.node(n.NamedChild(0))}}

	case "class_constant_access_expression":
		return &lang.Node{Kind: lang.KindClassConst, Line: line, Name: t.content(n)}

	case "parenthesized_expression":
		return t.node(n.NamedChild(0))

	case "argument":
		// arguments normally go through args(); a stray one unwraps
		return t.node(n.NamedChild(0))

	default:
		// unknown syntax keeps its children reachable
		return t.container(n)
	}
}

// callExpr translates a function call, special-casing the intrinsics the analyzer
// treats as constructs rather than callees.
func (t *translator) callExpr(n *sitter.Node) *lang.Node {
	line := t.line(n)
	fn := n.ChildByFieldName("function")
	args := t.args(n.ChildByFieldName("arguments"))

	if fn != nil && (fn.Type() == "name" || fn.Type() == "qualified_name") {
		switch strings.ToLower(strings.TrimPrefix(t.content(fn), "\\")) {
		case "eval":
			return &lang.Node{Kind: lang.KindEval, Line: line,
				Children: []*lang.Node{argValueNode(args, 0)}}
		case "exit", "die":
			e := &lang.Node{Kind: lang.KindExit, Line: line}
			if v := argValueNode(args, 0); v != nil {
				e.Children = []*lang.Node{v}
			}
			return e
		}
	}

	call := &lang.Node{Kind: lang.KindCall, Line: line,
		Children: []*lang.Node{t.node(fn)}}
	call.Children = append(call.Children, args...)
	return call
}

func argValueNode(args []*lang.Node, i int) *lang.Node {
	if i >= len(args) || args[i] == nil {
		return nil
	}
	return args[i].Child(0)
}

// args translates an arguments list into KindArg nodes, tracking by-reference
// argument syntax.
func (t *translator) args(n *sitter.Node) []*lang.Node {
	if n == nil {
		return nil
	}
	var out []*lang.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "argument" {
			continue
		}
		arg := &lang.Node{Kind: lang.KindArg, Line: t.line(c),
			ByRef:    strings.HasPrefix(t.content(c), "&"),
			Children: []*lang.Node{t.node(c.NamedChild(int(c.NamedChildCount()) - 1))}}
		out = append(out, arg)
	}
	return out
}

func (t *translator) intrinsic(n *sitter.Node, kind lang.NodeKind) *lang.Node {
	node := &lang.Node{Kind: kind, Line: t.line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		node.Children = append(node.Children, t.node(n.NamedChild(i)))
	}
	return node
}

// ifStmt folds else-if chains into nested if nodes.
func (t *translator) ifStmt(n *sitter.Node) *lang.Node {
	stmt := &lang.Node{Kind: lang.KindIf, Line: t.line(n), Children: []*lang.Node{
		t.node(n.ChildByFieldName("condition")),
		t.node(n.ChildByFieldName("body")),
		nil,
	}}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		switch alt.Type() {
		case "else_clause":
			stmt.Children[2] = t.node(alt.ChildByFieldName("body"))
		case "else_if_clause":
			stmt.Children[2] = t.ifStmt(alt)
		}
	}
	return stmt
}

func (t *translator) foreachStmt(n *sitter.Node) *lang.Node {
	// named children: iterable, optional key ("key" => value), value, body
	var iterable, keyVar, valueVar, body *lang.Node
	iterable = t.node(n.NamedChild(0))
	body = t.node(n.ChildByFieldName("body"))

	var binds []*lang.Node
	for i := 1; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if bodyNode := n.ChildByFieldName("body"); bodyNode != nil && c.Equal(bodyNode) {
			continue
		}
		binds = append(binds, t.node(c))
	}
	switch len(binds) {
	case 1:
		valueVar = binds[0]
	case 2:
		keyVar, valueVar = binds[0], binds[1]
	}
	return &lang.Node{Kind: lang.KindForeach, Line: t.line(n),
		Children: []*lang.Node{iterable, keyVar, valueVar, body}}
}

// functionDecl translates a function or method declaration and registers it.
func (t *translator) functionDecl(n *sitter.Node, class string) *lang.Node {
	doc := t.lastComment
	t.lastComment = ""

	name := t.content(n.ChildByFieldName("name"))
	if class != "" && name != "" {
		name = class + "::" + name
	}
	info := &lang.FunctionInfo{
		Name:     name,
		Class:    class,
		File:     t.file,
		Line:     t.line(n),
		Docblock: doc,
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		info.ReturnTypeHint = strings.ToLower(strings.TrimPrefix(t.content(ret), ": "))
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "simple_parameter", "property_promotion_parameter":
				info.Params = append(info.Params, lang.ParamInfo{
					Name:     t.varName(p.ChildByFieldName("name")),
					ByRef:    strings.Contains(t.content(p), "&$"),
					TypeHint: strings.ToLower(t.content(p.ChildByFieldName("type"))),
				})
			case "variadic_parameter":
				info.Params = append(info.Params, lang.ParamInfo{
					Name:     t.varName(p.ChildByFieldName("name")),
					Variadic: true,
				})
			}
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		info.Body = t.node(body)
	}
	if info.Name != "" {
		t.cb.AddFunction(info)
	}
	return &lang.Node{Kind: lang.KindFuncDecl, Line: info.Line, Func: info}
}

// classDecl registers a class and translates its members.
func (t *translator) classDecl(n *sitter.Node) *lang.Node {
	name := t.content(n.ChildByFieldName("name"))
	cls := &lang.ClassInfo{Name: name, File: t.file, Line: t.line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "base_clause" && c.NamedChildCount() > 0 {
			cls.Parent = t.content(c.NamedChild(0))
		}
	}
	t.cb.AddClass(cls)

	prevClass := t.class
	t.class = name
	defer func() { t.class = prevClass }()

	decl := &lang.Node{Kind: lang.KindClassDecl, Line: t.line(n), Name: name}
	if body := n.ChildByFieldName("body"); body != nil {
		decl.Children = append(decl.Children, t.container(body))
	}
	return decl
}

// varName extracts the bare variable name from a variable_name node.
func (t *translator) varName(n *sitter.Node) string {
	return strings.TrimPrefix(t.content(n), "$")
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') {
		return s[1 : len(s)-1]
	}
	return s
}
