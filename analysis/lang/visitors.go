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

// Visit walks the AST rooted at n in pre/post order. pre is called before the
// children and may return false to prune the subtree; post is called after the
// children. Either callback may be nil. Nil children are skipped.
func Visit(n *Node, pre func(*Node) bool, post func(*Node)) {
	if n == nil {
		return
	}
	if pre != nil && !pre(n) {
		return
	}
	for _, c := range n.Children {
		Visit(c, pre, post)
	}
	if post != nil {
		post(n)
	}
}

// CalledNames collects the names of all directly-called functions under n, without
// descending into nested declarations. Method and static calls are included by their
// syntactic name; dynamic calls through variables are not.
func CalledNames(n *Node) []string {
	var names []string
	Visit(n, func(c *Node) bool {
		switch c.Kind {
		case KindFuncDecl, KindClosure, KindClassDecl:
			return false
		case KindCall:
			if callee := c.Child(0); callee != nil && callee.Kind == KindName {
				names = append(names, callee.Name)
			}
		case KindMethodCall, KindStaticCall, KindNew:
			if c.Name != "" {
				names = append(names, c.Name)
			}
		}
		return true
	}, nil)
	return names
}
