package compiler

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// declarationText renders the header of a declaration on one line: the part
// before its body for functions, classes, interfaces, enums and namespaces,
// and the whole declaration for type aliases and signatures.
func declarationText(n *sitter.Node, src []byte) string {
	end := n.EndByte()
	if body := n.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	if end < n.StartByte() {
		end = n.StartByte()
	}
	text := collapse(string(src[n.StartByte():end]))
	text = strings.TrimRight(text, " {;")
	return text
}

// variableText renders a declarator as `name: Type`, dropping the
// initializer.
func variableText(declarator *sitter.Node, src []byte) string {
	name := declarator.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	end := name.EndByte()
	if typ := declarator.ChildByFieldName("type"); typ != nil {
		end = typ.EndByte()
	}
	return collapse(string(src[declarator.StartByte():end]))
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
