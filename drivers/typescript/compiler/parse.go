package compiler

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Tree-sitter node types the summary walker cares about.
const (
	nodeImportStatement      = "import_statement"
	nodeImportClause         = "import_clause"
	nodeImportRequireClause  = "import_require_clause"
	nodeNamespaceImport      = "namespace_import"
	nodeNamedImports         = "named_imports"
	nodeImportSpecifier      = "import_specifier"
	nodeExportStatement      = "export_statement"
	nodeExportClause         = "export_clause"
	nodeExportSpecifier      = "export_specifier"
	nodeNamespaceExport      = "namespace_export"
	nodeExpressionStatement  = "expression_statement"
	nodeAmbientDeclaration   = "ambient_declaration"
	nodeFunctionDeclaration  = "function_declaration"
	nodeGeneratorDeclaration = "generator_function_declaration"
	nodeFunctionSignature    = "function_signature"
	nodeClassDeclaration     = "class_declaration"
	nodeAbstractClass        = "abstract_class_declaration"
	nodeInterfaceDeclaration = "interface_declaration"
	nodeTypeAliasDeclaration = "type_alias_declaration"
	nodeEnumDeclaration      = "enum_declaration"
	nodeLexicalDeclaration   = "lexical_declaration"
	nodeVariableDeclaration  = "variable_declaration"
	nodeVariableDeclarator   = "variable_declarator"
	nodeInternalModule       = "internal_module"
	nodeModule               = "module"
	nodeIdentifier           = "identifier"
	nodeNestedIdentifier     = "nested_identifier"
	nodeString               = "string"
	nodeImportAlias          = "import_alias"
)

type entryKind int

const (
	entryDeclaration entryKind = iota
	entryImport
	entryExport
	entryExportStar
	entryImportAlias
)

// summaryEntry is one binding-relevant fact about a top-level statement.
// Entries keep source order so the binder sees statements as written.
type summaryEntry struct {
	kind     entryKind
	pos      Position
	nodeKind string
	text     string

	// name is the binding the entry introduces: the declared or imported
	// local name, or the exported name for export specifiers.
	name      string
	flags     SymbolFlags
	exported  bool
	isDefault bool

	// target is the referenced name: the imported export name, the local
	// name an export specifier points at, or "*" for a whole module.
	target    string
	specifier string
}

// fileSummary is what the binder needs from one parsed file.
type fileSummary struct {
	isModule    bool
	entries     []summaryEntry
	specifiers  []string
	diagnostics []Diagnostic
}

// languageFor picks the grammar by extension. Unknown extensions are parsed
// as TypeScript, which accepts plain JavaScript too.
func languageFor(fileName string) *sitter.Language {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs", ".es6":
		return javascript.GetLanguage()
	default:
		return typescript.GetLanguage()
	}
}

// parseSource parses text and summarizes its top-level statements.
func parseSource(ctx context.Context, fileName, text string) (*fileSummary, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(languageFor(fileName))

	src := []byte(text)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	defer tree.Close()

	w := &summaryWalker{
		fileName: fileName,
		src:      src,
		summary:  &fileSummary{},
		seenSpec: make(map[string]bool),
	}

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.statement(root.NamedChild(i))
	}

	if root.HasError() {
		w.summary.diagnostics = append(w.summary.diagnostics, Diagnostic{
			FileName: fileName,
			Pos:      firstErrorPosition(root),
			Category: DiagnosticWarning,
			Message:  "syntax error; exports after this point may be incomplete",
		})
	}

	return w.summary, nil
}

type summaryWalker struct {
	fileName string
	src      []byte
	summary  *fileSummary
	seenSpec map[string]bool
}

func (w *summaryWalker) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *summaryWalker) add(e summaryEntry) {
	w.summary.entries = append(w.summary.entries, e)
}

func (w *summaryWalker) addSpecifier(spec string) {
	if spec == "" || w.seenSpec[spec] {
		return
	}
	w.seenSpec[spec] = true
	w.summary.specifiers = append(w.summary.specifiers, spec)
}

func (w *summaryWalker) statement(n *sitter.Node) {
	switch n.Type() {
	case nodeImportStatement:
		w.summary.isModule = true
		w.importStatement(n)
	case nodeExportStatement:
		w.summary.isModule = true
		w.exportStatement(n)
	case nodeExpressionStatement:
		// `namespace Foo {}` parses as an expression statement.
		if inner := n.NamedChild(0); inner != nil && inner.Type() == nodeInternalModule {
			w.declaration(inner, false, false)
		}
	default:
		w.declaration(n, false, false)
	}
}

func (w *summaryWalker) importStatement(n *sitter.Node) {
	spec := unquote(w.content(n.ChildByFieldName("source")))

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case nodeImportClause:
			w.importClause(child, spec)
		case nodeImportRequireClause:
			// import x = require('./x')
			reqSpec := unquote(w.content(child.ChildByFieldName("source")))
			if reqSpec == "" {
				reqSpec = unquote(w.content(firstNamedOfType(child, nodeString)))
			}
			local := firstNamedOfType(child, nodeIdentifier)
			if local != nil && reqSpec != "" {
				w.addSpecifier(reqSpec)
				w.add(summaryEntry{
					kind:      entryImport,
					pos:       position(child),
					nodeKind:  child.Type(),
					text:      collapse(w.content(child)),
					name:      w.content(local),
					target:    "*",
					specifier: reqSpec,
				})
			}
		}
	}

	// Side-effect imports still pull the module into the program.
	w.addSpecifier(spec)
}

func (w *summaryWalker) importClause(n *sitter.Node, spec string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case nodeIdentifier:
			w.add(summaryEntry{
				kind:      entryImport,
				pos:       position(child),
				nodeKind:  nodeImportClause,
				text:      "import " + w.content(child),
				name:      w.content(child),
				target:    "default",
				specifier: spec,
			})
		case nodeNamespaceImport:
			local := firstNamedOfType(child, nodeIdentifier)
			if local == nil {
				continue
			}
			w.add(summaryEntry{
				kind:      entryImport,
				pos:       position(child),
				nodeKind:  child.Type(),
				text:      "import " + collapse(w.content(child)),
				name:      w.content(local),
				target:    "*",
				specifier: spec,
			})
		case nodeNamedImports:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				specNode := child.NamedChild(j)
				if specNode.Type() != nodeImportSpecifier {
					continue
				}
				imported := unquote(w.content(specNode.ChildByFieldName("name")))
				local := imported
				if alias := specNode.ChildByFieldName("alias"); alias != nil {
					local = w.content(alias)
				}
				if imported == "" {
					continue
				}
				w.add(summaryEntry{
					kind:      entryImport,
					pos:       position(specNode),
					nodeKind:  specNode.Type(),
					text:      "import { " + collapse(w.content(specNode)) + " }",
					name:      local,
					target:    imported,
					specifier: spec,
				})
			}
		}
	}
}

func (w *summaryWalker) exportStatement(n *sitter.Node) {
	spec := unquote(w.content(n.ChildByFieldName("source")))
	w.addSpecifier(spec)

	isDefault := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); !c.IsNamed() && c.Type() == "default" {
			isDefault = true
			break
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		w.declaration(decl, true, isDefault)
		return
	}

	if value := n.ChildByFieldName("value"); value != nil && isDefault {
		w.exportDefaultValue(n, value)
		return
	}

	sawClause := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case nodeExportClause:
			sawClause = true
			w.exportClause(child, spec)
		case nodeNamespaceExport:
			sawClause = true
			name := lastNamedChild(child)
			if name == nil {
				continue
			}
			w.add(summaryEntry{
				kind:      entryExport,
				pos:       position(child),
				nodeKind:  child.Type(),
				text:      "export " + collapse(w.content(child)),
				name:      unquote(w.content(name)),
				target:    "*",
				specifier: spec,
			})
		case "=":
			// export = x
			sawClause = true
			if expr := nextNamedSibling(n, i); expr != nil && expr.Type() == nodeIdentifier {
				w.add(summaryEntry{
					kind:     entryExport,
					pos:      position(n),
					nodeKind: n.Type(),
					text:     "export = " + w.content(expr),
					name:     "export=",
					target:   w.content(expr),
				})
			}
		}
	}

	if !sawClause && spec != "" {
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); !c.IsNamed() && c.Type() == "*" {
				w.add(summaryEntry{
					kind:      entryExportStar,
					pos:       position(n),
					nodeKind:  n.Type(),
					text:      collapse(w.content(n)),
					specifier: spec,
				})
				break
			}
		}
	}
}

func (w *summaryWalker) exportClause(n *sitter.Node, spec string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != nodeExportSpecifier {
			continue
		}
		local := unquote(w.content(child.ChildByFieldName("name")))
		if local == "" {
			continue
		}
		exported := local
		if alias := child.ChildByFieldName("alias"); alias != nil {
			exported = unquote(w.content(alias))
		}
		w.add(summaryEntry{
			kind:      entryExport,
			pos:       position(child),
			nodeKind:  child.Type(),
			text:      "export { " + collapse(w.content(child)) + " }",
			name:      exported,
			target:    local,
			specifier: spec,
		})
	}
}

func (w *summaryWalker) exportDefaultValue(stmt, value *sitter.Node) {
	switch value.Type() {
	case nodeIdentifier:
		w.add(summaryEntry{
			kind:     entryExport,
			pos:      position(stmt),
			nodeKind: stmt.Type(),
			text:     "export default " + w.content(value),
			name:     "default",
			target:   w.content(value),
		})
	case "class":
		w.addDefaultDeclaration(stmt, value, SymbolClass)
	case "function", "function_expression", "arrow_function", "generator_function":
		w.addDefaultDeclaration(stmt, value, SymbolFunction)
	default:
		w.add(summaryEntry{
			kind:      entryDeclaration,
			pos:       position(stmt),
			nodeKind:  stmt.Type(),
			text:      "export default " + truncate(collapse(w.content(value)), 60),
			flags:     SymbolProperty,
			exported:  true,
			isDefault: true,
		})
	}
}

func (w *summaryWalker) addDefaultDeclaration(stmt, value *sitter.Node, flags SymbolFlags) {
	w.add(summaryEntry{
		kind:      entryDeclaration,
		pos:       position(stmt),
		nodeKind:  value.Type(),
		text:      declarationText(value, w.src),
		name:      w.content(value.ChildByFieldName("name")),
		flags:     flags,
		exported:  true,
		isDefault: true,
	})
}

func (w *summaryWalker) declaration(n *sitter.Node, exported, isDefault bool) {
	var flags SymbolFlags

	switch n.Type() {
	case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeFunctionSignature:
		flags = SymbolFunction
	case nodeClassDeclaration, nodeAbstractClass, "class":
		flags = SymbolClass
	case nodeInterfaceDeclaration:
		flags = SymbolInterface
	case nodeTypeAliasDeclaration:
		flags = SymbolTypeAlias
	case nodeEnumDeclaration:
		flags = SymbolEnum
	case nodeLexicalDeclaration, nodeVariableDeclaration:
		w.variables(n, exported)
		return
	case nodeInternalModule, nodeModule:
		w.namespace(n, exported)
		return
	case nodeImportAlias:
		w.importAlias(n, exported)
		return
	case nodeAmbientDeclaration:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == nodeExpressionStatement {
				child = child.NamedChild(0)
			}
			if child != nil {
				w.declaration(child, exported, isDefault)
			}
		}
		return
	default:
		return
	}

	name := w.content(n.ChildByFieldName("name"))
	if name == "" && !isDefault {
		return
	}

	w.add(summaryEntry{
		kind:      entryDeclaration,
		pos:       position(n),
		nodeKind:  n.Type(),
		text:      declarationText(n, w.src),
		name:      name,
		flags:     flags,
		exported:  exported,
		isDefault: isDefault,
	})
}

// importAlias handles `import Z = N.q`, exported or not. The target is kept
// as the dotted entity name.
func (w *summaryWalker) importAlias(n *sitter.Node, exported bool) {
	if n.NamedChildCount() < 2 {
		return
	}
	name := n.NamedChild(0)
	target := n.NamedChild(1)
	if name.Type() != nodeIdentifier {
		return
	}
	text := collapse(w.content(n))
	if exported {
		text = "export " + text
	}
	w.add(summaryEntry{
		kind:     entryImportAlias,
		pos:      position(n),
		nodeKind: n.Type(),
		text:     strings.TrimSuffix(text, ";"),
		name:     w.content(name),
		exported: exported,
		target:   strings.Join(strings.Fields(w.content(target)), ""),
	})
}

func (w *summaryWalker) variables(n *sitter.Node, exported bool) {
	flags := SymbolBlockScopedVariable
	keyword := "const"
	if n.Type() == nodeVariableDeclaration {
		flags = SymbolFunctionScopedVariable
		keyword = "var"
	} else if first := n.Child(0); first != nil && first.Type() == "let" {
		keyword = "let"
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		declarator := n.NamedChild(i)
		if declarator.Type() != nodeVariableDeclarator {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		if nameNode.Type() != nodeIdentifier {
			// Destructuring: every bound identifier becomes a variable.
			for _, id := range boundIdentifiers(nameNode) {
				w.add(summaryEntry{
					kind:     entryDeclaration,
					pos:      position(id),
					nodeKind: declarator.Type(),
					text:     keyword + " " + w.content(id),
					name:     w.content(id),
					flags:    flags,
					exported: exported,
				})
			}
			continue
		}
		w.add(summaryEntry{
			kind:     entryDeclaration,
			pos:      position(declarator),
			nodeKind: declarator.Type(),
			text:     keyword + " " + variableText(declarator, w.src),
			name:     w.content(nameNode),
			flags:    flags,
			exported: exported,
		})
	}
}

func (w *summaryWalker) namespace(n *sitter.Node, exported bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() == nodeString {
		// `declare module "x"` augments another module; it declares nothing here.
		return
	}

	name := w.content(nameNode)
	if nameNode.Type() == nodeNestedIdentifier {
		name, _, _ = strings.Cut(name, ".")
	}

	flags := SymbolNamespaceModule
	if isInstantiated(n.ChildByFieldName("body")) {
		flags = SymbolValueModule
	}

	w.add(summaryEntry{
		kind:     entryDeclaration,
		pos:      position(n),
		nodeKind: n.Type(),
		text:     declarationText(n, w.src),
		name:     strings.TrimSpace(name),
		flags:    flags,
		exported: exported,
	})
}

// isInstantiated reports whether a namespace body contains anything beyond
// type declarations.
func isInstantiated(body *sitter.Node) bool {
	if body == nil {
		return false
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == nodeExportStatement {
			if decl := stmt.ChildByFieldName("declaration"); decl != nil {
				stmt = decl
			}
		}
		switch stmt.Type() {
		case nodeInterfaceDeclaration, nodeTypeAliasDeclaration, "comment":
			continue
		}
		return true
	}
	return false
}

// boundIdentifiers collects the identifiers bound by a destructuring pattern.
func boundIdentifiers(pattern *sitter.Node) []*sitter.Node {
	var ids []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case nodeIdentifier, "shorthand_property_identifier_pattern":
			ids = append(ids, n)
			return
		case "pair_pattern":
			if v := n.ChildByFieldName("value"); v != nil {
				walk(v)
			}
			return
		case "assignment_pattern", "object_assignment_pattern":
			if l := n.ChildByFieldName("left"); l != nil {
				walk(l)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(pattern)
	return ids
}

func position(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func firstErrorPosition(root *sitter.Node) Position {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil || !n.HasError() {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if found == nil {
		return Position{}
	}
	return position(found)
}

func firstNamedOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func lastNamedChild(n *sitter.Node) *sitter.Node {
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil
	}
	return n.NamedChild(count - 1)
}

func nextNamedSibling(parent *sitter.Node, idx int) *sitter.Node {
	for i := idx + 1; i < int(parent.ChildCount()); i++ {
		if c := parent.Child(i); c.IsNamed() {
			return c
		}
	}
	return nil
}

// unquote strips the quotes of a string literal.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
