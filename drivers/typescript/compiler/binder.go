package compiler

import (
	"fmt"
	"path"
	"strings"
)

// SourceFile is a parsed and bound file of a program.
type SourceFile struct {
	FileName string
	Text     string
	// Symbol is the module symbol. It is nil for scripts, i.e. files with no
	// top-level import or export.
	Symbol *Symbol
	// Locals holds top-level declarations and imports.
	Locals *SymbolTable
	// ModuleSpecifiers lists imported and re-exported specifiers in source
	// order, without duplicates.
	ModuleSpecifiers []string

	resolvedModules map[string]string
	starExports     []starExport
	diagnostics     []Diagnostic
}

type starExport struct {
	specifier string
	pos       Position
}

// IsModule reports whether the file has a module symbol.
func (f *SourceFile) IsModule() bool { return f.Symbol != nil }

// ResolvedModule returns the file a specifier of this file resolved to.
func (f *SourceFile) ResolvedModule(specifier string) (string, bool) {
	name, ok := f.resolvedModules[specifier]
	return name, ok
}

// moduleSymbolName mirrors the quoted-path naming compilers use for file
// modules: the file name without its extension.
func moduleSymbolName(fileName string) string {
	trimmed := strings.TrimSuffix(fileName, ".d.ts")
	trimmed = strings.TrimSuffix(trimmed, path.Ext(trimmed))
	return `"` + trimmed + `"`
}

type binder struct {
	program *Program
	file    *SourceFile
}

func (p *Program) bindFile(fileName, text string, summary *fileSummary) *SourceFile {
	file := &SourceFile{
		FileName:         fileName,
		Text:             text,
		Locals:           NewSymbolTable(),
		ModuleSpecifiers: summary.specifiers,
		resolvedModules:  make(map[string]string),
		diagnostics:      summary.diagnostics,
	}

	if summary.isModule {
		file.Symbol = p.newSymbol(moduleSymbolName(fileName), SymbolValueModule, fileName)
		file.Symbol.exports = NewSymbolTable()
		file.Symbol.Declarations = []*Declaration{{
			FileName: fileName,
			Kind:     "program",
			Pos:      Position{Line: 1, Column: 1},
			Text:     "module " + file.Symbol.Name,
		}}
	}

	b := &binder{program: p, file: file}
	for _, entry := range summary.entries {
		switch entry.kind {
		case entryDeclaration:
			b.bindDeclaration(entry)
		case entryImport:
			b.bindImport(entry)
		case entryExport:
			b.bindExport(entry)
		case entryImportAlias:
			b.bindImportAlias(entry)
		case entryExportStar:
			file.starExports = append(file.starExports, starExport{specifier: entry.specifier, pos: entry.pos})
		}
	}

	return file
}

func (b *binder) declarationOf(entry summaryEntry) *Declaration {
	return &Declaration{
		FileName: b.file.FileName,
		Kind:     entry.nodeKind,
		Pos:      entry.pos,
		Text:     entry.text,
	}
}

func (b *binder) diagnose(pos Position, format string, args ...any) {
	b.file.diagnostics = append(b.file.diagnostics, Diagnostic{
		FileName: b.file.FileName,
		Pos:      pos,
		Category: DiagnosticError,
		Message:  fmt.Sprintf(format, args...),
	})
}

// canMerge reports whether a second declaration of a name joins the first
// symbol, as with function overloads, interface merging and namespaces.
func canMerge(existing, incoming SymbolFlags) bool {
	if existing.Has(SymbolAlias) || incoming.Has(SymbolAlias) {
		return false
	}
	if existing.Has(SymbolBlockScopedVariable) || incoming.Has(SymbolBlockScopedVariable) {
		return false
	}
	mergeable := SymbolFunction | SymbolInterface | SymbolModule | SymbolClass | SymbolEnum | SymbolFunctionScopedVariable
	if existing&^mergeable != 0 || incoming&^mergeable != 0 {
		return false
	}
	if existing.Has(SymbolClass) && incoming.Has(SymbolClass) {
		return false
	}
	return true
}

func (b *binder) bindDeclaration(entry summaryEntry) {
	decl := b.declarationOf(entry)

	symName := entry.name
	if entry.isDefault {
		symName = "default"
	}

	var sym *Symbol
	if entry.name != "" {
		if existing := b.file.Locals.Get(entry.name); existing != nil {
			if canMerge(existing.Flags, entry.flags) {
				existing.Flags |= entry.flags
				existing.Declarations = append(existing.Declarations, decl)
				sym = existing
			} else {
				b.diagnose(entry.pos, "Duplicate identifier '%s'.", entry.name)
			}
		}
	}
	if sym == nil {
		sym = b.program.newSymbol(symName, entry.flags, b.file.FileName)
		sym.Declarations = []*Declaration{decl}
		sym.Parent = b.file.Symbol
		if entry.name != "" && !b.file.Locals.Has(entry.name) {
			b.file.Locals.Set(entry.name, sym)
		}
	}

	if !entry.exported || b.file.Symbol == nil {
		return
	}
	exportName := entry.name
	if entry.isDefault {
		exportName = "default"
	}
	b.declareExport(exportName, sym, entry.pos)
}

func (b *binder) bindImport(entry summaryEntry) {
	sym := b.program.newSymbol(entry.name, SymbolAlias, b.file.FileName)
	sym.Declarations = []*Declaration{b.declarationOf(entry)}
	sym.Parent = b.file.Symbol
	if entry.target == "*" {
		sym.target = aliasTarget{kind: aliasModule, specifier: entry.specifier}
	} else {
		sym.target = aliasTarget{kind: aliasModuleExport, specifier: entry.specifier, name: entry.target}
	}

	if b.file.Locals.Has(entry.name) {
		b.diagnose(entry.pos, "Import declaration conflicts with local declaration of '%s'.", entry.name)
		return
	}
	b.file.Locals.Set(entry.name, sym)
}

func (b *binder) bindImportAlias(entry summaryEntry) {
	sym := b.program.newSymbol(entry.name, SymbolAlias, b.file.FileName)
	sym.Declarations = []*Declaration{b.declarationOf(entry)}
	sym.Parent = b.file.Symbol
	sym.target = aliasTarget{kind: aliasLocal, name: entry.target}

	if b.file.Locals.Has(entry.name) {
		b.diagnose(entry.pos, "Import declaration conflicts with local declaration of '%s'.", entry.name)
		return
	}
	b.file.Locals.Set(entry.name, sym)

	if entry.exported && b.file.Symbol != nil {
		b.declareExport(entry.name, sym, entry.pos)
	}
}

func (b *binder) bindExport(entry summaryEntry) {
	if b.file.Symbol == nil {
		return
	}

	sym := b.program.newSymbol(entry.name, SymbolAlias, b.file.FileName)
	sym.Declarations = []*Declaration{b.declarationOf(entry)}
	sym.Parent = b.file.Symbol
	switch {
	case entry.specifier == "":
		sym.target = aliasTarget{kind: aliasLocal, name: entry.target}
	case entry.target == "*":
		sym.target = aliasTarget{kind: aliasModule, specifier: entry.specifier}
	default:
		sym.target = aliasTarget{kind: aliasModuleExport, specifier: entry.specifier, name: entry.target}
	}

	b.declareExport(entry.name, sym, entry.pos)
}

func (b *binder) declareExport(name string, sym *Symbol, pos Position) {
	exports := b.file.Symbol.exports
	if existing := exports.Get(name); existing != nil {
		if existing != sym {
			b.diagnose(pos, "Duplicate export '%s'.", name)
		}
		return
	}
	exports.Set(name, sym)
}
