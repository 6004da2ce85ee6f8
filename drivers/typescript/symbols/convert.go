package symbols

import (
	"strings"

	"github.com/emenda-labs/tsexports/drivers/typescript/compiler"
	"github.com/emenda-labs/tsexports/drivers/typescript/tsparser"
)

// FromResult flattens an extraction result into serializable records. File
// names are made relative to the host's base directory.
func FromResult(res *tsparser.Result) Symbols {
	if res == nil {
		return Symbols{}
	}
	base := res.Host.BaseDir()

	out := Symbols{Modules: make([]Module, 0, res.ModuleSymbols.Len())}
	for _, m := range res.ModuleSymbols.Modules {
		file := relative(base, m.FileName)
		mod := Module{File: file, Exports: make([]Symbol, 0, len(m.ExportArray))}
		for _, export := range m.ExportArray {
			mod.Exports = append(mod.Exports, fromExport(base, file, export, res.TypeChecker))
		}
		out.Modules = append(out.Modules, mod)
	}
	return out
}

func fromExport(base, file string, export tsparser.AugmentedSymbol, checker *compiler.Checker) Symbol {
	sym := Symbol{
		Name:   export.Name(),
		Flags:  export.Symbol.Flags.String(),
		Module: file,
	}

	target := export.Target()
	if !export.IsAlias() {
		sym.Kind = KindOf(target)
		sym.Signature = signatureOf(target)
		return sym
	}

	if target == nil || target == checker.UnknownSymbol() {
		sym.Kind = SymbolUnknown
		sym.Alias = &AliasTarget{Kind: SymbolUnknown}
		return sym
	}

	sym.Kind = KindOf(target)
	sym.Signature = signatureOf(target)
	alias := &AliasTarget{Name: target.Name, Module: relative(base, target.FileName()), Kind: sym.Kind}
	if sym.Kind == SymbolModule {
		alias.Name = alias.Module
	}
	sym.Alias = alias
	return sym
}

// KindOf classifies a compiler symbol. Merged declarations take the most
// specific kind: a class merged with an interface is a class.
func KindOf(sym *compiler.Symbol) SymbolKind {
	if sym == nil {
		return SymbolUnknown
	}
	if d := sym.ValueDeclaration(); d != nil && d.Kind == "program" {
		return SymbolModule
	}

	f := sym.Flags
	switch {
	case f.Has(compiler.SymbolClass):
		return SymbolClass
	case f.Has(compiler.SymbolEnum):
		return SymbolEnum
	case f.Has(compiler.SymbolFunction):
		return SymbolFunction
	case f.Has(compiler.SymbolInterface):
		return SymbolInterface
	case f.Has(compiler.SymbolTypeAlias):
		return SymbolType
	case f&compiler.SymbolModule != 0:
		return SymbolNamespace
	case f.Has(compiler.SymbolBlockScopedVariable):
		if d := sym.ValueDeclaration(); d != nil && strings.HasPrefix(d.Text, "const ") {
			return SymbolConst
		}
		return SymbolVar
	case f.Has(compiler.SymbolFunctionScopedVariable):
		return SymbolVar
	case f.Has(compiler.SymbolProperty):
		return SymbolValue
	}
	return SymbolUnknown
}

// signatureOf joins the text of every declaration, so overloads and merged
// interfaces are compared as a whole.
func signatureOf(sym *compiler.Symbol) string {
	if KindOf(sym) == SymbolModule {
		return ""
	}
	var parts []string
	for _, d := range sym.Declarations {
		if d.Text != "" {
			parts = append(parts, d.Text)
		}
	}
	return strings.Join(parts, "; ")
}

func relative(base, fileName string) string {
	if base == "" || base == "/" {
		return strings.TrimPrefix(fileName, "/")
	}
	if rest, ok := strings.CutPrefix(fileName, base+"/"); ok {
		return rest
	}
	return fileName
}
