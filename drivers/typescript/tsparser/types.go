package tsparser

import (
	"errors"

	"github.com/emenda-labs/tsexports/drivers/typescript/compiler"
)

// ErrInvalidSourceFile is matched by the error Parse returns when a
// requested file is not part of the compiled program.
var ErrInvalidSourceFile = errors.New("invalid source file")

// InvalidSourceFileError names the file that could not be found.
type InvalidSourceFileError struct {
	FileName string
}

func (e *InvalidSourceFileError) Error() string {
	return "invalid source file: " + e.FileName
}

func (e *InvalidSourceFileError) Is(target error) bool {
	return target == ErrInvalidSourceFile
}

// AugmentedSymbol is an exported symbol plus, for aliases, the symbol the
// alias resolves to. The compiler's symbol is never modified.
type AugmentedSymbol struct {
	Symbol *compiler.Symbol
	// ResolvedSymbol is set exactly when Symbol is an alias. Aliases the
	// checker cannot follow resolve to the checker's unknown symbol.
	ResolvedSymbol *compiler.Symbol
}

// Name is the exported name.
func (s AugmentedSymbol) Name() string { return s.Symbol.Name }

// IsAlias reports whether the export is a re-export or renamed export.
func (s AugmentedSymbol) IsAlias() bool { return s.Symbol.IsAlias() }

// Target is the resolved symbol for aliases and the symbol itself otherwise.
func (s AugmentedSymbol) Target() *compiler.Symbol {
	if s.ResolvedSymbol != nil {
		return s.ResolvedSymbol
	}
	return s.Symbol
}

// ModuleSymbol is the module symbol of one input file with its exports.
type ModuleSymbol struct {
	Symbol      *compiler.Symbol
	FileName    string
	ExportArray []AugmentedSymbol
}

// Name is the module symbol's quoted name.
func (m *ModuleSymbol) Name() string { return m.Symbol.Name }

// ModuleSymbols holds one entry per input file that produced a module
// symbol, in input order.
type ModuleSymbols struct {
	Modules     []*ModuleSymbol
	TypeChecker *compiler.Checker
}

// Len returns the number of modules.
func (m ModuleSymbols) Len() int { return len(m.Modules) }

// Result is everything a Parse call produced. The handles are meant for
// further read-only interrogation.
type Result struct {
	ModuleSymbols ModuleSymbols
	TypeChecker   *compiler.Checker
	Program       *compiler.Program
	Host          *CompilerHost
}
