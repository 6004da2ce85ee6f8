package compiler

import (
	"strings"
)

// SymbolFlags classifies what a symbol declares. A symbol merged from several
// declarations carries the union of their flags.
type SymbolFlags uint32

const (
	SymbolNone                   SymbolFlags = 0
	SymbolFunctionScopedVariable SymbolFlags = 1 << iota // var
	SymbolBlockScopedVariable                            // let, const
	SymbolProperty                                       // export default <expression>
	SymbolEnum
	SymbolFunction
	SymbolClass
	SymbolInterface
	SymbolTypeAlias
	SymbolValueModule     // source file module or instantiated namespace
	SymbolNamespaceModule // namespace without values
	SymbolAlias           // import, export specifier, export default identifier

	SymbolVariable = SymbolFunctionScopedVariable | SymbolBlockScopedVariable
	SymbolValue    = SymbolVariable | SymbolProperty | SymbolEnum | SymbolFunction | SymbolClass | SymbolValueModule
	SymbolType     = SymbolClass | SymbolInterface | SymbolEnum | SymbolTypeAlias
	SymbolModule   = SymbolValueModule | SymbolNamespaceModule
)

var flagNames = []struct {
	flag SymbolFlags
	name string
}{
	{SymbolFunctionScopedVariable, "var"},
	{SymbolBlockScopedVariable, "const"},
	{SymbolProperty, "property"},
	{SymbolEnum, "enum"},
	{SymbolFunction, "function"},
	{SymbolClass, "class"},
	{SymbolInterface, "interface"},
	{SymbolTypeAlias, "type"},
	{SymbolValueModule, "module"},
	{SymbolNamespaceModule, "namespace"},
	{SymbolAlias, "alias"},
}

// Has reports whether any of the bits in mask are set.
func (f SymbolFlags) Has(mask SymbolFlags) bool {
	return f&mask != 0
}

// Names returns the individual flag names in a stable order.
func (f SymbolFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f SymbolFlags) String() string {
	if f == SymbolNone {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Declaration is one syntactic declaration of a symbol.
type Declaration struct {
	FileName string
	Kind     string // tree-sitter node type, e.g. "function_declaration"
	Pos      Position
	// Text is the declaration header collapsed onto one line, without bodies
	// or initializers.
	Text string
}

// Symbol is a named entity produced by the binder. Symbols are owned by the
// program that created them and compare by identity.
type Symbol struct {
	id           int
	Name         string
	Flags        SymbolFlags
	Declarations []*Declaration
	// Parent is the module symbol that declares this symbol, nil for module
	// symbols themselves.
	Parent *Symbol

	// exports is only set on module symbols.
	exports *SymbolTable
	// file is the declaring source file name.
	file string
	// target describes where an alias points; zero for non-alias symbols.
	target aliasTarget
}

// ID is unique within one program.
func (s *Symbol) ID() int { return s.id }

// FileName is the source file that declares the symbol.
func (s *Symbol) FileName() string { return s.file }

// IsAlias reports whether the symbol must be resolved to find its target.
func (s *Symbol) IsAlias() bool { return s.Flags.Has(SymbolAlias) }

// Exports returns the symbols a module declares itself, in declaration order.
// Names contributed by `export *` are not included; use
// Checker.ExportsOfModule for the complete list.
func (s *Symbol) Exports() *SymbolTable { return s.exports }

// ValueDeclaration returns the first declaration, or nil.
func (s *Symbol) ValueDeclaration() *Declaration {
	if len(s.Declarations) == 0 {
		return nil
	}
	return s.Declarations[0]
}

func (s *Symbol) String() string {
	return s.Name + " (" + s.Flags.String() + ")"
}

type aliasKind int

const (
	aliasNone aliasKind = iota
	// aliasLocal points at a name in the declaring file's locals.
	aliasLocal
	// aliasModuleExport points at an export of another module.
	aliasModuleExport
	// aliasModule points at another module as a whole (`* as ns`, require).
	aliasModule
)

type aliasTarget struct {
	kind      aliasKind
	specifier string
	name      string
}

// SymbolTable is a name to symbol map that remembers insertion order.
type SymbolTable struct {
	names   []string
	symbols map[string]*Symbol
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// Get returns the symbol for name, or nil.
func (t *SymbolTable) Get(name string) *Symbol {
	if t == nil {
		return nil
	}
	return t.symbols[name]
}

// Has reports whether name is present.
func (t *SymbolTable) Has(name string) bool {
	return t.Get(name) != nil
}

// Set inserts sym under name. An existing entry keeps its position.
func (t *SymbolTable) Set(name string, sym *Symbol) {
	if _, ok := t.symbols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.symbols[name] = sym
}

// Len returns the number of entries.
func (t *SymbolTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Names returns the keys in insertion order.
func (t *SymbolTable) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// Symbols returns the values in insertion order.
func (t *SymbolTable) Symbols() []*Symbol {
	if t == nil {
		return nil
	}
	out := make([]*Symbol, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.symbols[name])
	}
	return out
}
