package symbols

// SymbolKind identifies what kind of TypeScript declaration an export names.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolEnum      SymbolKind = "enum"
	SymbolNamespace SymbolKind = "namespace"
	SymbolConst     SymbolKind = "const"
	SymbolVar       SymbolKind = "var"
	SymbolValue     SymbolKind = "value"
	SymbolModule    SymbolKind = "module"
	SymbolUnknown   SymbolKind = "unknown"
)

// IsType reports whether the kind only exists at the type level or defines
// a shape, so a change to it is a type change rather than a signature change.
func (k SymbolKind) IsType() bool {
	switch k {
	case SymbolClass, SymbolInterface, SymbolType, SymbolEnum:
		return true
	}
	return false
}

// AliasTarget is the declaration a re-export resolves to.
type AliasTarget struct {
	Name   string     `json:"name" yaml:"name"`
	Module string     `json:"module,omitempty" yaml:"module,omitempty"`
	Kind   SymbolKind `json:"kind" yaml:"kind"`
}

// Symbol is one export of a module.
type Symbol struct {
	Name      string       `json:"name" yaml:"name"`
	Kind      SymbolKind   `json:"kind" yaml:"kind"`
	Flags     string       `json:"flags" yaml:"flags"`
	Module    string       `json:"module" yaml:"module"`
	Signature string       `json:"signature,omitempty" yaml:"signature,omitempty"`
	Alias     *AliasTarget `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Module is one input file and its exports, in export order.
type Module struct {
	File    string   `json:"file" yaml:"file"`
	Exports []Symbol `json:"exports" yaml:"exports"`
}

// Symbols is the full set of exports of a package version.
type Symbols struct {
	Package string   `json:"package,omitempty" yaml:"package,omitempty"`
	Version string   `json:"version,omitempty" yaml:"version,omitempty"`
	Modules []Module `json:"modules" yaml:"modules"`
}

// Len returns the number of exports across all modules.
func (s Symbols) Len() int {
	n := 0
	for _, m := range s.Modules {
		n += len(m.Exports)
	}
	return n
}

// All returns every export in module order.
func (s Symbols) All() []Symbol {
	out := make([]Symbol, 0, s.Len())
	for _, m := range s.Modules {
		out = append(out, m.Exports...)
	}
	return out
}
