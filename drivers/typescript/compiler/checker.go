package compiler

import (
	"fmt"
	"strings"
)

// Checker answers symbol questions about a program. It memoizes results and
// is not safe for concurrent use.
type Checker struct {
	program *Program
	unknown *Symbol

	resolvedExports map[*Symbol]*SymbolTable
	computing       map[*Symbol]bool
	aliasTargets    map[*Symbol]*Symbol

	diagnostics []Diagnostic
	reported    map[string]bool
}

func newChecker(p *Program) *Checker {
	return &Checker{
		program:         p,
		unknown:         &Symbol{id: -1, Name: "unknown"},
		resolvedExports: make(map[*Symbol]*SymbolTable),
		computing:       make(map[*Symbol]bool),
		aliasTargets:    make(map[*Symbol]*Symbol),
		reported:        make(map[string]bool),
	}
}

// UnknownSymbol is what unresolvable aliases resolve to.
func (c *Checker) UnknownSymbol() *Symbol { return c.unknown }

// Program returns the program the checker was created for.
func (c *Checker) Program() *Program { return c.program }

// Diagnostics returns problems found while resolving exports and aliases.
func (c *Checker) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.diagnostics...)
}

// SymbolOfModule returns the module symbol of fileName, or nil.
func (c *Checker) SymbolOfModule(fileName string) *Symbol {
	file := c.program.SourceFile(fileName)
	if file == nil {
		return nil
	}
	return file.Symbol
}

// ExportsOfModule lists everything module exports: its own exports in
// declaration order followed by the names `export *` statements contribute,
// in statement order. Star-contributed entries are the providing module's
// symbols, not aliases. `default` is never contributed by `export *`.
//
// A module written with `export = x` lists a single alias named "export="
// whose target is x. The members of x are not expanded into the list.
func (c *Checker) ExportsOfModule(module *Symbol) []*Symbol {
	return c.exportsTable(module).Symbols()
}

// ExportOfModule looks up one export by name, including star exports.
func (c *Checker) ExportOfModule(module *Symbol, name string) *Symbol {
	return c.exportsTable(module).Get(name)
}

func (c *Checker) exportsTable(module *Symbol) *SymbolTable {
	if module == nil || module.exports == nil {
		return NewSymbolTable()
	}
	if table, ok := c.resolvedExports[module]; ok {
		return table
	}
	if c.computing[module] {
		// Re-entered through alias resolution; answer with own exports only.
		return module.exports
	}
	c.computing[module] = true
	defer delete(c.computing, module)

	var conflicts []starConflict
	table := c.collectExports(module, make(map[*Symbol]bool), &conflicts)
	c.resolvedExports[module] = table

	// Comparing conflicting providers resolves aliases, which may come back
	// to this module; only do it once the table is complete.
	for _, conflict := range conflicts {
		if c.resolve(conflict.kept) != c.resolve(conflict.ignored) {
			c.report(conflict.fileName, conflict.pos, fmt.Sprintf(
				"Module %s has already exported a member named '%s'; the export from %s is ignored.",
				conflict.keptFrom.Name, conflict.name, conflict.ignoredFrom.Name))
		}
	}
	return table
}

// starConflict is a name two `export *` providers both contribute.
type starConflict struct {
	fileName    string
	pos         Position
	name        string
	kept        *Symbol
	keptFrom    *Symbol
	ignored     *Symbol
	ignoredFrom *Symbol
}

func (c *Checker) collectExports(module *Symbol, visited map[*Symbol]bool, conflicts *[]starConflict) *SymbolTable {
	visited[module] = true

	table := NewSymbolTable()
	for _, name := range module.exports.Names() {
		table.Set(name, module.exports.Get(name))
	}

	file := c.program.filesByName[module.file]
	if file == nil {
		return table
	}

	// providers remembers which module contributed each star-exported name.
	providers := make(map[string]*Symbol)
	for _, star := range file.starExports {
		target := c.resolveExternalModule(file, star.specifier, star.pos)
		if target == nil || visited[target] {
			continue
		}
		nested := c.collectExports(target, visited, conflicts)
		for _, name := range nested.Names() {
			if name == "default" || name == "export=" || module.exports.Has(name) {
				continue
			}
			sym := nested.Get(name)
			if existing := table.Get(name); existing != nil {
				if existing != sym {
					*conflicts = append(*conflicts, starConflict{
						fileName:    file.FileName,
						name:        name,
						pos:         star.pos,
						kept:        existing,
						keptFrom:    providers[name],
						ignored:     sym,
						ignoredFrom: target,
					})
				}
				continue
			}
			table.Set(name, sym)
			providers[name] = target
		}
	}

	return table
}

// AliasedSymbol follows an alias to the symbol it ultimately names. Symbols
// that are not aliases are returned unchanged. Aliases that cannot be
// resolved, including circular ones, yield UnknownSymbol.
func (c *Checker) AliasedSymbol(sym *Symbol) *Symbol {
	if sym == nil || !sym.IsAlias() {
		return sym
	}
	if target, ok := c.aliasTargets[sym]; ok {
		return target
	}

	seen := make(map[*Symbol]bool)
	cur := sym
	for cur.IsAlias() {
		if seen[cur] {
			c.report(sym.file, declPos(sym), fmt.Sprintf("Circular definition of import alias '%s'.", sym.Name))
			cur = c.unknown
			break
		}
		seen[cur] = true

		if memo, ok := c.aliasTargets[cur]; ok {
			cur = memo
			break
		}

		next := c.immediateTarget(cur)
		if next == nil {
			cur = c.unknown
			break
		}
		cur = next
	}

	for alias := range seen {
		c.aliasTargets[alias] = cur
	}
	return cur
}

// ImmediateTarget returns the symbol an alias names directly, which may be
// another alias. It returns nil for non-aliases and unresolvable aliases.
func (c *Checker) ImmediateTarget(sym *Symbol) *Symbol {
	if sym == nil || !sym.IsAlias() {
		return nil
	}
	return c.immediateTarget(sym)
}

func (c *Checker) immediateTarget(alias *Symbol) *Symbol {
	file := c.program.filesByName[alias.file]
	if file == nil {
		return nil
	}
	pos := declPos(alias)

	switch alias.target.kind {
	case aliasLocal:
		if strings.Contains(alias.target.name, ".") {
			// Namespace bodies are not bound, so their members cannot be named.
			c.report(file.FileName, pos, fmt.Sprintf("Cannot resolve namespace member '%s'.", alias.target.name))
			return nil
		}
		target := file.Locals.Get(alias.target.name)
		if target == nil {
			c.report(file.FileName, pos, fmt.Sprintf("Cannot find name '%s'.", alias.target.name))
		}
		return target
	case aliasModule:
		return c.resolveExternalModule(file, alias.target.specifier, pos)
	case aliasModuleExport:
		module := c.resolveExternalModule(file, alias.target.specifier, pos)
		if module == nil {
			return nil
		}
		target := c.exportsTable(module).Get(alias.target.name)
		if target == nil {
			c.report(file.FileName, pos, fmt.Sprintf("Module %s has no exported member '%s'.", module.Name, alias.target.name))
		}
		return target
	}
	return nil
}

// resolve is AliasedSymbol without the nil handling, for comparisons.
func (c *Checker) resolve(sym *Symbol) *Symbol {
	if sym.IsAlias() {
		return c.AliasedSymbol(sym)
	}
	return sym
}

// ResolveExternalModule returns the module symbol specifier names from file.
func (c *Checker) ResolveExternalModule(fileName, specifier string) *Symbol {
	file := c.program.SourceFile(fileName)
	if file == nil {
		return nil
	}
	return c.resolveExternalModule(file, specifier, Position{})
}

func (c *Checker) resolveExternalModule(file *SourceFile, specifier string, pos Position) *Symbol {
	resolved, ok := file.resolvedModules[specifier]
	if !ok {
		c.report(file.FileName, pos, fmt.Sprintf("Cannot find module '%s'.", specifier))
		return nil
	}
	target := c.program.filesByName[resolved]
	if target == nil {
		c.report(file.FileName, pos, fmt.Sprintf("Cannot find module '%s'.", specifier))
		return nil
	}
	if target.Symbol == nil {
		c.report(file.FileName, pos, fmt.Sprintf("File '%s' is not a module.", resolved))
		return nil
	}
	return target.Symbol
}

func (c *Checker) report(fileName string, pos Position, msg string) {
	key := fmt.Sprintf("%s:%d:%d:%s", fileName, pos.Line, pos.Column, msg)
	if c.reported[key] {
		return
	}
	c.reported[key] = true
	c.diagnostics = append(c.diagnostics, Diagnostic{
		FileName: fileName,
		Pos:      pos,
		Category: DiagnosticError,
		Message:  msg,
	})
}

func declPos(sym *Symbol) Position {
	if d := sym.ValueDeclaration(); d != nil {
		return d.Pos
	}
	return Position{}
}
