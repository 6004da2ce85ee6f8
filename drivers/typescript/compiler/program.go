package compiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Program is a set of source files closed over their resolvable imports.
type Program struct {
	options   CompilerOptions
	host      Host
	rootNames []string

	files       []*SourceFile
	filesByName map[string]*SourceFile
	diagnostics []Diagnostic

	nextSymbolID int
	checker      *Checker
}

type parsedFile struct {
	text    string
	summary *fileSummary
	readErr error
}

// CreateProgram loads rootNames and every file they import or re-export that
// host can resolve. Files that cannot be read are recorded as diagnostics and
// left out of the program; the returned error is non-nil only when ctx ends
// before loading completes.
//
// Files are parsed concurrently one discovery wave at a time and bound in
// discovery order, so symbol identities are deterministic.
func CreateProgram(ctx context.Context, rootNames []string, options CompilerOptions, host Host) (*Program, error) {
	p := &Program{
		options:     options,
		host:        host,
		rootNames:   append([]string(nil), rootNames...),
		filesByName: make(map[string]*SourceFile),
	}

	queued := make(map[string]bool)
	var pending []string
	for _, name := range rootNames {
		canonical := host.CanonicalFileName(name)
		if !options.AllowNonTSExtensions && !host.HasAcceptedExtension(canonical) {
			p.addDiagnostic(canonical, "File '%s' has an unsupported extension.", name)
			continue
		}
		if queued[canonical] {
			continue
		}
		queued[canonical] = true
		pending = append(pending, canonical)
	}

	for len(pending) > 0 {
		parsed, err := p.parseWave(ctx, pending)
		if err != nil {
			return nil, err
		}

		var next []string
		for i, name := range pending {
			res := parsed[i]
			if res.readErr != nil {
				if errors.Is(res.readErr, ErrFileNotFound) {
					p.addDiagnostic(name, "File '%s' not found.", name)
				} else {
					p.addDiagnostic(name, "Cannot read file '%s': %v.", name, res.readErr)
				}
				continue
			}

			file := p.bindFile(name, res.text, res.summary)
			p.files = append(p.files, file)
			p.filesByName[name] = file

			for _, spec := range file.ModuleSpecifiers {
				resolved, ok := host.ResolveModuleName(spec, name)
				if !ok {
					p.diagnostics = append(p.diagnostics, Diagnostic{
						FileName: name,
						Category: DiagnosticWarning,
						Message:  fmt.Sprintf("Cannot find module '%s'.", spec),
					})
					continue
				}
				file.resolvedModules[spec] = resolved
				if !queued[resolved] {
					queued[resolved] = true
					next = append(next, resolved)
				}
			}
		}
		pending = next
	}

	return p, nil
}

func (p *Program) parseWave(ctx context.Context, names []string) ([]parsedFile, error) {
	results := make([]parsedFile, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := p.host.ReadFile(name)
			if err != nil {
				results[i] = parsedFile{readErr: err}
				return nil
			}
			summary, err := parseSource(gctx, name, text)
			if err != nil {
				return err
			}
			results[i] = parsedFile{text: text, summary: summary}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	return results, nil
}

func (p *Program) newSymbol(name string, flags SymbolFlags, fileName string) *Symbol {
	p.nextSymbolID++
	return &Symbol{id: p.nextSymbolID, Name: name, Flags: flags, file: fileName}
}

func (p *Program) addDiagnostic(fileName, format string, args ...any) {
	p.diagnostics = append(p.diagnostics, Diagnostic{
		FileName: fileName,
		Category: DiagnosticError,
		Message:  fmt.Sprintf(format, args...),
	})
}

// SourceFile returns the file for fileName, or nil if the program does not
// contain it.
func (p *Program) SourceFile(fileName string) *SourceFile {
	return p.filesByName[p.host.CanonicalFileName(fileName)]
}

// SourceFiles returns every loaded file in discovery order.
func (p *Program) SourceFiles() []*SourceFile {
	return append([]*SourceFile(nil), p.files...)
}

// RootNames returns the file names the program was created from.
func (p *Program) RootNames() []string {
	return append([]string(nil), p.rootNames...)
}

// Options returns the options the program was created with.
func (p *Program) Options() CompilerOptions { return p.options }

// Host returns the host the program reads through.
func (p *Program) Host() Host { return p.host }

// Diagnostics returns load, syntax and binding diagnostics.
func (p *Program) Diagnostics() []Diagnostic {
	out := append([]Diagnostic(nil), p.diagnostics...)
	for _, f := range p.files {
		out = append(out, f.diagnostics...)
	}
	return out
}

// TypeChecker returns the program's checker, creating it on first use.
func (p *Program) TypeChecker() *Checker {
	if p.checker == nil {
		p.checker = newChecker(p)
	}
	return p.checker
}
