package tsparser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/emenda-labs/tsexports/drivers/typescript/compiler"
)

// DefaultExtensions are probed when resolving imports. Code bases part way
// through a migration mix `.ts` and `.js` modules, so both are accepted.
var DefaultExtensions = []string{".ts", ".js"}

// DefaultOptions accept files with any extension and read them as UTF-8.
var DefaultOptions = compiler.CompilerOptions{
	AllowNonTSExtensions: true,
	Charset:              "utf8",
}

// TsParser extracts the exports of a set of module files.
type TsParser struct {
	Extensions []string
	Options    compiler.CompilerOptions

	log *slog.Logger
	fs  afero.Fs
}

// Option configures a TsParser.
type Option func(*TsParser)

// WithExtensions overrides DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(p *TsParser) {
		if len(exts) > 0 {
			p.Extensions = append([]string(nil), exts...)
		}
	}
}

// WithCharset overrides the source charset.
func WithCharset(charset string) Option {
	return func(p *TsParser) {
		if charset != "" {
			p.Options.Charset = charset
		}
	}
}

// WithFilesystem reads sources from fsys instead of the OS filesystem.
func WithFilesystem(fsys afero.Fs) Option {
	return func(p *TsParser) {
		p.fs = fsys
	}
}

// New creates a parser that reports through log.
func New(log *slog.Logger, opts ...Option) *TsParser {
	if log == nil {
		log = slog.Default()
	}
	p := &TsParser{
		Extensions: append([]string(nil), DefaultExtensions...),
		Options:    DefaultOptions,
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse compiles fileNames as a program rooted at baseDir and returns one
// module symbol per file, each with its exports. Exports that are aliases
// carry the symbol they resolve to.
//
// A file the program does not contain aborts the whole call with an
// *InvalidSourceFileError. A file without module code is logged and left
// out of the result.
func (p *TsParser) Parse(ctx context.Context, fileNames []string, baseDir string) (*Result, error) {
	var hostOpts []HostOption
	if p.fs != nil {
		hostOpts = append(hostOpts, WithFs(p.fs))
	}
	host, err := NewCompilerHost(p.Options, baseDir, p.Extensions, p.log, hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating compiler host: %w", err)
	}

	program, err := compiler.CreateProgram(ctx, fileNames, p.Options, host)
	if err != nil {
		return nil, fmt.Errorf("creating program: %w", err)
	}
	typeChecker := program.TypeChecker()

	var modules []*ModuleSymbol
	for _, fileName := range fileNames {
		sourceFile := program.SourceFile(fileName)
		switch {
		case sourceFile == nil:
			return nil, &InvalidSourceFileError{FileName: fileName}
		case sourceFile.Symbol == nil:
			// Some files hold only comments and no module code.
			p.log.Warn("No module code found in "+fileName, "file", fileName)
		default:
			modules = append(modules, &ModuleSymbol{
				Symbol:   sourceFile.Symbol,
				FileName: sourceFile.FileName,
			})
		}
	}

	for _, module := range modules {
		exports := typeChecker.ExportsOfModule(module.Symbol)
		module.ExportArray = make([]AugmentedSymbol, 0, len(exports))
		for _, export := range exports {
			augmented := AugmentedSymbol{Symbol: export}
			// Star re-exports are flattened by the checker, but named
			// re-exports stay aliases; keep the alias and record its target.
			if export.Flags.Has(compiler.SymbolAlias) {
				augmented.ResolvedSymbol = typeChecker.AliasedSymbol(export)
			}
			module.ExportArray = append(module.ExportArray, augmented)
		}
	}

	return &Result{
		ModuleSymbols: ModuleSymbols{Modules: modules, TypeChecker: typeChecker},
		TypeChecker:   typeChecker,
		Program:       program,
		Host:          host,
	}, nil
}
