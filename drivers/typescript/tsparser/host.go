package tsparser

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/emenda-labs/tsexports/drivers/typescript/compiler"
)

const resolutionCacheSize = 4096

var _ compiler.Host = (*CompilerHost)(nil)

// CompilerHost reads files from an afero filesystem and resolves module
// specifiers by probing a configurable list of extensions. Relative
// specifiers resolve against the importing file, bare ones against the base
// directory.
type CompilerHost struct {
	fs         afero.Fs
	options    compiler.CompilerOptions
	baseDir    string
	extensions []string
	log        *slog.Logger

	resolutions *lru.Cache[string, string]
}

// HostOption customizes a CompilerHost.
type HostOption func(*CompilerHost)

// WithFs replaces the OS filesystem.
func WithFs(fsys afero.Fs) HostOption {
	return func(h *CompilerHost) {
		h.fs = fsys
	}
}

// NewCompilerHost creates a host rooted at baseDir.
func NewCompilerHost(options compiler.CompilerOptions, baseDir string, extensions []string, log *slog.Logger, opts ...HostOption) (*CompilerHost, error) {
	if log == nil {
		log = slog.Default()
	}

	h := &CompilerHost{
		fs:         afero.NewOsFs(),
		options:    options,
		extensions: append([]string(nil), extensions...),
		log:        log,
	}
	for _, opt := range opts {
		opt(h)
	}

	if _, isOS := h.fs.(*afero.OsFs); isOS {
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, fmt.Errorf("resolving base directory %s: %w", baseDir, err)
		}
		baseDir = abs
	}
	h.baseDir = filepath.ToSlash(filepath.Clean(baseDir))

	cache, err := lru.New[string, string](resolutionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating resolution cache: %w", err)
	}
	h.resolutions = cache

	return h, nil
}

// BaseDir is the directory bare specifiers and relative root names resolve
// against.
func (h *CompilerHost) BaseDir() string { return h.baseDir }

// Extensions lists the probed module extensions in priority order.
func (h *CompilerHost) Extensions() []string { return append([]string(nil), h.extensions...) }

// CurrentDirectory implements compiler.Host.
func (h *CompilerHost) CurrentDirectory() string { return h.baseDir }

// CanonicalFileName implements compiler.Host.
func (h *CompilerHost) CanonicalFileName(fileName string) string {
	name := filepath.ToSlash(fileName)
	if !strings.HasPrefix(name, "/") && !filepath.IsAbs(fileName) {
		name = h.baseDir + "/" + name
	}
	return filepath.ToSlash(filepath.Clean(name))
}

// FileExists implements compiler.Host.
func (h *CompilerHost) FileExists(fileName string) bool {
	info, err := h.fs.Stat(filepath.FromSlash(fileName))
	return err == nil && info.Mode().IsRegular()
}

// HasAcceptedExtension implements compiler.Host.
func (h *CompilerHost) HasAcceptedExtension(fileName string) bool {
	for _, ext := range h.extensions {
		if strings.HasSuffix(fileName, ext) {
			return true
		}
	}
	return false
}

// ReadFile implements compiler.Host. Contents are decoded from the
// configured charset and a leading byte order mark is dropped.
func (h *CompilerHost) ReadFile(fileName string) (string, error) {
	data, err := afero.ReadFile(h.fs, filepath.FromSlash(fileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("reading %s: %w", fileName, compiler.ErrFileNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", fileName, err)
	}

	text, err := h.decode(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", fileName, err)
	}
	return strings.TrimPrefix(text, "\ufeff"), nil
}

func (h *CompilerHost) decode(data []byte) (string, error) {
	charset := h.options.Charset
	if charset == "" {
		return string(data), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// ResolveModuleName implements compiler.Host.
func (h *CompilerHost) ResolveModuleName(moduleName, containingFile string) (string, bool) {
	var base string
	switch {
	case strings.HasPrefix(moduleName, "./"), strings.HasPrefix(moduleName, "../"), moduleName == ".", moduleName == "..":
		base = filepath.ToSlash(filepath.Join(filepath.Dir(containingFile), moduleName))
	case strings.HasPrefix(moduleName, "/"):
		base = filepath.ToSlash(filepath.Clean(moduleName))
	default:
		base = filepath.ToSlash(filepath.Join(h.baseDir, moduleName))
	}

	if cached, ok := h.resolutions.Get(base); ok {
		return cached, cached != ""
	}

	resolved := ""
	for _, candidate := range h.candidates(base) {
		if h.FileExists(candidate) {
			resolved = candidate
			break
		}
	}
	h.resolutions.Add(base, resolved)

	if resolved == "" {
		h.log.Debug("module not resolved", "module", moduleName, "from", containingFile)
		return "", false
	}
	h.log.Debug("module resolved", "module", moduleName, "from", containingFile, "file", resolved)
	return resolved, true
}

// candidates lists the paths probed for a specifier, in order.
func (h *CompilerHost) candidates(base string) []string {
	var out []string
	if h.options.AllowNonTSExtensions || h.HasAcceptedExtension(base) {
		if filepath.Ext(base) != "" {
			out = append(out, base)
		}
	}
	for _, ext := range h.extensions {
		out = append(out, base+ext)
	}
	// ESM sources import siblings by their emitted `.js` name.
	if stem, ok := strings.CutSuffix(base, ".js"); ok {
		for _, ext := range h.extensions {
			if ext != ".js" {
				out = append(out, stem+ext)
			}
		}
	}
	for _, ext := range h.extensions {
		out = append(out, base+"/index"+ext)
	}
	return out
}
