package pkgjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileName is the manifest every npm package carries at its root.
const FileName = "package.json"

// conditionOrder is the preference among conditional export targets.
var conditionOrder = []string{"types", "typings", "import", "module", "default", "require", "node"}

// Manifest holds the package.json fields that locate a package's entry files.
type Manifest struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Types   string          `json:"types"`
	Typings string          `json:"typings"`
	Module  string          `json:"module"`
	Main    string          `json:"main"`
	Exports json.RawMessage `json:"exports"`
}

// Read parses the package.json in dir.
func Read(fsys afero.Fs, dir string) (*Manifest, error) {
	p := filepath.Join(dir, FileName)

	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no %s found at %s", FileName, p)
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	return &m, nil
}

// FindPackageRoot returns dir if it holds a package.json, otherwise the first
// directory at most two levels below it that does. npm tarballs unpack into a
// "package/" directory.
func FindPackageRoot(fsys afero.Fs, dir string) (string, error) {
	if hasManifest(fsys, dir) {
		return dir, nil
	}

	var found string
	err := afero.Walk(fsys, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		// Limit depth to 2 levels below the starting directory.
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return nil
		}
		if strings.Count(filepath.ToSlash(rel), "/") > 1 {
			return filepath.SkipDir
		}
		if info.Name() == "node_modules" {
			return filepath.SkipDir
		}

		if hasManifest(fsys, p) {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return "", fmt.Errorf("searching for %s: %w", FileName, err)
	}

	if found == "" {
		return "", fmt.Errorf("no %s found under %s", FileName, dir)
	}
	return found, nil
}

func hasManifest(fsys afero.Fs, dir string) bool {
	info, err := fsys.Stat(filepath.Join(dir, FileName))
	return err == nil && !info.IsDir()
}

// EntryPoints lists the entry files the manifest declares, relative to the
// package root, most specific first and without duplicates. Type
// declarations come before sources.
func (m *Manifest) EntryPoints() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = cleanEntry(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	add(m.Types)
	add(m.Typings)
	for _, p := range exportTargets(m.Exports) {
		add(p)
	}
	add(m.Module)
	add(m.Main)
	return out
}

// exportTargets extracts the targets of the root entry of an "exports" field,
// which is either a string, an object keyed by subpath, or an object of
// conditions.
func exportTargets(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var target string
	if err := json.Unmarshal(raw, &target); err == nil {
		return []string{target}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	if root, ok := obj["."]; ok {
		return exportTargets(root)
	}

	var out []string
	for _, cond := range conditionOrder {
		if v, ok := obj[cond]; ok {
			out = append(out, exportTargets(v)...)
		}
	}
	return out
}

func cleanEntry(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.Contains(p, "*") {
		return ""
	}
	p = path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "./"))
	if p == "." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}
