package compiler

import (
	"errors"
	"fmt"
)

// ErrFileNotFound is returned by Host.ReadFile when the file does not exist.
// Program construction records it as a diagnostic instead of failing.
var ErrFileNotFound = errors.New("file not found")

// CompilerOptions are the knobs program construction honours.
type CompilerOptions struct {
	// AllowNonTSExtensions accepts root files whose extension the host does
	// not list.
	AllowNonTSExtensions bool
	// Charset names the encoding of source files, e.g. "utf8".
	Charset string
}

// Host supplies file access and module resolution to a Program.
type Host interface {
	// ReadFile returns the decoded text of fileName. Implementations return
	// an error wrapping ErrFileNotFound for missing files.
	ReadFile(fileName string) (string, error)
	// FileExists reports whether fileName names a regular file.
	FileExists(fileName string) bool
	// CanonicalFileName maps a user supplied path to the key files are
	// stored under in the program.
	CanonicalFileName(fileName string) string
	// CurrentDirectory is the directory relative root names resolve against.
	CurrentDirectory() string
	// ResolveModuleName maps an import specifier written in containingFile
	// to a canonical file name.
	ResolveModuleName(moduleName, containingFile string) (string, bool)
	// HasAcceptedExtension reports whether fileName ends in one of the
	// host's module extensions.
	HasAcceptedExtension(fileName string) bool
}

// DiagnosticCategory ranks diagnostics.
type DiagnosticCategory string

const (
	DiagnosticError   DiagnosticCategory = "error"
	DiagnosticWarning DiagnosticCategory = "warning"
)

// Diagnostic is a problem found while building or checking a program.
type Diagnostic struct {
	FileName string             `json:"file,omitempty"`
	Pos      Position           `json:"pos"`
	Category DiagnosticCategory `json:"category"`
	Message  string             `json:"message"`
}

func (d Diagnostic) String() string {
	if d.FileName == "" {
		return fmt.Sprintf("%s: %s", d.Category, d.Message)
	}
	if d.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s: %s", d.FileName, d.Category, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.FileName, d.Pos.Line, d.Pos.Column, d.Category, d.Message)
}
