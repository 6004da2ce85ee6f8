package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
)

// WriteSymbols renders extracted exports in format.
func WriteSymbols(w io.Writer, format string, syms symbols.Symbols) error {
	if syms.Modules == nil {
		syms.Modules = []symbols.Module{}
	}
	switch format {
	case "json", "yaml":
		return encode(w, format, syms)
	case "text":
		return writeSymbolsText(w, syms)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// WriteChangeSpec renders a change report in format.
func WriteChangeSpec(w io.Writer, format string, spec changespec.ChangeSpec) error {
	if spec.Changes == nil {
		spec.Changes = []changespec.Change{}
	}
	switch format {
	case "json", "yaml":
		return encode(w, format, spec)
	case "text":
		return writeChangesText(w, spec)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func encode(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

type textStyles struct {
	header lipgloss.Style
	kind   lipgloss.Style
	muted  lipgloss.Style
	alert  lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		header: r.NewStyle().Bold(true),
		kind:   r.NewStyle().Foreground(lipgloss.Color("39")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("242")),
		alert:  r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func writeSymbolsText(w io.Writer, syms symbols.Symbols) error {
	st := newTextStyles(w)
	var b strings.Builder

	if syms.Package != "" {
		b.WriteString(st.header.Render(packageLabel(syms.Package, syms.Version)))
		b.WriteString("\n")
	}

	kindWidth, nameWidth := 0, 0
	for _, sym := range syms.All() {
		kindWidth = max(kindWidth, len(sym.Kind))
		nameWidth = max(nameWidth, len(sym.Name))
	}

	for _, m := range syms.Modules {
		b.WriteString(st.header.Render(m.File))
		b.WriteString("\n")
		if len(m.Exports) == 0 {
			b.WriteString("  " + st.muted.Render("(no exports)") + "\n")
			continue
		}
		for _, sym := range m.Exports {
			line := "  " + st.kind.Render(pad(string(sym.Kind), kindWidth)) + "  " + pad(sym.Name, nameWidth)
			switch {
			case sym.Alias != nil && sym.Alias.Kind == symbols.SymbolUnknown:
				line += "  " + st.alert.Render("-> ?")
			case sym.Alias != nil:
				line += "  " + st.muted.Render("-> "+aliasLabel(sym.Alias))
			case sym.Signature != "":
				line += "  " + st.muted.Render(sym.Signature)
			}
			b.WriteString(strings.TrimRight(line, " ") + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeChangesText(w io.Writer, spec changespec.ChangeSpec) error {
	st := newTextStyles(w)
	var b strings.Builder

	label := spec.Package
	if label == "" {
		label = "package"
	}
	fmt.Fprintf(&b, "%s\n", st.header.Render(fmt.Sprintf("%s %s -> %s: %d changes, %d breaking",
		label, spec.OldVersion, spec.NewVersion, len(spec.Changes), len(spec.Breaking()))))

	kindWidth := 0
	for _, c := range spec.Changes {
		kindWidth = max(kindWidth, len(c.Kind))
	}

	for _, c := range spec.Changes {
		style := st.kind
		if c.Kind.Breaking() {
			style = st.alert
		}
		line := "  " + style.Render(pad(string(c.Kind), kindWidth)) + "  " + c.Module + "#" + c.Symbol
		if detail := changeDetail(c); detail != "" {
			line += "  " + detail
		}
		if c.Confidence != changespec.ConfidenceHigh {
			line += "  " + st.muted.Render("("+string(c.Confidence)+" confidence)")
		}
		b.WriteString(line + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func changeDetail(c changespec.Change) string {
	switch c.Kind {
	case changespec.ChangeKindRenamed:
		return "-> " + c.NewName
	case changespec.ChangeKindMoved:
		return "-> " + c.NewModule
	case changespec.ChangeKindRetargeted:
		return c.OldTarget + " -> " + c.NewTarget
	case changespec.ChangeKindSignatureChanged, changespec.ChangeKindTypeChanged:
		return c.OldSignature + " -> " + c.NewSignature
	}
	return ""
}

func aliasLabel(a *symbols.AliasTarget) string {
	if a.Module == "" {
		return a.Name
	}
	if a.Kind == symbols.SymbolModule {
		return a.Module
	}
	return a.Module + "#" + a.Name
}

func packageLabel(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}

func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
