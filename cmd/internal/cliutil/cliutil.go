// Package cliutil provides shared output helpers for the metaschema
// command-line tool.
package cliutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/golangoscal/metaschema/model"
)

// GetOutput opens the output file or returns stdout. Parent directories
// are created as needed.
func GetOutput(outputFile string, stdout io.Writer) (io.Writer, func() error, error) {
	if outputFile == "" || outputFile == "-" {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// PrintError writes a formatted error message to w.
func PrintError(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "error: "+format+"\n", args...)
}

// Styles holds the lipgloss styles used by the outline view.
type Styles struct {
	Assembly  lipgloss.Style
	Field     lipgloss.Style
	Flag      lipgloss.Style
	Choice    lipgloss.Style
	Recursive lipgloss.Style
	Details   lipgloss.Style
	Muted     lipgloss.Style
	Header    lipgloss.Style
}

// DefaultStyles returns the outline colours: blue assemblies, purple
// fields, orange flags.
func DefaultStyles() Styles {
	return Styles{
		Assembly:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3182CE")).Bold(true),
		Field:     lipgloss.NewStyle().Foreground(lipgloss.Color("#805AD5")),
		Flag:      lipgloss.NewStyle().Foreground(lipgloss.Color("#DD6B20")),
		Choice:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true),
		Recursive: lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Details:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4A5568")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Header:    lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{plain, plain, plain, plain, plain, plain, plain, plain}
}

// For returns the name style for a node kind.
func (s Styles) For(k model.Kind) lipgloss.Style {
	switch k {
	case model.KindAssembly:
		return s.Assembly
	case model.KindField:
		return s.Field
	case model.KindFlag:
		return s.Flag
	case model.KindRecursive:
		return s.Recursive
	default:
		return s.Choice
	}
}

// OutlineOptions limits an outline.
type OutlineOptions struct {
	MaxDepth  int  // 0 means unlimited
	Flags     bool // include flags
	Datatypes bool // show datatypes of fields and flags
}

// WriteOutline prints tree as an indented outline, one node per line, with
// cardinality labels.
func WriteOutline(w io.Writer, tree *model.Tree, st Styles, opts OutlineOptions) error {
	header := fmt.Sprintf("%s %s (%s)", tree.SchemaName(), tree.Version(), tree.Model())
	if _, err := fmt.Fprintln(w, st.Header.Render(header)); err != nil {
		return err
	}
	for n := range tree.Nodes() {
		depth := n.Depth()
		if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
			continue
		}
		if n.Kind == model.KindFlag && !opts.Flags {
			continue
		}
		if _, err := fmt.Fprintln(w, outlineLine(n, st, opts)); err != nil {
			return err
		}
	}
	return nil
}

func outlineLine(n *model.Node, st Styles, opts OutlineOptions) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", max(n.Depth(), 0)))

	name := n.UseName
	switch n.Kind {
	case model.KindFlag:
		name = "@" + name
	case model.KindChoice:
		name = "(" + n.Name + ")"
	}
	b.WriteString(st.For(n.Kind).Render(name))
	b.WriteByte(' ')
	b.WriteString(st.Details.Render("(" + n.Kind.String() + ")"))

	if opts.Datatypes && (n.Kind == model.KindField || n.Kind == model.KindFlag) {
		b.WriteByte(' ')
		b.WriteString(st.Details.Render(n.Datatype))
	}
	b.WriteByte(' ')
	b.WriteString(st.Muted.Render(n.Occurrence()))
	if n.Deprecated {
		b.WriteString(st.Muted.Render(" deprecated"))
	}
	return b.String()
}
