// Package ui renders command output for the terminal.
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/papapumpkin/bootforge/internal/convert"
)

// Color schemes.
var (
	colorSuccess = color.New(color.FgGreen, color.Bold)
	colorError   = color.New(color.FgRed, color.Bold)
	colorWarning = color.New(color.FgYellow)
	colorHeader  = color.New(color.FgCyan, color.Bold)
	colorKey     = color.New(color.Bold)
	colorDim     = color.New(color.Faint)
)

// Printer writes results to Out and diagnostics to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer on stdout and stderr.
func New() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// DisableColors turns off colored output for every Printer.
func DisableColors() {
	color.NoColor = true
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.Err, "%s %s\n", colorError.Sprint("error:"), msg)
}

// Info prints a dim status line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.Err, colorDim.Sprint(msg))
}

// Fields prints a header and one "key: value" line per entry, sorted by
// key. Inherited values are dimmed.
func (p *Printer) Fields(title string, m map[string]any) {
	fmt.Fprintln(p.Out, colorHeader.Sprint(title))
	keys := make([]string, 0, len(m))
	width := 0
	for k := range m {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		label := colorKey.Sprintf("  %-*s", width, k)
		v := m[k]
		if nested, ok := nestedMaps(v); ok {
			fmt.Fprintln(p.Out, label)
			names := make([]string, 0, len(nested))
			for n := range nested {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(p.Out, "    %s %s\n", colorKey.Sprint(n+":"), convert.FormatDict(nested[n]))
			}
			continue
		}
		fmt.Fprintf(p.Out, "%s  %s\n", label, Value(v))
	}
}

// Value renders a single attribute value.
func Value(v any) string {
	switch t := v.(type) {
	case nil:
		return colorDim.Sprint("~")
	case string:
		if convert.IsInherited(t) {
			return colorDim.Sprint(t)
		}
		return t
	case []string:
		return strings.Join(t, ", ")
	case map[string]any:
		return convert.FormatDict(t)
	default:
		return fmt.Sprint(v)
	}
}

func nestedMaps(v any) (map[string]map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	out := make(map[string]map[string]any, len(m))
	for k, e := range m {
		inner, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		out[k] = inner
	}
	return out, true
}

// TreeLine is one row of a rendered tree.
type TreeLine struct {
	Depth int
	Label string
}

// Tree prints rows indented by depth.
func (p *Printer) Tree(lines []TreeLine) {
	for _, l := range lines {
		prefix := ""
		if l.Depth > 0 {
			prefix = strings.Repeat("  ", l.Depth-1) + colorDim.Sprint("└─ ")
		}
		fmt.Fprintf(p.Out, "%s%s\n", prefix, l.Label)
	}
}

// List prints one name per line, or a dim placeholder when empty.
func (p *Printer) List(names []string) {
	if len(names) == 0 {
		fmt.Fprintln(p.Out, colorDim.Sprint("(none)"))
		return
	}
	for _, n := range names {
		fmt.Fprintln(p.Out, n)
	}
}

// ValidateResult reports the outcome of checking an inventory. Joined
// errors are listed one per line.
func (p *Printer) ValidateResult(path string, entries int, err error) {
	if err == nil {
		fmt.Fprintf(p.Out, "%s %s: %d entries, no errors\n", colorSuccess.Sprint("✓"), path, entries)
		return
	}
	errs := []error{err}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	fmt.Fprintf(p.Out, "%s %s: %d error(s):\n", colorError.Sprint("✗"), path, len(errs))
	for _, e := range errs {
		fmt.Fprintf(p.Out, "  %s %s\n", colorError.Sprint("•"), e)
	}
}

// SyncResult summarizes an inventory sync.
func (p *Printer) SyncResult(added, changed, removed []string) {
	fmt.Fprintf(p.Err, "%s added: %d, changed: %d, removed: %d\n",
		colorSuccess.Sprint("✓ synced"), len(added), len(changed), len(removed))
	for _, n := range added {
		fmt.Fprintf(p.Err, "  %s %s\n", colorSuccess.Sprint("+"), n)
	}
	for _, n := range changed {
		fmt.Fprintf(p.Err, "  %s %s\n", colorWarning.Sprint("~"), n)
	}
	for _, n := range removed {
		fmt.Fprintf(p.Err, "  %s %s\n", colorError.Sprint("-"), n)
	}
}
