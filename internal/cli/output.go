package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// jsonOutput reports whether w should receive JSON: always with --json,
// and whenever w is not an interactive terminal.
func jsonOutput(w io.Writer) bool {
	if flags.jsonMode {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// emit writes v as indented JSON, or calls text for terminals.
func emit(w io.Writer, v any, text func(w io.Writer)) error {
	if !jsonOutput(w) {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return sysError("encode output: %w", err)
	}
	return nil
}

// printTable writes a header and rows aligned in columns, trimming trailing
// whitespace from each line.
func printTable(w io.Writer, header []string, rows [][]string) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(header, "\t"))
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// cell formats a field value for text output.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if r := []rune(x); len(r) > 40 {
			return string(r[:37]) + "..."
		}
		return x
	case map[string]any, []any:
		data, _ := json.Marshal(x)
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
