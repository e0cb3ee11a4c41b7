package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/libpanel/internal/sqlite"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the session rows to a JSONL file",
		Long: `Export writes the current values of every session row, drafts
included, to a file with one JSON object per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				if err := s.requireTable(); err != nil {
					return err
				}
				recs, err := s.ctl.Export()
				if err != nil {
					return err
				}
				if err := sqlite.WriteJSONL(args[0], recs); err != nil {
					return sysError("export: %w", err)
				}
				return emit(cmd.OutOrStdout(), map[string]any{"file": args[0], "rows": len(recs)}, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d row(s) of %s to %s\n", len(recs), s.ctl.Table(), args[0])
				})
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Append rows from a JSONL file as new drafts",
		Long: `Import reads one JSON object per line and appends each as a new,
unsaved draft of the active table. Server-assigned ids are dropped; run
"libpanel save --all" to create the rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				schema, err := s.ctl.Schema()
				if err != nil {
					return s.requireTable()
				}
				recs, err := sqlite.ReadJSONL(args[0], schema)
				if err != nil {
					return err
				}
				n, err := s.ctl.Import(recs)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), map[string]any{"file": args[0], "rows": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d draft(s) into %s\n", n, schema.Name)
				})
			})
		},
	}
}
