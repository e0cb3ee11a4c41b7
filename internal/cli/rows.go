package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/libpanel/internal/editor"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// rowView is the JSON form of one session row.
type rowView struct {
	Index    int          `json:"index"`
	Status   string       `json:"status"`
	Identity any          `json:"identity"`
	Values   types.Record `json:"values"`
	Error    string       `json:"error,omitempty"`
}

func viewRow(i int, r *editor.Row) rowView {
	v := rowView{Index: i, Status: r.Status(), Identity: r.Identity(), Values: r.Values()}
	if err := r.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q is not a row index", types.ErrRowNotFound, arg)
	}
	return i, nil
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables the backend offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			tables, err := env.client.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), tables, func(w io.Writer) {
				for _, t := range tables {
					fmt.Fprintln(w, t)
				}
			})
		},
	}
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <table>",
		Short: "Select a table and load its rows",
		Long: `Use makes a table active and fetches all of its rows. Drafts of the
previously selected table are discarded without saving.

Example:
  libpanel use student
  libpanel use faculty-curriculum`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				if err := s.ctl.Select(cmd.Context(), args[0]); err != nil {
					if errors.Is(err, types.ErrTableNotFound) {
						return fmt.Errorf("unknown table %q (valid: %v)", args[0], types.StandardTableNames)
					}
					return err
				}
				return printRows(cmd.OutOrStdout(), s)
			})
		},
	}
}

func newRowsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Show the rows of the active table",
		Long: `Rows prints every row of the session with its index and state
(clean, dirty, new or deleted). With --refresh the rows are fetched again
and unsaved drafts are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				if err := s.requireTable(); err != nil {
					return err
				}
				if refresh {
					if err := s.ctl.Refresh(cmd.Context()); err != nil {
						return err
					}
				}
				return printRows(cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch rows from the server, discarding drafts")
	return cmd
}

func printRows(w io.Writer, s *session) error {
	rows := s.ctl.Rows()
	views := make([]rowView, len(rows))
	for i, r := range rows {
		views[i] = viewRow(i, r)
	}
	return emit(w, views, func(w io.Writer) {
		columns := s.ctl.Columns()
		if len(columns) == 0 {
			fmt.Fprintf(w, "%s has no rows.\n", s.ctl.Table())
			return
		}
		header := append([]string{"#", "STATE"}, columns...)
		lines := make([][]string, len(views))
		for i, v := range views {
			line := []string{strconv.Itoa(v.Index), v.Status}
			for _, c := range columns {
				line = append(line, cell(v.Values[c]))
			}
			lines[i] = line
		}
		printTable(w, header, lines)
		for _, v := range views {
			if v.Error != "" {
				fmt.Fprintf(w, "row %d: %s\n", v.Index, v.Error)
			}
		}
		fmt.Fprintf(w, "Total: %d row(s) in %s\n", len(views), s.ctl.Table())
	})
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Append a blank row to the active table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				if err := s.requireTable(); err != nil {
					return err
				}
				i, err := s.ctl.Add()
				if err != nil {
					return err
				}
				return printRow(cmd.OutOrStdout(), s, i)
			})
		},
	}
}

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <row> <field> <value>",
		Short: "Set one field of a row",
		Long: `Edit changes one field of a session row. The value is converted to
the field's type; an empty value clears the field. Any edit marks the row
dirty until it is saved.

Example:
  libpanel edit 0 age 21
  libpanel edit 3 status ""`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				r, err := s.ctl.Row(i)
				if err != nil {
					return err
				}
				if err := r.Edit(args[1], args[2]); err != nil {
					return err
				}
				return printRow(cmd.OutOrStdout(), s, i)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <row>",
		Short: "Mark a saved row for deletion on the next save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				r, err := s.ctl.Row(i)
				if err != nil {
					return err
				}
				if err := r.MarkForDeletion(); err != nil {
					if errors.Is(err, types.ErrNotDeletable) {
						return fmt.Errorf("%w (use \"libpanel discard %d\")", err, i)
					}
					return err
				}
				return printRow(cmd.OutOrStdout(), s, i)
			})
		},
	}
}

func newDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <row>",
		Short: "Drop an unsaved row from the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				if err := s.ctl.Discard(i); err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), map[string]int{"discarded": i}, func(w io.Writer) {
					fmt.Fprintf(w, "Discarded row %d\n", i)
				})
			})
		},
	}
}

func printRow(w io.Writer, s *session, i int) error {
	r, err := s.ctl.Row(i)
	if err != nil {
		return err
	}
	v := viewRow(i, r)
	return emit(w, v, func(w io.Writer) {
		fmt.Fprintf(w, "Row %d (%s)\n", v.Index, v.Status)
		for _, k := range v.Values.Keys(r.Schema()) {
			fmt.Fprintf(w, "  %s: %s\n", k, cell(v.Values[k]))
		}
	})
}

// saveResult is the JSON form of one save attempt.
type saveResult struct {
	Row      int    `json:"row"`
	Outcome  string `json:"outcome,omitempty"`
	Identity any    `json:"identity,omitempty"`
	Error    string `json:"error,omitempty"`
	Class    string `json:"class,omitempty"`
}

func newSaveCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "save [row...]",
		Short: "Send dirty rows to the server",
		Long: `Save sends each named row to the server: rows marked for deletion are
deleted, new rows are created and other rows are updated under the key the
server knows them by. A failed row keeps its changes and can be saved again.

Example:
  libpanel save 0 2
  libpanel save --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("name the rows to save or pass --all")
			}
			indexes := make([]int, 0, len(args))
			for _, a := range args {
				i, err := parseIndex(a)
				if err != nil {
					return err
				}
				indexes = append(indexes, i)
			}
			return withSession(func(s *session) error {
				if err := s.requireTable(); err != nil {
					return err
				}
				return saveRows(cmd, s, indexes, all)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "save every dirty row")
	return cmd
}

func saveRows(cmd *cobra.Command, s *session, indexes []int, all bool) error {
	// Resolve rows before saving; a delete shifts later indexes.
	var targets []*editor.Row
	labels := make(map[*editor.Row]int)
	if all {
		for i, r := range s.ctl.Rows() {
			if r.Dirty() {
				targets = append(targets, r)
				labels[r] = i
			}
		}
	} else {
		sort.Ints(indexes)
		for _, i := range indexes {
			r, err := s.ctl.Row(i)
			if err != nil {
				return err
			}
			targets = append(targets, r)
			labels[r] = i
		}
	}

	var (
		results []saveResult
		first   error
	)
	for _, r := range targets {
		res := saveResult{Row: labels[r]}
		outcome, err := s.ctl.Save(cmd.Context(), s.ctl.Index(r))
		if err != nil {
			res.Error = err.Error()
			if c := types.ClassOf(err); c != 0 {
				res.Class = c.String()
			}
			if first == nil {
				first = err
			}
		} else {
			res.Outcome = outcome.String()
			if outcome != editor.Deleted {
				res.Identity = r.Identity()
			}
		}
		results = append(results, res)
	}

	if err := emit(cmd.OutOrStdout(), results, func(w io.Writer) {
		if len(results) == 0 {
			fmt.Fprintln(w, "Nothing to save.")
		}
		for _, res := range results {
			if res.Error != "" {
				fmt.Fprintf(w, "row %d: failed: %s\n", res.Row, res.Error)
				continue
			}
			fmt.Fprintf(w, "row %d: %s\n", res.Row, res.Outcome)
		}
	}); err != nil {
		return err
	}
	return first
}
