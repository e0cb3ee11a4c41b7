package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/libpanel/internal/borrowing"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

func newLibrariansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "librarians",
		Short: "List librarians for borrowing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			librarians, err := env.client.ListLibrarians(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), librarians, func(w io.Writer) {
				rows := make([][]string, len(librarians))
				for i, l := range librarians {
					rows[i] = []string{strconv.FormatInt(l.ID, 10), l.DisplayName()}
				}
				printTable(w, []string{"ID", "NAME"}, rows)
			})
		},
	}
}

func newBorrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Check books out to cards and take them back",
	}
	cmd.AddCommand(newBorrowListCmd())
	cmd.AddCommand(newBorrowCreateCmd())
	cmd.AddCommand(newBorrowReturnCmd())
	return cmd
}

// cardFlags are shared by the borrow subcommands.
type cardFlags struct {
	card    int64
	teacher bool
}

func (f *cardFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.card, "card", 0, "student or teacher card id")
	cmd.Flags().BoolVar(&f.teacher, "teacher", false, "the card is a teacher card")
	_ = cmd.MarkFlagRequired("card")
}

func newBorrowListCmd() *cobra.Command {
	var cf cardFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the borrowings of a card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			views, err := env.borrowing().List(cmd.Context(), cf.card, cf.teacher)
			if err != nil {
				return err
			}
			return printBorrowings(cmd.OutOrStdout(), views, cf.teacher)
		},
	}
	cf.register(cmd)
	return cmd
}

// borrowingView adds the return availability to the backend view.
type borrowingView struct {
	types.BorrowingView
	Returnable bool `json:"returnable"`
}

func printBorrowings(w io.Writer, views []types.BorrowingView, teacher bool) error {
	out := make([]borrowingView, len(views))
	for i, v := range views {
		out[i] = borrowingView{BorrowingView: v, Returnable: borrowing.ReturnOffered(v)}
	}
	return emit(w, out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintln(w, "No borrowings found.")
			return
		}
		header := []string{"ID", "BOOK", "LIBRARIAN", "START", "FINISH", "BORROWED", "RETURNED"}
		if !teacher {
			header = append(header, "DUE")
		}
		rows := make([][]string, len(out))
		for i, v := range out {
			row := []string{
				strconv.FormatInt(v.ID, 10),
				cell(v.BookTitle),
				v.LibrarianName,
				v.StatusStart,
				optional(v.StatusFinish),
				v.BorrowDate,
				optional(v.ReturnDate),
			}
			if !teacher {
				row = append(row, optional(v.RequiredReturnDate))
			}
			rows[i] = row
		}
		fmt.Fprintf(w, "Card %d: %s\n", out[0].Card, out[0].Owner)
		printTable(w, header, rows)
	})
}

func newBorrowCreateCmd() *cobra.Command {
	var (
		cf  cardFlags
		req borrowing.Request
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Check a book out to a card",
		Long: `Create opens a borrowing dated today. Student loans carry a required
return date (--due, default today); teacher loans take none. The librarian
defaults to "librarian" from config.yaml.

Example:
  libpanel borrow create --card 11 --book 5 --librarian 1 --due 2026-11-01
  libpanel borrow create --teacher --card 3 --book 5 --condition Good`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			req.Card = cf.card
			req.IsTeacher = cf.teacher
			if req.Librarian == 0 {
				req.Librarian = env.cfg.Librarian
			}
			svc := env.borrowing()
			b, err := svc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			views, err := svc.List(cmd.Context(), cf.card, cf.teacher)
			if err != nil {
				return err
			}
			if jsonOutput(cmd.OutOrStdout()) {
				return emit(cmd.OutOrStdout(), map[string]any{"created": b.ID, "borrowings": views}, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Borrowing %d opened\n", b.ID)
			return printBorrowings(cmd.OutOrStdout(), views, cf.teacher)
		},
	}
	cf.register(cmd)
	cmd.Flags().Int64Var(&req.Book, "book", 0, "book id")
	cmd.Flags().Int64Var(&req.Librarian, "librarian", 0, "librarian id")
	cmd.Flags().StringVar(&req.Condition, "condition", types.ConditionExcellent, "starting condition (Excellent, Good, Satisfactory, Unsatisfactory)")
	cmd.Flags().StringVar(&req.Due, "due", "", "required return date YYYY-MM-DD (student loans)")
	_ = cmd.MarkFlagRequired("book")
	return cmd
}

func newBorrowReturnCmd() *cobra.Command {
	var (
		cf     cardFlags
		finish string
	)
	cmd := &cobra.Command{
		Use:   "return <id>",
		Short: "Take a borrowed book back",
		Long: `Return closes an open borrowing: the return date becomes today and the
finishing condition is recorded. A returned borrowing cannot be returned
again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a borrowing id", types.ErrRowNotFound, args[0])
			}
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			svc := env.borrowing()
			view, err := svc.Find(cmd.Context(), cf.card, cf.teacher, id)
			if err != nil {
				return err
			}
			if _, err := svc.Return(cmd.Context(), view, cf.teacher, finish); err != nil {
				return err
			}
			views, err := svc.List(cmd.Context(), cf.card, cf.teacher)
			if err != nil {
				return err
			}
			if jsonOutput(cmd.OutOrStdout()) {
				return emit(cmd.OutOrStdout(), map[string]any{"returned": id, "borrowings": views}, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Borrowing %d returned\n", id)
			return printBorrowings(cmd.OutOrStdout(), views, cf.teacher)
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&finish, "condition", "", "finishing condition (Excellent, Good, Satisfactory, Unsatisfactory)")
	_ = cmd.MarkFlagRequired("condition")
	return cmd
}
