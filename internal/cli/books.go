package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/spf13/cobra"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage book records",
	}
	cmd.AddCommand(
		newBooksListCmd(a),
		newBooksCreateCmd(a),
		newBooksDeleteCmd(a),
	)
	return cmd
}

func newBooksListCmd(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally for one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				books []store.Book
				err   error
			)
			if userID > 0 {
				books, err = a.library.List(cmd.Context(), userID)
			} else {
				books, err = a.library.ListAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(books) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no books")
				return nil
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "only show books owned by this user")
	return cmd
}

func printBooks(out io.Writer, books []store.Book) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSER\tTITLE\tAUTHOR\tGENRE\tSTATUS\tRATING")
	for _, b := range books {
		rating := "-"
		if b.Rating != nil {
			rating = strconv.Itoa(*b.Rating)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.UserID, b.Title, b.Author, b.Genre, b.Status, rating)
	}
	_ = tw.Flush()
}

func newBooksCreateCmd(a *app) *cobra.Command {
	var (
		userID      int64
		in          library.BookInput
		rating      int
		description string
		start, end  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.users.GetByID(cmd.Context(), userID); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			if cmd.Flags().Changed("rating") {
				in.Rating = &rating
			}
			if description != "" {
				in.Description = &description
			}
			var err error
			if in.StartDate, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if in.EndDate, err = parseDateFlag("end", end); err != nil {
				return err
			}

			book, err := a.library.Create(cmd.Context(), userID, in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created book %d: %s\n", book.ID, book.Title)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "owner of the book")
	cmd.Flags().StringVar(&in.Title, "title", "", "book title")
	cmd.Flags().StringVar(&in.Author, "author", "", "book author")
	cmd.Flags().StringVar(&in.Genre, "genre", "", "book genre")
	cmd.Flags().StringVar(&in.Status, "status", "PLANNED", "READING, PLANNED or READ")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&description, "description", "", "short description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("genre")
	return cmd
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

func newBooksDeleteCmd(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book owned by a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			if err := a.library.Delete(cmd.Context(), id, userID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted book %d\n", id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "owner of the book")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
