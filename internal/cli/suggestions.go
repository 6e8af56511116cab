package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"civicportal/internal/models"
)

func (c *cli) suggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Triage suggestions and repair vote counters",
	}

	var (
		status string
		sortBy string
		search string
		limit  int
		offset int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.SuggestionStatus(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			items, err := c.svc.Suggestions.List(cmd.Context(), models.SuggestionQuery{
				Limit:   limit,
				Offset:  offset,
				Sort:    models.SuggestionSort(sortBy),
				Filters: models.SuggestionFilters{Status: st, Search: search},
			})
			if err != nil {
				return err
			}
			return c.printSuggestions(cmd, items)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status: pending, approved, rejected, sent")
	list.Flags().StringVar(&sortBy, "sort", "newest", "Sort: newest, oldest, most-upvoted, most-downvoted")
	list.Flags().StringVar(&search, "search", "", "Case-insensitive text in title or description")
	list.Flags().IntVar(&limit, "limit", 20, "Page size")
	list.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var all bool
	recount := &cobra.Command{
		Use:   "recount [id]",
		Short: "Rebuild vote counters from the vote records",
		Args: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass exactly one suggestion id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if all {
				suggestions, err := c.svc.Suggestions.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				ids = make([]string, 0, len(suggestions))
				for _, s := range suggestions {
					ids = append(ids, s.ID)
				}
			}

			fixed := make([]models.Suggestion, 0, len(ids))
			for _, id := range ids {
				s, err := c.svc.Admin.Recount(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("recount %s: %w", id, err)
				}
				fixed = append(fixed, s)
			}
			return c.printSuggestions(cmd, fixed)
		},
	}
	recount.Flags().BoolVar(&all, "all", false, "Recount every suggestion")

	setStatus := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a suggestion to a new status; sent forwards it to lawmakers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.svc.Admin.SetSuggestionStatus(cmd.Context(), args[0], models.SuggestionStatus(args[1]), c.operator)
			if err != nil {
				return err
			}
			return c.printSuggestions(cmd, []models.Suggestion{s})
		},
	}

	var threshold int
	forward := &cobra.Command{
		Use:   "forward-popular",
		Short: "Forward every approved suggestion with at least --threshold upvotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold <= 0 {
				return errors.New("--threshold must be positive")
			}
			n, err := c.svc.Admin.ForwardPopular(cmd.Context(), threshold, c.operator)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forwarded %d suggestion(s).\n", n)
			return nil
		},
	}
	forward.Flags().IntVar(&threshold, "threshold", 0, "Minimum upvotes")

	cmd.AddCommand(list, recount, setStatus, forward)
	return cmd
}

func (c *cli) printSuggestions(cmd *cobra.Command, items []models.Suggestion) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		return c.printJSON(out, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No suggestions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tSTATUS\tUP\tDOWN")
	for _, s := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, truncate(s.Title, 40), s.Category, s.Status, s.Upvotes, s.Downvotes)
	}
	return w.Flush()
}
