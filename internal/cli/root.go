// Package cli implements portalctl, the operator command line for the portal.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"civicportal/internal/service"
)

// Opener connects to the store and returns the services plus a close func.
type Opener func(ctx context.Context) (*service.Services, func(), error)

type cli struct {
	open     Opener
	svc      *service.Services
	close    func()
	jsonOut  bool
	operator string
}

func NewRootCommand(open Opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "portalctl manages users, suggestions and sessions of the civic portal",
		Long: `portalctl talks to the portal's record store directly.

  portalctl users list --pending       Users waiting for approval
  portalctl users approve <id|email>   Approve a user
  portalctl suggestions recount --all  Rebuild vote counters
  portalctl sessions reap              Delete expired sessions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			c.svc, c.close = svc, closeFn
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.close != nil {
				c.close()
			}
		},
	}

	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&c.operator, "operator", "portalctl", "Actor recorded on admin actions")

	root.AddCommand(
		c.usersCommand(),
		c.suggestionsCommand(),
		c.sessionsCommand(),
	)
	return root
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
