package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
)

// operatorSubject identifies lookups made from the command line.
const operatorSubject = "portalctl"

func newSessionsCmd(open BackendOpener) *cobra.Command {
	var (
		limit   int
		company string
	)
	cmd := &cobra.Command{
		Use:   "sessions <user-id>",
		Short: "Look up a user's sessions in the session store",
		Long: "Looks up the sessions recorded for a user id, newest first, the way the\n" +
			"User Tool does. Without --company the lookup runs with admin visibility.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config

			ctx, cancel := commandContext(cmd.Context(), cliCtx)
			defer cancel()

			backend, err := open(ctx, cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			max := cfg.Portal.MaxSessions
			if limit > 0 {
				max = limit
			}
			svc := usertool.NewService(backend.Sessions, nil, usertool.Config{
				MaxSessions:     max,
				ScanLimit:       cfg.Portal.StoredSessionsPerUser,
				MaxUserIDLength: cfg.Portal.MaxUserIDLength,
			}, cliCtx.Logger)

			res, err := svc.Lookup(ctx, operatorViewer(company), args[0])
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("Sessions looked up",
				logging.String("user_id", res.UserID),
				logging.Int("count", len(res.Sessions)))

			if res.State == usertool.StateNoSessions && cliCtx.OutputFormat != "json" {
				fmt.Fprintln(cmd.ErrOrStderr(), "There are no sessions belonging to this user.")
			}
			return PrintResult(cmd, sessionsTable{res})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to show (default portal.max_sessions)")
	cmd.Flags().StringVar(&company, "company", "", "restrict to one buyer, as a member of that company would see it")
	return cmd
}

// commandContext bounds an operator command by --timeout.
func commandContext(parent context.Context, c *CLIContext) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

func operatorViewer(company string) *user.Profile {
	p := &user.Profile{Subject: operatorSubject, EmailVerified: true}
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" {
		p.Roles = []user.Role{user.RoleAdmin}
		return p
	}
	p.CompanyCode = company
	return p
}

type sessionsTable struct {
	*usertool.Result
}

func (t sessionsTable) TableHeaders() []string {
	return []string{"SESSION ID", "START (UTC)", "BUYER", "DATACENTER", "PLATFORM", "CONNECTION", "NEXT RTT"}
}

func (t sessionsTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.Sessions))
	for _, s := range t.Sessions {
		rows = append(rows, []string{
			s.SessionID.String(),
			s.StartTime.UTC().Format("2006-01-02 15:04:05"),
			s.BuyerCode,
			s.Datacenter,
			s.Platform.Label(),
			s.Connection.Label(),
			nextRTT(s),
		})
	}
	return rows
}

func nextRTT(s session.Entry) string {
	if !s.Next {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", s.NextRTT)
}
