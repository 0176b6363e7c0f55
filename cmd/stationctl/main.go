// Command stationctl drives the station portal API from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/client"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/logging"
	"github.com/router-for-me/StationPortal/internal/util"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8000"

// options are the flags shared by every command.
type options struct {
	server      string
	sessionPath string
	verbose     bool
}

func main() {
	if errExec := newRootCommand().ExecuteContext(context.Background()); errExec != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(errExec))
		os.Exit(1)
	}
}

// describe prefers the server's message over the transport wrapping.
func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "stationctl",
		Short:         "Operate the station portal from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logging.Setup(config.LoggingConfig{Level: level})
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("STATIONCTL_SERVER", defaultServer), "portal base URL")
	root.PersistentFlags().StringVar(&opts.sessionPath, "session", util.StatePath("stationctl", "session.json"), "session file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoAmICommand(opts),
		newReportCommand(opts),
		newDashboardCommand(opts),
		newStationsCommand(opts),
		newAreasCommand(opts),
		newOwnersCommand(opts),
		newRolesCommand(opts),
		newSessionsCommand(opts),
		newListenCommand(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// restore returns the session persisted by a previous login.
func (o *options) restore(ctx context.Context) (*client.Session, error) {
	sess := client.NewSession(client.New(o.server), client.NewFileStore(o.sessionPath))
	if errRestore := sess.Restore(ctx); errRestore != nil {
		return nil, errRestore
	}
	return sess, nil
}

// authorize restores the session and evaluates the route guard for required.
func (o *options) authorize(ctx context.Context, required ...string) (*client.Session, error) {
	sess, errRestore := o.restore(ctx)
	if errRestore != nil {
		return nil, errRestore
	}
	switch sess.Guard(required...) {
	case authz.DecisionAllow:
		return sess, nil
	case authz.DecisionRedirect:
		return nil, errors.New("not signed in; run stationctl login")
	default:
		return nil, errors.New("access denied: your role lacks " + strings.Join(required, " or "))
	}
}

func newLoginCommand(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("STATIONCTL_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("--username and --password (or STATIONCTL_PASSWORD) are required")
			}
			sess := client.NewSession(client.New(opts.server), client.NewFileStore(opts.sessionPath))
			user, errLogin := sess.Login(cmd.Context(), username, password)
			if errLogin != nil {
				return errLogin
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Username, user.RoleName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and forget the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errRestore := opts.restore(cmd.Context())
			if errRestore != nil {
				return errRestore
			}
			if errLogout := sess.Logout(cmd.Context()); errLogout != nil {
				return errLogout
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoAmICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and the pages they can open",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context())
			if errAuth != nil {
				return errAuth
			}
			user := sess.CurrentUser()
			out := cmd.OutOrStdout()
			if site, errConfig := sess.Client().Config(cmd.Context()); errConfig == nil {
				fmt.Fprintf(out, "site:        %s (sessions last %d min)\n", site.SiteName, site.SessionMinutes)
			}
			fmt.Fprintf(out, "user:        %s <%s>\n", user.Username, user.Email)
			fmt.Fprintf(out, "role:        %s\n", user.RoleName())
			for _, group := range authz.GroupPermissions(user.PermissionNames()) {
				fmt.Fprintf(out, "%-12s %s\n", group.Prefix+":", strings.Join(group.Names, ", "))
			}
			for _, route := range authz.VisibleRoutes(user) {
				fmt.Fprintf(out, "  %-24s %s\n", route.Path, route.Label)
			}
			return nil
		},
	}
}
