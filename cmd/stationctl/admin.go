package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/client"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/stationinfo"
	"github.com/spf13/cobra"
)

func newStationsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "stations", Short: "Search, list and export stations"}

	var interactive bool
	search := &cobra.Command{
		Use:   "search [text]",
		Short: "Find stations by id or name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context())
			if errAuth != nil {
				return errAuth
			}
			if interactive {
				return interactiveSearch(cmd, sess.Client())
			}
			if len(args) == 0 {
				return errors.New("search text is required")
			}
			hits, errSearch := sess.Client().SearchStations(cmd.Context(), args[0])
			if errSearch != nil {
				return errSearch
			}
			printSuggestions(cmd, hits)
			return nil
		},
	}
	search.Flags().BoolVarP(&interactive, "interactive", "i", false, "read queries from stdin, one per line")

	var q client.StationInfoQuery
	var format, out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Download the station-info table as xlsx or csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageStationInfo)
			if errAuth != nil {
				return errAuth
			}
			if out == "" {
				out = "stations." + format
			}
			data, errExport := sess.Client().ExportStationInfo(cmd.Context(), format, q)
			if errExport != nil {
				return errExport
			}
			if errWrite := os.WriteFile(out, data, 0o644); errWrite != nil {
				return errWrite
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	export.Flags().StringVar(&format, "format", "xlsx", "xlsx or csv")
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default stations.<format>)")
	export.Flags().StringVar(&q.Search, "q", "", "search station id or name")
	export.Flags().StringVar(&q.ProvinceID, "province", "", "province id")
	export.Flags().StringVar(&q.SupporterID, "supporter", "", "supporter id")
	export.Flags().StringVar(&q.AMControlID, "am-control", "", "AM control id")
	export.Flags().StringVar(&q.Sort, "sort", "", "sort keys, e.g. province.name,-station_id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stations with their area and owners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermAccessAdmin)
			if errAuth != nil {
				return errAuth
			}
			stations, errList := sess.Client().Stations(cmd.Context())
			if errList != nil {
				return errList
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATION\tNAME\tAREA\tOWNERS")
			for _, s := range stations {
				area := "-"
				if s.Area != nil {
					area = s.Area.Name
				}
				owners := make([]string, 0, len(s.Owners))
				for _, o := range s.Owners {
					owners = append(owners, o.Username)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.StationID, s.StationName, area, strings.Join(owners, ","))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(search, export, list)
	return cmd
}

// interactiveSearch feeds each stdin line through the debounced search, the way
// the dashboard's search box does.
func interactiveSearch(cmd *cobra.Command, api *client.Client) error {
	var mu sync.Mutex
	search := client.NewStationSearch(api, client.DefaultDebounceDelay, func(hits []client.StationSuggestion, errSearch error) {
		mu.Lock()
		defer mu.Unlock()
		if errSearch != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "search failed:", describe(errSearch))
			return
		}
		printSuggestions(cmd, hits)
	})
	defer search.Stop()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		search.Input(scanner.Text())
	}
	search.Flush()
	return scanner.Err()
}

func printSuggestions(cmd *cobra.Command, hits []client.StationSuggestion) {
	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(no matches)")
		return
	}
	for _, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", h.StationID, h.StationName)
	}
}

func newAreasCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "areas", Short: "Inspect and edit area assignments"}

	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import <area> <file>",
		Short: "Add stations listed in an xlsx, csv or text file to an area",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageAreas)
			if errAuth != nil {
				return errAuth
			}
			api := sess.Client()
			area, editor, _, errLoad := loadAreaEditor(cmd.Context(), api, args[0])
			if errLoad != nil {
				return errLoad
			}

			file, errOpen := os.Open(args[1])
			if errOpen != nil {
				return errOpen
			}
			defer func() { _ = file.Close() }()
			ids, errRead := stationinfo.ReadStationIDs(filepath.Base(args[1]), file)
			if errRead != nil {
				return errRead
			}
			result := editor.Import(strings.Join(ids, "\n"))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "added %d, unchanged %d\n", len(result.Added), len(result.Unchanged))
			if len(result.Unresolved) > 0 {
				fmt.Fprintf(out, "not found: %s\n", strings.Join(result.Unresolved, ", "))
			}
			if len(result.Conflicting) > 0 {
				fmt.Fprintf(out, "in another area: %s\n", strings.Join(result.Conflicting, ", "))
			}
			if dryRun || !editor.Dirty() {
				return nil
			}
			saved, errSave := api.SaveArea(cmd.Context(), area.ID, editor.Payload())
			if errSave != nil {
				return errSave
			}
			printSavedArea(out, saved)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without saving")

	toggle := &cobra.Command{
		Use:   "toggle <area> <station...>",
		Short: "Add or remove stations from an area",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageAreas)
			if errAuth != nil {
				return errAuth
			}
			api := sess.Client()
			area, editor, stations, errLoad := loadAreaEditor(cmd.Context(), api, args[0])
			if errLoad != nil {
				return errLoad
			}
			refs, errResolve := resolveStations(stations, args[1:])
			if errResolve != nil {
				return errResolve
			}
			for _, s := range refs {
				if errToggle := editor.Toggle(s.ID); errToggle != nil {
					if errors.Is(errToggle, assignment.ErrStationInOtherArea) && s.Area != nil {
						return fmt.Errorf("station %s is already assigned to area %s", s.StationID, s.Area.Name)
					}
					return fmt.Errorf("station %s: %w", s.StationID, errToggle)
				}
			}
			return saveAreaEditor(cmd, api, area, editor)
		},
	}

	var clearManager bool
	setManager := &cobra.Command{
		Use:   "set-manager <area> [user]",
		Short: "Make a user the manager of an area",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearManager == (len(args) == 2) {
				return errors.New("give either a user or --clear")
			}
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageAreas)
			if errAuth != nil {
				return errAuth
			}
			api := sess.Client()
			area, editor, _, errLoad := loadAreaEditor(cmd.Context(), api, args[0])
			if errLoad != nil {
				return errLoad
			}
			if clearManager {
				editor.SetManager(nil)
				return saveAreaEditor(cmd, api, area, editor)
			}
			users, errUsers := api.UserRefs(cmd.Context())
			if errUsers != nil {
				return errUsers
			}
			user, errFind := findUserRef(users, args[1])
			if errFind != nil {
				return errFind
			}
			editor.SetManager(&user.ID)
			return saveAreaEditor(cmd, api, area, editor)
		},
	}
	setManager.Flags().BoolVar(&clearManager, "clear", false, "remove the area's manager")

	list := &cobra.Command{
		Use:   "list",
		Short: "List areas with station counts and managers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermAccessAdmin)
			if errAuth != nil {
				return errAuth
			}
			areas, errAreas := sess.Client().Areas(cmd.Context())
			if errAreas != nil {
				return errAreas
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATIONS\tMANAGERS")
			for _, a := range areas {
				managers := make([]string, 0, len(a.Managers))
				for _, m := range a.Managers {
					managers = append(managers, m.Username)
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", a.ID, a.Name, len(a.Stations), strings.Join(managers, ","))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(importCmd, toggle, setManager, list)
	return cmd
}

func loadAreaEditor(ctx context.Context, api *client.Client, ref string) (schema.Area, *assignment.AreaEditor, []schema.Station, error) {
	areas, errAreas := api.Areas(ctx)
	if errAreas != nil {
		return schema.Area{}, nil, nil, errAreas
	}
	area, errFind := findArea(areas, ref)
	if errFind != nil {
		return schema.Area{}, nil, nil, errFind
	}
	stations, errStations := api.Stations(ctx)
	if errStations != nil {
		return schema.Area{}, nil, nil, errStations
	}
	editor, errEditor := client.NewAreaEditor(areas, stations, area.ID)
	if errEditor != nil {
		return schema.Area{}, nil, nil, errEditor
	}
	return area, editor, stations, nil
}

func saveAreaEditor(cmd *cobra.Command, api *client.Client, area schema.Area, editor *assignment.AreaEditor) error {
	if !editor.Dirty() {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes")
		return nil
	}
	saved, errSave := api.SaveArea(cmd.Context(), area.ID, editor.Payload())
	if errSave != nil {
		return errSave
	}
	printSavedArea(cmd.OutOrStdout(), saved)
	return nil
}

// printSavedArea reports an area as the server listed it after saving.
func printSavedArea(out io.Writer, area schema.Area) {
	ids := make([]string, 0, len(area.Stations))
	for _, s := range area.Stations {
		ids = append(ids, s.StationID)
	}
	manager := "-"
	if len(area.Managers) > 0 {
		manager = area.Managers[0].Username
	}
	fmt.Fprintf(out, "saved %s: %d station(s), manager %s\n", area.Name, len(area.Stations), manager)
	if len(ids) > 0 {
		fmt.Fprintf(out, "stations: %s\n", strings.Join(ids, ", "))
	}
}

// resolveStations maps business station ids to fetched stations.
func resolveStations(stations []schema.Station, refs []string) ([]schema.Station, error) {
	byID := make(map[string]schema.Station, len(stations))
	for _, s := range stations {
		byID[strings.ToUpper(s.StationID)] = s
	}
	out := make([]schema.Station, 0, len(refs))
	var missing []string
	for _, token := range assignment.ParseStationTokens(strings.Join(refs, " ")) {
		s, ok := byID[strings.ToUpper(token)]
		if !ok {
			missing = append(missing, token)
			continue
		}
		out = append(out, s)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("stations not found: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// findUserRef matches a user by numeric id or case-insensitive username.
func findUserRef(users []schema.UserRef, ref string) (schema.UserRef, error) {
	id, errParse := strconv.ParseUint(ref, 10, 64)
	for _, u := range users {
		if (errParse == nil && u.ID == id) || strings.EqualFold(u.Username, ref) {
			return u, nil
		}
	}
	return schema.UserRef{}, fmt.Errorf("user %q not found", ref)
}

// findArea matches an area by numeric id or case-insensitive name.
func findArea(areas []schema.Area, ref string) (schema.Area, error) {
	id, errParse := strconv.ParseUint(ref, 10, 64)
	for _, a := range areas {
		if (errParse == nil && a.ID == id) || strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return schema.Area{}, fmt.Errorf("area %q not found", ref)
}

func newRolesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Inspect and edit role permissions"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List roles and their permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermAccessAdmin)
			if errAuth != nil {
				return errAuth
			}
			roles, errRoles := sess.Client().Roles(cmd.Context())
			if errRoles != nil {
				return errRoles
			}
			for _, r := range roles {
				names := make([]string, 0, len(r.Permissions))
				for _, p := range r.Permissions {
					names = append(names, p.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.Name)
				for _, g := range authz.GroupPermissions(names) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", g.Prefix, strings.Join(g.Names, ", "))
				}
			}
			return nil
		},
	}

	var grant, revoke []string
	set := &cobra.Command{
		Use:   "set <role>",
		Short: "Grant or revoke permissions and save the full set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageRoles)
			if errAuth != nil {
				return errAuth
			}
			return setRolePermissions(cmd, sess.Client(), args[0], grant, revoke)
		},
	}
	set.Flags().StringSliceVar(&grant, "grant", nil, "permission names to add")
	set.Flags().StringSliceVar(&revoke, "revoke", nil, "permission names to remove")

	cmd.AddCommand(list, set)
	return cmd
}

func setRolePermissions(cmd *cobra.Command, api *client.Client, roleName string, grant, revoke []string) error {
	ctx := cmd.Context()
	roles, errRoles := api.Roles(ctx)
	if errRoles != nil {
		return errRoles
	}
	perms, errPerms := api.Permissions(ctx)
	if errPerms != nil {
		return errPerms
	}
	byName := make(map[string]uint64, len(perms))
	for _, p := range perms {
		byName[p.Name] = p.ID
	}

	var editor *client.RoleEditor
	for _, r := range roles {
		if strings.EqualFold(r.Name, roleName) {
			editor = client.NewRoleEditor(r)
			break
		}
	}
	if editor == nil {
		return fmt.Errorf("role %q not found", roleName)
	}
	apply := func(names []string, want bool) error {
		for _, name := range names {
			id, ok := byName[strings.TrimSpace(name)]
			if !ok {
				return fmt.Errorf("permission %q not found", name)
			}
			if editor.Selected(id) != want {
				editor.Toggle(id)
			}
		}
		return nil
	}
	if errGrant := apply(grant, true); errGrant != nil {
		return errGrant
	}
	if errRevoke := apply(revoke, false); errRevoke != nil {
		return errRevoke
	}
	if !editor.Dirty() {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes")
		return nil
	}
	if errSave := editor.Save(ctx, api); errSave != nil {
		return errSave
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d permissions\n", editor.Role.Name, len(editor.Role.Permissions))
	return nil
}

func newSessionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "List and terminate signed-in sessions"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageSessions)
			if errAuth != nil {
				return errAuth
			}
			active, errList := sess.Client().ActiveSessions(cmd.Context())
			if errList != nil {
				return errList
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "USER_ID\tUSERNAME\tIP\tSINCE")
			for _, s := range active {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.UserID, s.Username, s.IPAddress, s.LoginTime.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	var message string
	terminate := &cobra.Command{
		Use:   "terminate <user-id>",
		Short: "Sign a user out everywhere and notify their open dashboards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, errParse := strconv.ParseUint(args[0], 10, 64)
			if errParse != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageSessions)
			if errAuth != nil {
				return errAuth
			}
			return runTerminate(cmd.Context(), cmd, sess.Client(), userID, message)
		},
	}
	terminate.Flags().StringVarP(&message, "message", "m", "", "text shown to the user")

	cmd.AddCommand(list, terminate)
	return cmd
}

func runTerminate(ctx context.Context, cmd *cobra.Command, api *client.Client, userID uint64, message string) error {
	result, errTerminate := api.TerminateSessions(ctx, userID, message)
	if errTerminate != nil {
		return errTerminate
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d session(s) closed, notified=%t\n", result.Message, result.SessionsTerminated, result.Notified)
	return nil
}
