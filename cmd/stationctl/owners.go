package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/client"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/spf13/cobra"
)

func newOwnersCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "owners", Short: "Inspect and edit station-owner assignments"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List owners and the stations they own",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermAccessAdmin)
			if errAuth != nil {
				return errAuth
			}
			owners, errOwners := sess.Client().Owners(cmd.Context())
			if errOwners != nil {
				return errOwners
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tSTATIONS")
			for _, o := range owners {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Username, strings.Join(ownedStationIDs(o), ","))
			}
			return tw.Flush()
		},
	}

	var remove bool
	assign := &cobra.Command{
		Use:   "assign <user> <station...>",
		Short: "Give stations to an owner, or take them back with --remove",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageStations)
			if errAuth != nil {
				return errAuth
			}
			return assignOwnerStations(cmd, sess.Client(), args[0], args[1:], remove)
		},
	}
	assign.Flags().BoolVar(&remove, "remove", false, "remove the stations from the owner instead")

	release := &cobra.Command{
		Use:   "release <station>",
		Short: "Remove every owner from a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermManageStations)
			if errAuth != nil {
				return errAuth
			}
			api := sess.Client()
			stations, errStations := api.Stations(cmd.Context())
			if errStations != nil {
				return errStations
			}
			refs, errResolve := resolveStations(stations, args)
			if errResolve != nil {
				return errResolve
			}
			if len(refs[0].Owners) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			if errRelease := api.SetStationOwners(cmd.Context(), refs[0].ID, nil); errRelease != nil {
				return errRelease
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s from %s\n", refs[0].StationID, refs[0].Owners[0].Username)
			return nil
		},
	}

	cmd.AddCommand(list, assign, release)
	return cmd
}

func assignOwnerStations(cmd *cobra.Command, api *client.Client, ownerRef string, stationRefs []string, remove bool) error {
	ctx := cmd.Context()
	owners, errOwners := api.Owners(ctx)
	if errOwners != nil {
		return errOwners
	}
	owner, errFind := findOwner(owners, ownerRef)
	if errFind != nil {
		return errFind
	}
	stations, errStations := api.Stations(ctx)
	if errStations != nil {
		return errStations
	}
	refs, errResolve := resolveStations(stations, stationRefs)
	if errResolve != nil {
		return errResolve
	}
	editor, errEditor := client.NewOwnerEditor(owners, stations, owner.ID)
	if errEditor != nil {
		return errEditor
	}
	usernames := make(map[uint64]string, len(owners))
	for _, o := range owners {
		usernames[o.ID] = o.Username
	}

	for _, s := range refs {
		if editor.Assigned(s.ID) != remove {
			continue
		}
		if errToggle := editor.Toggle(s.ID); errToggle != nil {
			if errors.Is(errToggle, assignment.ErrStationOwnedByOther) {
				holder, _ := editor.OwnerOf(s.ID)
				return fmt.Errorf("station %s is already assigned to %s", s.StationID, usernames[holder])
			}
			return fmt.Errorf("station %s: %w", s.StationID, errToggle)
		}
	}
	if !editor.Dirty() {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes")
		return nil
	}
	saved, errSave := api.SaveOwner(ctx, owner.ID, editor.Payload())
	if errSave != nil {
		return errSave
	}
	ids := ownedStationIDs(saved)
	if len(ids) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s now owns no stations\n", saved.Username)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now owns %s\n", saved.Username, strings.Join(ids, ", "))
	return nil
}

// findOwner matches an owner by numeric id or case-insensitive username.
func findOwner(owners []schema.User, ref string) (schema.User, error) {
	refs := make([]schema.UserRef, 0, len(owners))
	for _, o := range owners {
		refs = append(refs, schema.UserRef{ID: o.ID, Username: o.Username})
	}
	match, errFind := findUserRef(refs, ref)
	if errFind != nil {
		return schema.User{}, fmt.Errorf("owner %q not found", ref)
	}
	for _, o := range owners {
		if o.ID == match.ID {
			return o, nil
		}
	}
	return schema.User{}, fmt.Errorf("owner %q not found", ref)
}

func ownedStationIDs(u schema.User) []string {
	ids := make([]string, 0, len(u.OwnedStations))
	for _, s := range u.OwnedStations {
		ids = append(ids, s.StationID)
	}
	return ids
}
