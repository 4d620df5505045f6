package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/user"
)

func newUserCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User directory commands",
	}

	cmd.AddCommand(newUserAddCmd(opts))
	cmd.AddCommand(newUserListCmd(opts))
	cmd.AddCommand(newUserDeleteCmd(opts))
	return cmd
}

func newUserAddCmd(opts *rootOpts) *cobra.Command {
	var (
		username string
		fullName string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, opts, user.CreateOpts{
				Username: username,
				FullName: fullName,
				Role:     access.Role(role),
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&fullName, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(access.RoleStaff), "role (superadmin, admin, staff, viewer)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func runUserAdd(cmd *cobra.Command, opts *rootOpts, co user.CreateOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.ManageUsers)
	if err != nil {
		return err
	}
	co.Actor = actor
	u, err := user.Create(s.db, co)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added user %s (id %d, %s)\n", u.Username, u.ID, u.Role)
	return nil
}

func newUserListCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, opts)
		},
	}
}

func runUserList(cmd *cobra.Command, opts *rootOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if _, err := s.actor(opts, access.ManageUsers); err != nil {
		return err
	}
	users, err := user.List(s.db)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.FormatUint(uint64(u.ID), 10), u.Username, u.FullName, u.Role})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "USERNAME", "NAME", "ROLE"},
		rows,
		[]columnAlignment{alignRight},
	))
	return nil
}

func newUserDeleteCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Long:  "Removes a user from the directory. History and audit entries keep their id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserDelete(cmd, opts, args[0])
		},
	}
}

func runUserDelete(cmd *cobra.Command, opts *rootOpts, username string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.ManageUsers)
	if err != nil {
		return err
	}
	u, err := user.GetByUsername(s.db, username)
	if err != nil {
		return err
	}
	if err := user.Delete(s.db, u.ID, actor); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", u.Username)
	return nil
}
