package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Inspect or change per-file connection choices",
	}
	cmd.AddCommand(newConnectionsListCmd(), newConnectionsShowCmd(), newConnectionsChooseCmd(), newConnectionsForgetCmd())
	return cmd
}

func newConnectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			if len(svc.Connections()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no connections configured")
				return nil
			}
			for _, conn := range svc.Connections() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", conn.Name, conn.Dialect, strings.Join(conn.Cmd, " "))
			}
			return nil
		},
	}
}

func newConnectionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show FILE",
		Short: "Show the connection remembered for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			docID, err := docIDFor(args[0])
			if err != nil {
				return err
			}
			name, ok := svc.Docs.Connection(docID)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no connection chosen")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newConnectionsChooseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "choose FILE NAME",
		Short: "Remember a connection for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			docID, err := docIDFor(args[0])
			if err != nil {
				return err
			}
			if err := svc.ChooseConnection(docID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConnectionsForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget FILE",
		Short: "Forget the connection remembered for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			docID, err := docIDFor(args[0])
			if err != nil {
				return err
			}
			if err := svc.ForgetConnection(docID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s forgotten\n", args[0])
			return nil
		},
	}
}
