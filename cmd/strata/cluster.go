package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cellgrid/strata/pkg/client"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect and manage the control plane cluster",
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token",
	Short: "Mint a token for joining nodes to the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clusterClient(cmd)
		token, err := c.ClusterJoinToken(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var clusterMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List cluster members and their raft roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clusterClient(cmd)
		state, err := c.ClusterInfo(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tADDRESS\tROLE")
		for _, srv := range state.Servers {
			role := "follower"
			if srv.Leader {
				role = "leader"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", srv.ID, srv.Address, role)
		}
		return w.Flush()
	},
}

var clusterRemoveCmd = &cobra.Command{
	Use:   "remove <node-id>",
	Short: "Remove a node from the cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clusterClient(cmd)
		if err := c.RemoveClusterServer(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func init() {
	clusterCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "Control plane API address")
	clusterCmd.PersistentFlags().String("token", "", "Admin API token")
	clusterCmd.AddCommand(clusterJoinTokenCmd, clusterMembersCmd, clusterRemoveCmd)
}

func clusterClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")

	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(server, opts...)
}
