package main

import (
	"fmt"

	"github.com/immxrtalbeast/meshconf/internal/profile"
	"github.com/spf13/cobra"
)

var unbanCmd = &cobra.Command{
	Use:   "unban ROOM",
	Short: "Forget the local ban marker of a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store := profile.NewStore(cfg.Profile.Path)
		if err := store.Unban(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ban marker for %q removed\n", args[0])
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the persisted identity, creating it on first use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		identity, err := profile.NewStore(cfg.Profile.Path).Identity("")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", identity.Nickname, identity.UserID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unbanCmd, whoamiCmd)
}
