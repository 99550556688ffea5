package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/crypto"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Create and list vaults",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a vault; its key is generated locally and never uploaded in plaintext",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, master, _, err := authenticate(cmd.Context())
		if err != nil {
			return err
		}
		defer crypto.Zero(master)

		v, err := c.NewVault(cmd.Context(), master, args[0])
		if err != nil {
			printError("Create failed", err)
			return err
		}
		fmt.Println(color.GreenString("✓") + " Vault " + color.YellowString(v.Name) + " created (" + v.ID + ")")
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vaults you are a member of",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, master, _, err := authenticate(cmd.Context())
		if err != nil {
			return err
		}
		crypto.Zero(master)

		vaults, err := c.ListVaults(cmd.Context())
		if err != nil {
			printError("List failed", err)
			return err
		}
		if len(vaults) == 0 {
			fmt.Println("no vaults")
			return nil
		}
		for _, v := range vaults {
			fmt.Printf("%s  %-20s  owner=%s\n", v.ID, v.Name, v.Owner)
		}
		return nil
	},
}

func init() {
	vaultCmd.AddCommand(vaultCreateCmd)
	vaultCmd.AddCommand(vaultListCmd)
}
