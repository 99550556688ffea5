package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/client"
	"zkvault/internal/crypto"
)

var (
	secretVaultFlag string
	secretVersion   int
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Read and write versioned secrets",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Write the next version of a secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, me, err := authenticate(ctx)
		if err != nil {
			return err
		}
		defer crypto.Zero(master)

		v, err := resolveVault(ctx, c, secretVaultFlag)
		if err != nil {
			return err
		}
		vk, err := c.UnwrapOwnVaultKey(ctx, me, master, v.ID)
		if err != nil {
			printError("Vault key", err)
			return err
		}
		defer crypto.Zero(vk)

		name := args[0]
		next := 1
		if cur, err := c.GetSecret(ctx, v.ID, name); err == nil {
			next = cur.Version + 1
		} else if !errors.Is(err, client.ErrNotFound) {
			return err
		}

		resp, err := c.SetSecret(ctx, vk, v.ID, name, []byte(args[1]), next)
		if errors.Is(err, client.ErrConflict) {
			printError("Someone else updated this secret first; re-run to retry", err)
			return err
		}
		if err != nil {
			printError("Write failed", err)
			return err
		}
		fmt.Printf("%s %s v%d\n", color.GreenString("✓"), name, resp.Version)
		return nil
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Decrypt and print a secret (current or a specific --version)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, me, err := authenticate(ctx)
		if err != nil {
			return err
		}
		defer crypto.Zero(master)

		v, err := resolveVault(ctx, c, secretVaultFlag)
		if err != nil {
			return err
		}
		vk, err := c.UnwrapOwnVaultKey(ctx, me, master, v.ID)
		if err != nil {
			printError("Vault key", err)
			return err
		}
		defer crypto.Zero(vk)

		var value []byte
		if secretVersion > 0 {
			value, err = c.ReadSecretVersion(ctx, vk, v.ID, args[0], secretVersion)
		} else {
			value, _, err = c.ReadSecret(ctx, vk, v.ID, args[0])
		}
		if err != nil {
			printError("Read failed", err)
			return err
		}
		defer crypto.Zero(value)
		fmt.Println(string(value))
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret names and current versions (no values)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, _, err := authenticate(ctx)
		if err != nil {
			return err
		}
		crypto.Zero(master)

		v, err := resolveVault(ctx, c, secretVaultFlag)
		if err != nil {
			return err
		}
		secrets, err := c.ListSecrets(ctx, v.ID)
		if err != nil {
			printError("List failed", err)
			return err
		}
		for _, sec := range secrets {
			fmt.Printf("%-30s v%-4d %s by %s\n", sec.Name, sec.Version,
				sec.UpdatedAt.Local().Format(time.RFC3339), sec.UpdatedBy)
		}
		return nil
	},
}

var secretHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show every retained version of a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, _, err := authenticate(ctx)
		if err != nil {
			return err
		}
		crypto.Zero(master)

		v, err := resolveVault(ctx, c, secretVaultFlag)
		if err != nil {
			return err
		}
		versions, err := c.SecretVersions(ctx, v.ID, args[0])
		if err != nil {
			printError("History failed", err)
			return err
		}
		for _, sv := range versions {
			fmt.Printf("v%-4d %s by %s\n", sv.Version, sv.CreatedAt.Local().Format(time.RFC3339), sv.Author)
		}
		return nil
	},
}

func init() {
	secretCmd.PersistentFlags().StringVarP(&secretVaultFlag, "vault", "V", "", "vault name or ID")
	_ = secretCmd.MarkPersistentFlagRequired("vault")
	secretGetCmd.Flags().IntVar(&secretVersion, "version", 0, "read a specific version instead of the current one")

	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretListCmd)
	secretCmd.AddCommand(secretHistoryCmd)
}
