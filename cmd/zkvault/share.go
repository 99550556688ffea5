package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/crypto"
)

var (
	shareVaultFlag  string
	revokeVaultFlag string
)

var shareCmd = &cobra.Command{
	Use:   "share <username>",
	Short: "Give another user access to a vault",
	Long: `Wraps the vault key for the recipient using your private key and their
public key. The server relays only the wrapped result; it cannot open it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, me, err := authenticate(ctx)
		if err != nil {
			return err
		}
		defer crypto.Zero(master)

		v, err := resolveVault(ctx, c, shareVaultFlag)
		if err != nil {
			return err
		}
		if err := c.ShareVault(ctx, me, master, v.ID, args[0]); err != nil {
			printError("Share failed", err)
			return err
		}
		fmt.Println(color.GreenString("✓") + " Vault " + color.YellowString(v.Name) + " shared with " + color.YellowString(args[0]))
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <username>",
	Short: "Remove a user's access to a vault",
	Long: `Deletes the user's wrapped key record from the server. A copy of the
vault key the user already decrypted stays usable on their machine; revocation
stops the server from handing out anything new, it does not rewind the past.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, master, _, err := authenticate(ctx)
		if err != nil {
			return err
		}
		crypto.Zero(master)

		v, err := resolveVault(ctx, c, revokeVaultFlag)
		if err != nil {
			return err
		}
		if err := c.RevokeVaultKey(ctx, v.ID, args[0]); err != nil {
			printError("Revoke failed", err)
			return err
		}
		fmt.Println(color.GreenString("✓") + " Access revoked for " + color.YellowString(args[0]))
		return nil
	},
}

func init() {
	shareCmd.Flags().StringVarP(&shareVaultFlag, "vault", "V", "", "vault name or ID")
	_ = shareCmd.MarkFlagRequired("vault")
	revokeCmd.Flags().StringVarP(&revokeVaultFlag, "vault", "V", "", "vault name or ID")
	_ = revokeCmd.MarkFlagRequired("vault")
}
