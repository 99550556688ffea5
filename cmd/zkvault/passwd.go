package main

import (
	"encoding/base64"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/client"
	"zkvault/internal/crypto"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your password",
	Long: `Re-roots the whole key hierarchy under the new password: new salt, new
master key, re-sealed private key, re-wrapped vault keys, and a replacement
recovery key. The old recovery key stops working.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		oldPw, err := promptPassword("Current password: ")
		if err != nil {
			return err
		}
		defer crypto.Zero(oldPw)
		newPw, err := promptNewPassword()
		if err != nil {
			return err
		}
		defer crypto.Zero(newPw)

		s, cleanup := startSpinner("Re-keying account...")
		defer cleanup()

		c := client.New(serverURL)
		rk, err := c.ChangePassword(cmd.Context(), username, oldPw, newPw)
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Password change failed: " + err.Error() + "\n"
			return err
		}
		defer crypto.Zero(rk)
		s.FinalMSG = color.GreenString("✓") + " Password changed\n"
		cleanup()

		printRecoveryKey(rk)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reset your password with a recovery key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		rkText, err := promptPassword("Recovery key: ")
		if err != nil {
			return err
		}
		defer crypto.Zero(rkText)
		rk, err := base64.RawURLEncoding.DecodeString(string(rkText))
		if err != nil {
			return fmt.Errorf("malformed recovery key: %w", err)
		}
		defer crypto.Zero(rk)

		newPw, err := promptNewPassword()
		if err != nil {
			return err
		}
		defer crypto.Zero(newPw)

		s, cleanup := startSpinner("Recovering account...")
		defer cleanup()

		c := client.New(serverURL)
		newRK, err := c.Recover(cmd.Context(), username, rk, newPw)
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Recovery failed: " + err.Error() + "\n"
			return err
		}
		defer crypto.Zero(newRK)
		s.FinalMSG = color.GreenString("✓") + " Account recovered; the used recovery key is now invalid\n"
		cleanup()

		printRecoveryKey(newRK)
		return nil
	},
}

func printRecoveryKey(rk []byte) {
	fmt.Println()
	fmt.Println("New recovery key (shown once, store it somewhere safe):")
	fmt.Println("  " + color.CyanString(base64.RawURLEncoding.EncodeToString(rk)))
	fmt.Println()
}
