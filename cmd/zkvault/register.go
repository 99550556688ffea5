package main

import (
	"encoding/base64"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/client"
	"zkvault/internal/crypto"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and print its recovery key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		pw, err := promptNewPassword()
		if err != nil {
			return err
		}
		defer crypto.Zero(pw)

		s, cleanup := startSpinner("Creating account...")
		defer cleanup()

		c := client.New(serverURL)
		rk, err := c.Register(cmd.Context(), username, pw)
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Registration failed: " + err.Error() + "\n"
			return err
		}
		defer crypto.Zero(rk)

		s.FinalMSG = color.GreenString("✓") + " Account " + color.YellowString(username) + " created\n"
		cleanup()

		fmt.Println()
		fmt.Println("Recovery key (shown once, store it somewhere safe):")
		fmt.Println("  " + color.CyanString(base64.RawURLEncoding.EncodeToString(rk)))
		fmt.Println()
		fmt.Println("Losing both your password and this key makes the account unrecoverable.")
		return nil
	},
}
