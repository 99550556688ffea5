package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zkvault/internal/crypto"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the server's hash-chained event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, master, _, err := authenticate(cmd.Context())
		if err != nil {
			return err
		}
		crypto.Zero(master)

		entries, err := c.AuditLog(cmd.Context())
		if err != nil {
			printError("Audit fetch failed", err)
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", time.Unix(e.TS, 0).Local().Format(time.RFC3339), e.What)
		}
		return nil
	},
}
