package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zkvault/internal/logging"
	"zkvault/internal/platform"
)

var (
	serverURL string
	username  string
	verbose   bool
	debug     bool
	logger    logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zkvault",
	Short: "zkvault - zero-knowledge secrets manager",
	Long: `zkvault keeps team secrets encrypted end to end. The server stores only
ciphertext and public keys; every key is derived from your password on this
machine and never leaves it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.Logger{Verbose: verbose, Debug: debug}
		if err := platform.DisableCoreDumps(); err != nil {
			logger.Warnf("could not disable core dumps: %v", err)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("ZKVAULT_SERVER", "http://localhost:8080"), "server URL")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", os.Getenv("ZKVAULT_USER"), "account username")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
