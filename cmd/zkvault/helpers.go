package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"

	"zkvault/internal/api"
	"zkvault/internal/client"
	"zkvault/internal/crypto"
)

// startSpinner shows a busy indicator around the slow KDF and network calls.
// Returns the spinner and a cleanup to defer; set FinalMSG before returning.
func startSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	_ = s.Color("cyan")

	if !verbose && !debug {
		s.Start()
		log.SetOutput(io.Discard)
	}

	// Idempotent so commands can stop the spinner early and keep printing.
	done := false
	cleanup := func() {
		if done {
			return
		}
		done = true
		finalMsg := s.FinalMSG
		s.FinalMSG = ""
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}
	return s, cleanup
}

func printError(msg string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+msg+": "+err.Error())
	} else {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+msg)
	}
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("empty password")
	}
	return pw, nil
}

func promptNewPassword() ([]byte, error) {
	pw, err := promptPassword("New password: ")
	if err != nil {
		return nil, err
	}
	again, err := promptPassword("Confirm password: ")
	if err != nil {
		crypto.Zero(pw)
		return nil, err
	}
	defer crypto.Zero(again)
	if !bytes.Equal(pw, again) {
		crypto.Zero(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func requireUser() error {
	if username == "" {
		return errors.New("username required: pass --user or set ZKVAULT_USER")
	}
	return nil
}

// authenticate prompts for the password and logs in. The returned master key
// belongs to the caller; zero it.
func authenticate(ctx context.Context) (*client.Client, []byte, api.MeResponse, error) {
	if err := requireUser(); err != nil {
		return nil, nil, api.MeResponse{}, err
	}
	pw, err := promptPassword("Password: ")
	if err != nil {
		return nil, nil, api.MeResponse{}, err
	}
	defer crypto.Zero(pw)

	s, cleanup := startSpinner("Unlocking...")
	defer cleanup()

	c := client.New(serverURL)
	master, me, err := c.Authenticate(ctx, username, pw)
	if err != nil {
		s.FinalMSG = color.RedString("✗") + " Login failed\n"
		return nil, nil, api.MeResponse{}, err
	}
	s.FinalMSG = color.GreenString("✓") + " Unlocked\n"
	return c, master, me, nil
}

// resolveVault accepts either a vault ID or a vault name the caller is a
// member of.
func resolveVault(ctx context.Context, c *client.Client, nameOrID string) (api.VaultResponse, error) {
	vaults, err := c.ListVaults(ctx)
	if err != nil {
		return api.VaultResponse{}, err
	}
	for _, v := range vaults {
		if v.ID == nameOrID || v.Name == nameOrID {
			return v, nil
		}
	}
	return api.VaultResponse{}, fmt.Errorf("no vault named %q", nameOrID)
}
