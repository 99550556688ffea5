package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkvault/internal/api"
	"zkvault/internal/client"
	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
	"zkvault/internal/session"
)

var shellIdle time.Duration

// shellCmd is the long-lived mode: one unlock, many operations, automatic
// lock after idle. One-shot commands re-derive the master key every time;
// this keeps it in a session instead.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session (auto-locks when idle)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		pw, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		s, cleanup := startSpinner("Unlocking...")
		c := client.New(serverURL)
		master, me, err := c.Authenticate(cmd.Context(), username, pw)
		if err != nil {
			crypto.Zero(pw)
			s.FinalMSG = color.RedString("✗") + " Login failed\n"
			cleanup()
			return err
		}
		crypto.Zero(master)

		sess := session.New(session.Credentials{
			Salt:           me.Salt,
			KDF:            me.KDF,
			PrivateKeyWrap: me.PrivateKeyWrap,
		}, shellIdle)
		defer sess.Close()

		err = sess.Unlock(cmd.Context(), pw)
		crypto.Zero(pw)
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Unlock failed\n"
			cleanup()
			return err
		}
		s.FinalMSG = color.GreenString("✓") + " Session unlocked (idle timeout " + sess.IdleTimeout().String() + ")\n"
		cleanup()

		return runShell(cmd.Context(), c, me, sess)
	},
}

func init() {
	shellCmd.Flags().DurationVar(&shellIdle, "idle", session.DefaultIdleTimeout, "idle timeout before the session locks itself")
}

type shellState struct {
	c    *client.Client
	me   api.MeResponse
	sess *session.Session
	v    *api.VaultResponse // current vault, nil until "use"
}

func runShell(ctx context.Context, c *client.Client, me api.MeResponse, sess *session.Session) error {
	st := &shellState{c: c, me: me, sess: sess}
	sc := bufio.NewScanner(os.Stdin)

	fmt.Println(`type "help" for commands, "exit" to quit`)
	for {
		fmt.Printf("zkvault(%s)> ", st.prompt())
		if !sc.Scan() {
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := st.eval(ctx, fields); err != nil {
			if errors.Is(err, session.ErrLocked) {
				printError(`session locked (idle timeout); type "unlock"`, nil)
				continue
			}
			printError(fields[0], err)
		}
	}
}

func (st *shellState) prompt() string {
	state := st.sess.State().String()
	if st.v != nil {
		return st.v.Name + ":" + state
	}
	return state
}

func (st *shellState) eval(ctx context.Context, fields []string) error {
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		fmt.Print(`  vaults                 list vaults
  use <vault>            select a vault
  ls                     list secrets in the current vault
  get <name>             decrypt and print a secret
  set <name> <value>     write the next version of a secret
  history <name>         list versions
  lock                   lock the session now
  unlock                 unlock after an idle lock
  exit                   quit
`)
		return nil

	case "vaults":
		st.sess.Touch()
		vaults, err := st.c.ListVaults(ctx)
		if err != nil {
			return err
		}
		for _, v := range vaults {
			fmt.Printf("%s  %-20s  owner=%s\n", v.ID, v.Name, v.Owner)
		}
		return nil

	case "use":
		if len(args) != 1 {
			return errors.New("usage: use <vault>")
		}
		st.sess.Touch()
		v, err := resolveVault(ctx, st.c, args[0])
		if err != nil {
			return err
		}
		st.v = &v
		return nil

	case "ls":
		if st.v == nil {
			return errors.New(`no vault selected; "use <vault>" first`)
		}
		st.sess.Touch()
		secrets, err := st.c.ListSecrets(ctx, st.v.ID)
		if err != nil {
			return err
		}
		for _, sec := range secrets {
			fmt.Printf("%-30s v%d\n", sec.Name, sec.Version)
		}
		return nil

	case "get":
		if len(args) != 1 {
			return errors.New("usage: get <name>")
		}
		return st.withVaultKey(ctx, func(vk []byte) error {
			resp, err := st.c.GetSecret(ctx, st.v.ID, args[0])
			if err != nil {
				return err
			}
			pt, err := keyring.DecryptSecret(resp.Envelope, vk, args[0])
			if err != nil {
				return err
			}
			defer crypto.Zero(pt)
			fmt.Println(string(pt))
			return nil
		})

	case "set":
		if len(args) != 2 {
			return errors.New("usage: set <name> <value>")
		}
		return st.withVaultKey(ctx, func(vk []byte) error {
			next := 1
			if cur, err := st.c.GetSecret(ctx, st.v.ID, args[0]); err == nil {
				next = cur.Version + 1
			} else if !errors.Is(err, client.ErrNotFound) {
				return err
			}
			resp, err := st.c.SetSecret(ctx, vk, st.v.ID, args[0], []byte(args[1]), next)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s v%d\n", color.GreenString("✓"), args[0], resp.Version)
			return nil
		})

	case "history":
		if len(args) != 1 {
			return errors.New("usage: history <name>")
		}
		if st.v == nil {
			return errors.New(`no vault selected; "use <vault>" first`)
		}
		st.sess.Touch()
		versions, err := st.c.SecretVersions(ctx, st.v.ID, args[0])
		if err != nil {
			return err
		}
		for _, sv := range versions {
			fmt.Printf("v%-4d %s by %s\n", sv.Version, sv.CreatedAt.Local().Format(time.RFC3339), sv.Author)
		}
		return nil

	case "lock":
		st.sess.Lock()
		fmt.Println("locked")
		return nil

	case "unlock":
		pw, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		defer crypto.Zero(pw)
		if err := st.sess.Unlock(ctx, pw); err != nil {
			return err
		}
		fmt.Println("unlocked")
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// withVaultKey fetches the caller's wrapped key for the current vault and
// lends the session-cached plaintext key to fn.
func (st *shellState) withVaultKey(ctx context.Context, fn func(vk []byte) error) error {
	if st.v == nil {
		return errors.New(`no vault selected; "use <vault>" first`)
	}
	grant, err := st.c.VaultKey(ctx, st.v.ID)
	if err != nil {
		return err
	}
	vk, err := st.sess.VaultKey(st.v.ID, grant.Wrapped)
	if err != nil {
		return err
	}
	return fn(vk)
}
