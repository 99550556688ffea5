package client

import (
	"context"
	"fmt"

	"zkvault/internal/account"
	"zkvault/internal/api"
	"zkvault/internal/crypto"
	"zkvault/internal/keyring"
	"zkvault/internal/storage"
)

// Register enrolls a new account: the full key hierarchy is built locally and
// only ciphertext leaves the process. The returned recovery key is shown to
// the user once; the caller zeroes it.
func (c *Client) Register(ctx context.Context, username string, password []byte) ([]byte, error) {
	enr, err := account.Enroll(username, password)
	if err != nil {
		return nil, err
	}
	loginKey, err := keyring.LoginKey(enr.Master)
	crypto.Zero(enr.Master)
	if err != nil {
		crypto.Zero(enr.RecoveryKey)
		return nil, err
	}

	req := api.SignupRequest{
		Username:       username,
		LoginKey:       loginKey,
		Salt:           enr.Record.Salt,
		KDF:            enr.Record.KDF,
		PublicKey:      enr.Record.PublicKey,
		PrivateKeyWrap: enr.Record.PrivateKeyWrap,
		RecoveryWrap:   enr.Record.RecoveryWrap,
	}
	if err := c.Signup(ctx, req); err != nil {
		crypto.Zero(enr.RecoveryKey)
		return nil, err
	}
	return enr.RecoveryKey, nil
}

// Authenticate derives the master key from the password, logs in, and fetches
// the caller's credential record. The returned master key is verified by
// trial decryption of the sealed private key; the caller zeroes it.
func (c *Client) Authenticate(ctx context.Context, username string, password []byte) ([]byte, api.MeResponse, error) {
	pre, err := c.Prelogin(ctx, username)
	if err != nil {
		return nil, api.MeResponse{}, err
	}
	master, err := crypto.Derive(password, pre.Salt, pre.KDF)
	if err != nil {
		return nil, api.MeResponse{}, err
	}
	return c.finishLogin(ctx, username, master)
}

// AuthenticateWithRecoveryKey reaches the master key through the recovery
// wrap instead of the password. Used when the password is lost.
func (c *Client) AuthenticateWithRecoveryKey(ctx context.Context, username string, recoveryKey []byte) ([]byte, api.MeResponse, error) {
	pre, err := c.Prelogin(ctx, username)
	if err != nil {
		return nil, api.MeResponse{}, err
	}
	master, err := keyring.RecoverMasterKey(recoveryKey, pre.RecoveryWrap)
	if err != nil {
		return nil, api.MeResponse{}, err
	}
	return c.finishLogin(ctx, username, master)
}

func (c *Client) finishLogin(ctx context.Context, username string, master []byte) ([]byte, api.MeResponse, error) {
	loginKey, err := keyring.LoginKey(master)
	if err != nil {
		crypto.Zero(master)
		return nil, api.MeResponse{}, err
	}
	if _, err := c.Login(ctx, username, loginKey); err != nil {
		crypto.Zero(master)
		return nil, api.MeResponse{}, err
	}
	me, err := c.Me(ctx)
	if err != nil {
		crypto.Zero(master)
		return nil, api.MeResponse{}, err
	}
	priv, err := keyring.OpenPrivateKey(me.PrivateKeyWrap, master)
	if err != nil {
		crypto.Zero(master)
		return nil, api.MeResponse{}, err
	}
	crypto.Zero(priv)
	return master, me, nil
}

// ChangePassword re-roots the account under a new password and returns the
// replacement recovery key.
func (c *Client) ChangePassword(ctx context.Context, username string, oldPassword, newPassword []byte) ([]byte, error) {
	master, me, err := c.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)
	return c.rekey(ctx, me, master, newPassword)
}

// Recover sets a new password using the recovery key. The used recovery key
// stops working because its wrap is replaced.
func (c *Client) Recover(ctx context.Context, username string, recoveryKey, newPassword []byte) ([]byte, error) {
	master, me, err := c.AuthenticateWithRecoveryKey(ctx, username, recoveryKey)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)
	return c.rekey(ctx, me, master, newPassword)
}

func (c *Client) rekey(ctx context.Context, me api.MeResponse, master, newPassword []byte) ([]byte, error) {
	grants, err := c.MyKeys(ctx)
	if err != nil {
		return nil, err
	}
	held := make([]storage.VaultKeyRecord, 0, len(grants))
	for _, g := range grants {
		held = append(held, storage.VaultKeyRecord{
			VaultID:  g.VaultID,
			Username: g.Username,
			Wrapped:  g.Wrapped,
		})
	}

	rec := storage.UserRecord{
		Username:       me.Username,
		Salt:           me.Salt,
		KDF:            me.KDF,
		PublicKey:      me.PublicKey,
		PrivateKeyWrap: me.PrivateKeyWrap,
		RecoveryWrap:   me.RecoveryWrap,
	}
	rk, err := account.Rekey(rec, master, newPassword, held)
	if err != nil {
		return nil, err
	}

	loginKey, err := keyring.LoginKey(rk.Master)
	crypto.Zero(rk.Master)
	if err != nil {
		crypto.Zero(rk.RecoveryKey)
		return nil, err
	}

	req := api.UpdateCredentialsRequest{
		LoginKey:       loginKey,
		Salt:           rk.Record.Salt,
		KDF:            rk.Record.KDF,
		PrivateKeyWrap: rk.Record.PrivateKeyWrap,
		RecoveryWrap:   rk.Record.RecoveryWrap,
	}
	for _, vk := range rk.VaultKeys {
		req.VaultKeys = append(req.VaultKeys, api.VaultKeyGrant{
			VaultID:  vk.VaultID,
			Username: vk.Username,
			Wrapped:  vk.Wrapped,
		})
	}
	if err := c.UpdateCredentials(ctx, req); err != nil {
		crypto.Zero(rk.RecoveryKey)
		return nil, err
	}
	return rk.RecoveryKey, nil
}

// NewVault creates a vault whose key is generated locally and stored only as
// a wrap under the caller's master key.
func (c *Client) NewVault(ctx context.Context, master []byte, name string) (api.VaultResponse, error) {
	vk, wrap, err := keyring.NewVaultKey(master)
	if err != nil {
		return api.VaultResponse{}, err
	}
	crypto.Zero(vk)
	return c.CreateVault(ctx, api.CreateVaultRequest{Name: name, Wrapped: keyring.DirectWrap(wrap)})
}

// UnwrapOwnVaultKey fetches and opens the caller's wrapped copy of a vault
// key. The caller zeroes the result.
func (c *Client) UnwrapOwnVaultKey(ctx context.Context, me api.MeResponse, master []byte, vaultID string) ([]byte, error) {
	grant, err := c.VaultKey(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if grant.Wrapped.Direct != nil {
		return grant.Wrapped.Unwrap(master, nil)
	}
	priv, err := keyring.OpenPrivateKey(me.PrivateKeyWrap, master)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(priv)
	return grant.Wrapped.Unwrap(nil, priv)
}

// ShareVault wraps the vault key for a recipient under the pairwise exchange
// key and grants them access. Only the vault owner can grant.
func (c *Client) ShareVault(ctx context.Context, me api.MeResponse, master []byte, vaultID, recipient string) error {
	vk, err := c.UnwrapOwnVaultKey(ctx, me, master, vaultID)
	if err != nil {
		return err
	}
	defer crypto.Zero(vk)

	their, err := c.PublicKey(ctx, recipient)
	if err != nil {
		return err
	}
	priv, err := keyring.OpenPrivateKey(me.PrivateKeyWrap, master)
	if err != nil {
		return err
	}
	env, err := keyring.WrapVaultKeyForUser(vk, priv, their.PublicKey)
	crypto.Zero(priv)
	if err != nil {
		return err
	}
	return c.GrantVaultKey(ctx, vaultID, recipient, api.VaultKeyGrant{
		VaultID:  vaultID,
		Username: recipient,
		Wrapped:  keyring.SharedVaultKeyWrap(env, me.PublicKey),
	})
}

// SetSecret encrypts and writes the next version of a secret.
func (c *Client) SetSecret(ctx context.Context, vaultKey []byte, vaultID, name string, value []byte, version int) (api.SecretResponse, error) {
	env, err := keyring.EncryptSecret(value, vaultKey, name)
	if err != nil {
		return api.SecretResponse{}, err
	}
	return c.PutSecret(ctx, vaultID, name, api.PutSecretRequest{Version: version, Envelope: env})
}

// ReadSecret fetches and decrypts the current version of a secret.
func (c *Client) ReadSecret(ctx context.Context, vaultKey []byte, vaultID, name string) ([]byte, int, error) {
	resp, err := c.GetSecret(ctx, vaultID, name)
	if err != nil {
		return nil, 0, err
	}
	pt, err := keyring.DecryptSecret(resp.Envelope, vaultKey, name)
	if err != nil {
		return nil, 0, fmt.Errorf("secret %s: %w", name, err)
	}
	return pt, resp.Version, nil
}

// ReadSecretVersion fetches and decrypts one historical version.
func (c *Client) ReadSecretVersion(ctx context.Context, vaultKey []byte, vaultID, name string, version int) ([]byte, error) {
	resp, err := c.SecretVersion(ctx, vaultID, name, version)
	if err != nil {
		return nil, err
	}
	pt, err := keyring.DecryptSecret(resp.Envelope, vaultKey, name)
	if err != nil {
		return nil, fmt.Errorf("secret %s v%d: %w", name, version, err)
	}
	return pt, nil
}
