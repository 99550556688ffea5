// Package client is the HTTP side of the engine: a thin, typed wrapper over
// the server API. It moves ciphertext and metadata only; all key derivation
// and decryption stays with the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"zkvault/internal/api"
	"zkvault/internal/audit"
)

var (
	ErrUnauthorized    = errors.New("client: unauthorized")
	ErrNotFound        = errors.New("client: not found")
	ErrConflict        = errors.New("client: conflict")
	ErrForbidden       = errors.New("client: forbidden")
	ErrTooManyRequests = errors.New("client: rate limited")
)

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token for subsequent authenticated calls.
func (c *Client) SetToken(tok string) { c.token = tok }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := statusErr(resp.StatusCode)
		return fmt.Errorf("%w: %s %s: %s", err, method, path, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusErr(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	default:
		return fmt.Errorf("client: http %d", code)
	}
}

func (c *Client) Signup(ctx context.Context, req api.SignupRequest) error {
	return c.do(ctx, http.MethodPost, "/api/signup", req, nil)
}

func (c *Client) Prelogin(ctx context.Context, username string) (api.PreloginResponse, error) {
	var out api.PreloginResponse
	err := c.do(ctx, http.MethodPost, "/api/prelogin", api.PreloginRequest{Username: username}, &out)
	return out, err
}

// Login exchanges the login key for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, username, loginKey string) (api.LoginResponse, error) {
	var out api.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", api.LoginRequest{Username: username, LoginKey: loginKey}, &out)
	if err == nil {
		c.token = out.Token
	}
	return out, err
}

func (c *Client) Me(ctx context.Context) (api.MeResponse, error) {
	var out api.MeResponse
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &out)
	return out, err
}

func (c *Client) PublicKey(ctx context.Context, username string) (api.PublicKeyResponse, error) {
	var out api.PublicKeyResponse
	err := c.do(ctx, http.MethodGet, "/api/users/"+username+"/key", nil, &out)
	return out, err
}

func (c *Client) UpdateCredentials(ctx context.Context, req api.UpdateCredentialsRequest) error {
	return c.do(ctx, http.MethodPut, "/api/credentials", req, nil)
}

func (c *Client) MyKeys(ctx context.Context) ([]api.VaultKeyGrant, error) {
	var out []api.VaultKeyGrant
	err := c.do(ctx, http.MethodGet, "/api/keys", nil, &out)
	return out, err
}

func (c *Client) CreateVault(ctx context.Context, req api.CreateVaultRequest) (api.VaultResponse, error) {
	var out api.VaultResponse
	err := c.do(ctx, http.MethodPost, "/api/vaults", req, &out)
	return out, err
}

func (c *Client) ListVaults(ctx context.Context) ([]api.VaultResponse, error) {
	var out []api.VaultResponse
	err := c.do(ctx, http.MethodGet, "/api/vaults", nil, &out)
	return out, err
}

func (c *Client) VaultKey(ctx context.Context, vaultID string) (api.VaultKeyGrant, error) {
	var out api.VaultKeyGrant
	err := c.do(ctx, http.MethodGet, "/api/vaults/"+vaultID+"/key", nil, &out)
	return out, err
}

func (c *Client) GrantVaultKey(ctx context.Context, vaultID, username string, grant api.VaultKeyGrant) error {
	return c.do(ctx, http.MethodPut, "/api/vaults/"+vaultID+"/keys/"+username, grant, nil)
}

func (c *Client) RevokeVaultKey(ctx context.Context, vaultID, username string) error {
	return c.do(ctx, http.MethodDelete, "/api/vaults/"+vaultID+"/keys/"+username, nil, nil)
}

func (c *Client) PutSecret(ctx context.Context, vaultID, name string, req api.PutSecretRequest) (api.SecretResponse, error) {
	var out api.SecretResponse
	err := c.do(ctx, http.MethodPut, "/api/vaults/"+vaultID+"/secrets/"+name, req, &out)
	return out, err
}

func (c *Client) GetSecret(ctx context.Context, vaultID, name string) (api.SecretResponse, error) {
	var out api.SecretResponse
	err := c.do(ctx, http.MethodGet, "/api/vaults/"+vaultID+"/secrets/"+name, nil, &out)
	return out, err
}

func (c *Client) ListSecrets(ctx context.Context, vaultID string) ([]api.SecretResponse, error) {
	var out []api.SecretResponse
	err := c.do(ctx, http.MethodGet, "/api/vaults/"+vaultID+"/secrets", nil, &out)
	return out, err
}

func (c *Client) SecretVersions(ctx context.Context, vaultID, name string) ([]api.SecretVersionResponse, error) {
	var out []api.SecretVersionResponse
	err := c.do(ctx, http.MethodGet, "/api/vaults/"+vaultID+"/secrets/"+name+"/versions", nil, &out)
	return out, err
}

func (c *Client) SecretVersion(ctx context.Context, vaultID, name string, version int) (api.SecretVersionResponse, error) {
	var out api.SecretVersionResponse
	err := c.do(ctx, http.MethodGet, "/api/vaults/"+vaultID+"/secrets/"+name+"/versions/"+strconv.Itoa(version), nil, &out)
	return out, err
}

func (c *Client) AuditLog(ctx context.Context) ([]audit.Entry, error) {
	var out []audit.Entry
	err := c.do(ctx, http.MethodGet, "/api/audit", nil, &out)
	return out, err
}
