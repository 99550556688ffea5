package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"zkvault/internal/api"
	"zkvault/internal/auth"
	"zkvault/internal/crypto"
	"zkvault/internal/storage"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rlSignupIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}

	var req api.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}
	if req.LoginKey == "" {
		http.Error(w, "login key required", http.StatusBadRequest)
		return
	}
	if err := validateEnrollment(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashLogin(auth.DefaultLogin, req.LoginKey)
	if err != nil {
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}

	rec := storage.UserRecord{
		Username:       req.Username,
		PassHash:       hash,
		Salt:           req.Salt,
		KDF:            req.KDF,
		PublicKey:      req.PublicKey,
		PrivateKeyWrap: req.PrivateKeyWrap,
		RecoveryWrap:   req.RecoveryWrap,
	}
	if err := s.store.AddUser(r.Context(), rec); err != nil {
		if errors.Is(err, storage.ErrExists) {
			http.Error(w, "username already exists", http.StatusConflict)
			return
		}
		s.logger.Printf("signup %s: %v", req.Username, err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	s.audit.Appendf("signup %s", req.Username)
	w.WriteHeader(http.StatusCreated)
}

func validateEnrollment(req api.SignupRequest) error {
	if len(req.Salt) < crypto.MinSaltSize || len(req.Salt) > crypto.MaxSaltSize {
		return errors.New("bad salt length")
	}
	if len(req.PublicKey) != 32 {
		return errors.New("public key must be 32 bytes")
	}
	if err := req.PrivateKeyWrap.Validate(); err != nil {
		return errors.New("bad private key wrap")
	}
	if err := req.RecoveryWrap.Validate(); err != nil {
		return errors.New("bad recovery wrap")
	}
	return nil
}

func (s *Server) handlePrelogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rlPrelogin.allow(getClientIP(r)) {
		tooMany(w, 30)
		return
	}

	var req api.PreloginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetUser(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	writeJSON(w, api.PreloginResponse{
		Salt:         rec.Salt,
		KDF:          rec.KDF,
		RecoveryWrap: rec.RecoveryWrap,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rlLoginIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.LoginKey == "" {
		http.Error(w, "username and login key required", http.StatusBadRequest)
		return
	}
	if !s.rlLoginID.allow(username) {
		tooMany(w, 60)
		return
	}

	rec, err := s.store.GetUser(r.Context(), username)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	ok, err := auth.VerifyLogin(req.LoginKey, rec.PassHash)
	if err != nil || !ok {
		s.audit.Appendf("login failure %s", username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	tok, exp, err := s.signer.IssueToken(username)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	s.audit.Appendf("login %s", username)
	writeJSON(w, api.LoginResponse{Token: tok, ExpiresAt: exp})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	rec, err := s.store.GetUser(r.Context(), claims.Sub)
	if err != nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	writeJSON(w, api.MeResponse{
		Username:       rec.Username,
		Salt:           rec.Salt,
		KDF:            rec.KDF,
		PublicKey:      rec.PublicKey,
		PrivateKeyWrap: rec.PrivateKeyWrap,
		RecoveryWrap:   rec.RecoveryWrap,
	})
}

// handleUserPublicKey serves GET /api/users/{username}/key so a member can
// wrap a vault key for a recipient they have never talked to directly.
func (s *Server) handleUserPublicKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	username, ok := strings.CutSuffix(rest, "/key")
	if !ok || username == "" || strings.Contains(username, "/") {
		http.NotFound(w, r)
		return
	}
	rec, err := s.store.GetUser(r.Context(), username)
	if err != nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	writeJSON(w, api.PublicKeyResponse{Username: rec.Username, PublicKey: rec.PublicKey})
}

// handleUpdateCredentials lands a password change or a recovery: the client
// re-rooted its hierarchy locally and pushes the new credential material plus
// its re-wrapped direct vault keys.
func (s *Server) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req api.UpdateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.LoginKey == "" {
		http.Error(w, "login key required", http.StatusBadRequest)
		return
	}
	if len(req.Salt) < crypto.MinSaltSize || len(req.Salt) > crypto.MaxSaltSize {
		http.Error(w, "bad salt length", http.StatusBadRequest)
		return
	}
	if req.PrivateKeyWrap.Validate() != nil || req.RecoveryWrap.Validate() != nil {
		http.Error(w, "bad credential wraps", http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetUser(r.Context(), claims.Sub)
	if err != nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}

	// Every entry is checked before anything is written: a rejected request
	// must leave the old password and the old wraps fully usable.
	keys := make([]storage.VaultKeyRecord, 0, len(req.VaultKeys))
	for _, vk := range req.VaultKeys {
		if vk.Username != claims.Sub {
			http.Error(w, "vault keys must belong to caller", http.StatusForbidden)
			return
		}
		if err := vk.Wrapped.Validate(); err != nil {
			http.Error(w, "bad vault key wrap", http.StatusBadRequest)
			return
		}
		if _, err := s.store.GetVaultKey(r.Context(), vk.VaultID, claims.Sub); err != nil {
			http.Error(w, "not a member of vault "+vk.VaultID, http.StatusForbidden)
			return
		}
		keys = append(keys, storage.VaultKeyRecord{
			VaultID:  vk.VaultID,
			Username: vk.Username,
			Wrapped:  vk.Wrapped,
		})
	}

	hash, err := auth.HashLogin(auth.DefaultLogin, req.LoginKey)
	if err != nil {
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}

	rec.PassHash = hash
	rec.Salt = req.Salt
	rec.KDF = req.KDF
	rec.PrivateKeyWrap = req.PrivateKeyWrap
	rec.RecoveryWrap = req.RecoveryWrap
	if err := s.store.ReplaceCredentials(r.Context(), rec, keys); err != nil {
		s.logger.Printf("update credentials %s: %v", claims.Sub, err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	s.audit.Appendf("credentials updated %s", claims.Sub)
	writeJSON(w, map[string]any{"updated": true})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := auth.MustClaims(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := s.audit.Verify(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.audit.Entries())
}
