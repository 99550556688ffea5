package server

import "net/http"

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/prelogin", s.handlePrelogin)
	s.mux.HandleFunc("/api/login", s.handleLogin)

	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/credentials", s.handleUpdateCredentials)
	s.mux.HandleFunc("/api/users/", s.handleUserPublicKey)

	s.mux.HandleFunc("/api/keys", s.handleMyKeys)
	s.mux.HandleFunc("/api/vaults", s.handleVaults)
	s.mux.HandleFunc("/api/vaults/", s.handleVaultSubtree)

	s.mux.HandleFunc("/api/audit", s.handleAudit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
