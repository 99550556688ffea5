// Package server is the ciphertext side of the system. Every handler moves
// envelopes, public keys, salts, KDF parameters, and version numbers; none
// accepts or returns a plaintext key or secret value. Decryption happens in
// the clients.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"zkvault/internal/audit"
	"zkvault/internal/auth"
	"zkvault/internal/storage"
)

type Server struct {
	cfg Config

	mux    *http.ServeMux
	signer *auth.JWTSigner
	store  storage.Store
	audit  *audit.Log
	logger *log.Logger

	rlLoginIP  *multiLimiter
	rlLoginID  *multiLimiter
	rlPrelogin *multiLimiter
	rlSignupIP *multiLimiter
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	cfg.setDefaults()

	var store storage.Store
	if cfg.InMemory {
		store = storage.NewMemoryStore()
	} else {
		if cfg.MongoURI == "" {
			return nil, errors.New("server: MongoURI required")
		}
		ms, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		store = ms
	}

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		signer: auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		store:  store,
		audit:  audit.New(),
		logger: log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile),
	}

	s.rlLoginIP = newMultiLimiter(perWindow(10, time.Minute), 10, 1*time.Hour)
	s.rlLoginID = newMultiLimiter(perWindow(5, time.Minute), 5, 1*time.Hour)
	s.rlPrelogin = newMultiLimiter(perWindow(20, time.Minute), 20, 30*time.Minute)
	s.rlSignupIP = newMultiLimiter(perWindow(5, 10*time.Minute), 5, 1*time.Hour)

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") && !s.isPublic(path) {
		auth.Required(s.signer)(s.mux).ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s
}

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/signup", "/api/login", "/api/prelogin":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}
