package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	http.Error(w, "too many requests", http.StatusTooManyRequests)
}

var (
	reUsername = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,62}$`)
	reName     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,127}$`)
)

func validUsername(u string) bool {
	return reUsername.MatchString(u)
}

// validName covers vault and secret names. Names are part of the AAD the
// clients bind envelopes to, so the charset stays conservative.
func validName(n string) bool {
	return reName.MatchString(n)
}
