package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ErrorBody is the JSON error shape shared by every endpoint.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError writes an ErrorBody with code.
func WriteError(w http.ResponseWriter, code int, errCode, desc string) {
	WriteJSON(w, code, ErrorBody{Error: errCode, Description: desc})
}

// WriteBearerChallenge writes an RFC 6750 401. An empty errCode produces a
// bare challenge, which is what a request without credentials gets.
func WriteBearerChallenge(w http.ResponseWriter, errCode, desc string) {
	challenge := "Bearer"
	if errCode != "" {
		challenge += ` error="` + errCode + `"`
		if desc != "" {
			challenge += `, error_description="` + desc + `"`
		}
	}
	w.Header().Set("WWW-Authenticate", challenge)
	if errCode == "" {
		errCode = "unauthorized"
	}
	WriteError(w, http.StatusUnauthorized, errCode, desc)
}
