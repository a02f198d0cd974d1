package handler

import (
	"encoding/json"
	"net/http"
)

// GenerateRequest is the body of POST /generate. Unknown keys are ignored.
type GenerateRequest struct {
	Message string `json:"message"`
}

// GenerateResponse is returned on success.
type GenerateResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is returned on any failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client-facing error messages.
const (
	MsgMessageRequired  = "Message is required"
	MsgInvalidJSON      = "Invalid JSON body"
	MsgBodyTooLarge     = "Request body too large"
	MsgGenerationFailed = "Failed to generate content"
)

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}
