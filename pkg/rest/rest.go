package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrInvalidBody = errors.New("invalid request body")

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ReadJSON decodes the request body into dst, rejecting unknown fields
// and trailing data.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: body must not be empty", ErrInvalidBody)
		}

		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON value", ErrInvalidBody)
	}

	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, resp *ErrorResponse) error {
	return WriteJSON(w, status, map[string]any{"error": resp})
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. It returns an empty string when there is none.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
