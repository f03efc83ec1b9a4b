// Package httputil holds the JSON request/response helpers shared by all
// HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"veripass/pkg/domainerr"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and body. Internal and
// unavailable errors never leak their message to the client; client-caused
// errors include it as error_description.
func WriteError(w http.ResponseWriter, err error) {
	var derr *domainerr.Error
	if !errors.As(err, &derr) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
		return
	}

	switch derr.Code {
	case domainerr.CodeBadRequest:
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Description: derr.Message})
	case domainerr.CodeUnauthorized:
		WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Description: derr.Message})
	case domainerr.CodeForbidden:
		WriteJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Description: derr.Message})
	case domainerr.CodeNotFound:
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Description: derr.Message})
	case domainerr.CodeConflict:
		WriteJSON(w, http.StatusConflict, errorBody{Error: "conflict", Description: derr.Message})
	case domainerr.CodeUnavailable:
		WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domainerr.New(domainerr.CodeBadRequest, "invalid request body")
	}
	return nil
}
