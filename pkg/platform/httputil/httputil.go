package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "signinguard/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the JSON error envelope. Internal errors never
// leak their description.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "")
	}
	status := dErrors.ToHTTPStatus(de.Code)
	body := errorBody{Error: string(de.Code)}
	if status < http.StatusInternalServerError {
		body.ErrorDescription = de.Message
	}
	WriteJSON(w, status, body)
}
