// Package httputil provides JSON request and response helpers shared by the
// API handlers and middleware.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pixelmart/storefront/internal/errors"
)

// DecodeJSON decodes a request body into dst. Unknown fields are ignored so
// clients cannot smuggle values into fields the handler does not expose.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Code    errors.Code            `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteError translates err into the API error body. Errors outside the
// service taxonomy become a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal server error", err)
	}
	WriteJSON(w, se.HTTPStatus, map[string]interface{}{
		"error": errorBody{Code: se.Code, Message: se.Message, Details: se.Details},
	})
}
