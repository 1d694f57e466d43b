package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwbudde/vkprobe/internal/vk"
)

// errorBody is the JSON payload for failed requests.
type errorBody struct {
	Error  string `json:"error"`
	Op     string `json:"op,omitempty"`
	Result string `json:"result,omitempty"`
	Code   int32  `json:"code,omitempty"`
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeQueryError maps a capture failure to an HTTP error response. Driver
// query failures become 502 carrying the failing op and status symbol.
func writeQueryError(w http.ResponseWriter, err error) {
	var qerr *vk.QueryError
	if errors.As(err, &qerr) {
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:  qerr.Error(),
			Op:     qerr.Op,
			Result: qerr.Result.String(),
			Code:   int32(qerr.Result),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}
