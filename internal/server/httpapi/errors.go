package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/services"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid JSON body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k services.Kind) int {
	switch k {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": message, ...details}. The wrapped
// cause of a 5xx is logged. Dependency errors also carry the cause text in
// their details, which is sent like any other detail.
func writeError(w http.ResponseWriter, r *http.Request, l logging.Logger, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		l.Error(r.Context(), "unclassified error", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}

	status := statusFor(se.Kind)
	if status >= 500 && se.Err != nil {
		l.Error(r.Context(), se.Message, "error", se.Err, "request_id", RequestIDFromContext(r.Context()))
	}

	body := make(map[string]any, len(se.Details)+1)
	for k, v := range se.Details {
		body[k] = v
	}
	body["error"] = se.Message
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

// decodeJSON reads a single JSON object from the body. An empty body
// decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidJSON
	}
	return nil
}
