package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/platform/httpx"
)

const defaultMaxBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and strictly decodes a JSON body. A non-nil httpx.Error is ready to write.
func decodeJSONBody(r *http.Request, limit int64, dst any) *httpx.Error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		var e httpx.Error
		switch {
		case errors.Is(err, errBodyTooLarge):
			e = httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge)
		case errors.Is(err, errEmptyBody):
			e = httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
		default:
			e = httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest)
		}
		return &e
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		e := httpx.NewError("invalid_json", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest)
		return &e
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeValidationError reports per-field wizard validation messages as a 422.
func writeValidationError(ctx context.Context, w http.ResponseWriter, err error) bool {
	var verrs builder.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "some fields need attention", http.StatusUnprocessableEntity).WithFields(map[string]string(verrs)))
	return true
}
