package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

const maxRequestBody = 1 << 20

// ErrorBody is the payload of every error response in the system.
type ErrorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Status  int              `json:"status"`
	Service string           `json:"service"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

func WriteEnvelope(w http.ResponseWriter, body ErrorBody) {
	WriteJSON(w, body.Status, ErrorEnvelope{Error: body})
}

// Responder renders domain errors as envelopes tagged with the service name.
type Responder struct {
	Service string
	Logger  logger.Logger
}

func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := kind.HTTPStatus()

	fields := map[string]interface{}{
		"kind":   kind,
		"status": status,
		"path":   r.URL.Path,
		"error":  err.Error(),
	}
	switch kind {
	case domain.KindInternal:
		rs.Logger.ErrorContext(r.Context(), "Request failed", fields)
	case domain.KindDependencyUnavailable:
		rs.Logger.WarnContext(r.Context(), "Dependency unavailable", fields)
	default:
		rs.Logger.DebugContext(r.Context(), "Request rejected", fields)
	}

	WriteEnvelope(w, ErrorBody{
		Kind:    kind,
		Message: domain.MessageOf(err),
		Status:  status,
		Service: rs.Service,
	})
}

// NotFoundHandler answers unmatched routes with a NotFound envelope.
func (rs Responder) NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.Error(w, r, domain.NotFound("no route for %s %s", r.Method, r.URL.Path))
	})
}

// DecodeJSON reads a JSON request body into dst. Any decoding failure is
// InvalidInput; validation messages raised by field decoders are kept.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return de
		}
		if errors.Is(err, io.EOF) {
			return domain.InvalidInput("request body must be a JSON object")
		}
		return domain.WrapError(domain.KindInvalidInput, err, "invalid JSON body")
	}
	return nil
}

// PathID parses a positive integer path parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidInput("%s must be an integer", name)
	}
	return n, nil
}
