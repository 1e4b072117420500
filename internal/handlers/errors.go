package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is the error category: configuration, input, service or consistency.
	Kind string `json:"kind,omitempty"`
	// Retryable is set for service failures that may succeed when repeated.
	Retryable bool `json:"retryable,omitempty"`
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	kind := rag.KindOf(err)

	var validationErr *rag.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation error", "error", err)
		writeError(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Validation error: %s", validationErr.Error()),
			Kind:  kind.String(),
		})
		return
	}

	if errors.Is(err, rag.ErrNotFound) {
		logger.WarnContext(ctx, "resource not found", "error", err)
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "Session not found", Kind: kind.String()})
		return
	}

	if errors.Is(err, rag.ErrNotReady) {
		logger.WarnContext(ctx, "session not ready", "error", err)
		writeError(w, http.StatusConflict, ErrorResponse{
			Error: "No documents processed yet; upload documents first",
			Kind:  kind.String(),
		})
		return
	}

	if errors.Is(err, rag.ErrInput) {
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: kind.String()})
		return
	}

	var svcErr *rag.ServiceError
	if errors.As(err, &svcErr) {
		logger.ErrorContext(ctx, "external service error",
			"service", svcErr.Service,
			"reason", svcErr.Reason,
			"status_code", svcErr.StatusCode,
			"error", err,
		)
		status := http.StatusBadGateway
		switch svcErr.Reason {
		case rag.ReasonRateLimit:
			status = http.StatusTooManyRequests
		case rag.ReasonTimeout:
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, ErrorResponse{
			Error:     fmt.Sprintf("External %s service error (%s)", svcErr.Service, svcErr.Reason),
			Kind:      kind.String(),
			Retryable: svcErr.Retryable(),
		})
		return
	}

	logger.ErrorContext(ctx, "service error", "kind", kind.String(), "error", err)
	if errors.Is(err, rag.ErrConfiguration) {
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "Server is not configured correctly", Kind: kind.String()})
		return
	}

	// Default to internal server error
	writeError(w, http.StatusInternalServerError, ErrorResponse{Error: defaultMsg, Kind: kind.String()})
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
