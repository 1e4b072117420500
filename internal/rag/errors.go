package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the root of errors that need operator intervention.
	ErrConfiguration = errors.New("configuration error")
	// ErrInput is the root of errors caused by what the user provided.
	ErrInput = errors.New("input error")
	// ErrService is the root of errors returned by external services.
	ErrService = errors.New("external service error")
	// ErrConsistency is the root of errors that indicate an integration defect.
	ErrConsistency = errors.New("consistency error")
)

var (
	// ErrMissingCredential is returned when no API credential is configured.
	ErrMissingCredential = fmt.Errorf("%w: missing API credential", ErrConfiguration)

	// ErrNoDocuments is returned when processing is requested without documents.
	ErrNoDocuments = fmt.Errorf("%w: no documents provided", ErrInput)
	// ErrNoTextFound is returned when none of the documents contains extractable text.
	ErrNoTextFound = fmt.Errorf("%w: no extractable text found", ErrInput)
	// ErrEmptyCorpus is returned when an index is built from zero chunks.
	ErrEmptyCorpus = fmt.Errorf("%w: empty corpus", ErrInput)
	// ErrNotReady is returned when a question is asked before any documents were processed.
	ErrNotReady = fmt.Errorf("%w: no documents indexed yet", ErrInput)
	// ErrNotFound is returned when a requested session does not exist.
	ErrNotFound = fmt.Errorf("%w: not found", ErrInput)

	// ErrIndexNotBuilt is returned when searching an index that holds no vectors.
	ErrIndexNotBuilt = fmt.Errorf("%w: index not built", ErrConsistency)

	// ErrEmbeddingService marks failures of the embedding service.
	ErrEmbeddingService = fmt.Errorf("%w: embedding", ErrService)
	// ErrGeneration marks failures of the language-generation service.
	ErrGeneration = fmt.Errorf("%w: generation", ErrService)
)

// Reason classifies a ServiceError.
type Reason string

const (
	ReasonAuth        Reason = "auth"
	ReasonRateLimit   Reason = "rate_limit"
	ReasonTimeout     Reason = "timeout"
	ReasonNetwork     Reason = "network"
	ReasonBadResponse Reason = "bad_response"
	ReasonUnknown     Reason = "unknown"
)

// Service names used in ServiceError.
const (
	ServiceEmbedding  = "embedding"
	ServiceGeneration = "generation"
)

// ServiceError is returned when a call to the embedding or generation service fails.
type ServiceError struct {
	Service    string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service failed (%s, status %d): %v", e.Service, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s service failed (%s): %v", e.Service, e.Reason, e.Err)
}

// Unwrap exposes both the service sentinel and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	sentinel := ErrService
	switch e.Service {
	case ServiceEmbedding:
		sentinel = ErrEmbeddingService
	case ServiceGeneration:
		sentinel = ErrGeneration
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// Retryable reports whether repeating the same call may succeed.
func (e *ServiceError) Retryable() bool {
	switch e.Reason {
	case ReasonRateLimit, ReasonTimeout, ReasonNetwork:
		return true
	}
	return false
}

// DimensionMismatchError is returned when a vector's length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrConsistency }

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInput }

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Kind is the error category used by front-ends to pick a presentation.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindInput
	KindService
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInput:
		return "input"
	case KindService:
		return "service"
	case KindConsistency:
		return "consistency"
	}
	return "unknown"
}

// KindOf returns the category of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrService):
		return KindService
	case errors.Is(err, ErrConsistency):
		return KindConsistency
	}
	return KindUnknown
}
