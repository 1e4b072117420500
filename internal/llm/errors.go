package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/rag"
)

// classify converts an API client error into a rag.ServiceError.
func classify(service string, err error) *rag.ServiceError {
	svcErr := &rag.ServiceError{Service: service, Reason: rag.ReasonUnknown, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		svcErr.Reason = rag.ReasonTimeout
	case errors.As(err, &apiErr):
		svcErr.StatusCode = apiErr.HTTPStatusCode
		svcErr.Reason = reasonForStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		svcErr.StatusCode = reqErr.HTTPStatusCode
		svcErr.Reason = reasonForStatus(reqErr.HTTPStatusCode)
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			svcErr.Reason = rag.ReasonTimeout
		} else {
			svcErr.Reason = rag.ReasonNetwork
		}
	}
	return svcErr
}

func reasonForStatus(code int) rag.Reason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return rag.ReasonAuth
	case code == http.StatusTooManyRequests:
		return rag.ReasonRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return rag.ReasonTimeout
	case code >= http.StatusInternalServerError:
		return rag.ReasonNetwork
	}
	return rag.ReasonUnknown
}
