package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/middleware/auth"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and error responses.
func WriteError(w http.ResponseWriter, err error) {
	// Try domain error first
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		code := DomainCodeToHTTPCode(domainErr.Code)
		response := map[string]string{
			"error": code,
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodePassNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation,
		dErrors.CodeInvalidTier, dErrors.CodeInvalidCollection, dErrors.CodeInvalidScore, dErrors.CodeContentTooLong:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodePassAlreadyActive, dErrors.CodeEditionOverflow:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodePassExpired:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeTierTooLow, dErrors.CodeMintingNotOpen:
		return http.StatusForbidden
	case dErrors.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RequirePrincipal extracts the authenticated principal from context.
// Returns a domain error suitable for HTTP response on failure.
func RequirePrincipal(ctx context.Context, logger *slog.Logger, requestID string) (id.PrincipalID, error) {
	principal := auth.GetPrincipal(ctx)
	if principal.IsNil() {
		if logger != nil {
			logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
				"request_id", requestID)
		}
		return id.PrincipalID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return principal, nil
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
// Pass error kinds are exposed verbatim.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeRateLimited:
		return "rate_limited"
	case dErrors.CodeInvalidTier, dErrors.CodeInsufficientFunds, dErrors.CodeInvalidScore,
		dErrors.CodeInvalidCollection, dErrors.CodePassAlreadyActive, dErrors.CodePassExpired,
		dErrors.CodePassNotFound, dErrors.CodeTierTooLow, dErrors.CodeContentTooLong,
		dErrors.CodeMintingNotOpen, dErrors.CodeEditionOverflow:
		return string(code)
	default:
		return "internal_error"
	}
}
