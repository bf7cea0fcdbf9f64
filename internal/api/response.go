package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"servicehealth/internal/types"
)

// APIErrorResponse is the error envelope.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the error returned to clients.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// JSON writes data with the given status. A marshal failure becomes a 500.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. Only AppError messages are
// exposed; anything else is reported generically.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		status = statusFor(appErr.Code)
	}
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// statusFor maps an error code to an HTTP status.
func statusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrCodeMalformedInput:
		return http.StatusBadRequest
	case types.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case types.ErrCodeUpstreamQueryFailed, types.ErrCodeUpstreamUnavailable, types.ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	case types.ErrCodeConfigurationMissing:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
