/*
Package middleware provides error handling utilities and structured error responses.
*/
package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/client"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeExternalAPI        ErrorCode = "EXTERNAL_API_ERROR"
	ErrCodeSubmission         ErrorCode = "SUBMISSION_ERROR"
	ErrCodeTaskFailed         ErrorCode = "TASK_FAILED"
	ErrCodeEmptyResults       ErrorCode = "EMPTY_RESULTS"
	ErrCodeProtocol           ErrorCode = "PROTOCOL_ERROR"
)

// APIError represents a structured error response
type APIError struct {
	Error     ErrorCode `json:"error"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ErrorHandler provides structured error responses
func ErrorHandler(w http.ResponseWriter, err error, code ErrorCode, statusCode int, requestID string) {
	apiErr := APIError{
		Error:     code,
		Message:   getErrorMessage(code),
		Details:   err.Error(),
		RequestID: requestID,
		Timestamp: getCurrentTimestamp(),
	}

	fields := logrus.Fields{
		"error_code":  code,
		"status_code": statusCode,
		"request_id":  requestID,
		"error":       err.Error(),
	}
	if statusCode >= http.StatusInternalServerError {
		Logger.WithFields(fields).Error("API error occurred")
	} else {
		Logger.WithFields(fields).Warn("API error occurred")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr)
}

// getErrorMessage returns a user-friendly message for each error code
func getErrorMessage(code ErrorCode) string {
	switch code {
	case ErrCodeBadRequest:
		return "The request is invalid or malformed"
	case ErrCodeNotFound:
		return "The requested resource was not found"
	case ErrCodeConflict:
		return "The request conflicts with the current state"
	case ErrCodeRateLimited:
		return "Rate limit exceeded. Please try again later"
	case ErrCodeInternalError:
		return "An internal server error occurred"
	case ErrCodeServiceUnavailable:
		return "The service is temporarily unavailable"
	case ErrCodeValidation:
		return "Request validation failed"
	case ErrCodeExternalAPI:
		return "Failed to communicate with the scraping backend"
	case ErrCodeSubmission:
		return "The scraping task could not be created"
	case ErrCodeTaskFailed:
		return "The scraping task failed"
	case ErrCodeEmptyResults:
		return "The task completed without results"
	case ErrCodeProtocol:
		return "The scraping backend returned an unexpected response"
	default:
		return "An unknown error occurred"
	}
}

// getCurrentTimestamp returns the current unix timestamp
func getCurrentTimestamp() string {
	return fmt.Sprintf("%d", time.Now().Unix())
}

// ClassifyError maps a lifecycle or transport error to an error code and
// HTTP status.
func ClassifyError(err error) (ErrorCode, int) {
	if errors.Is(err, lifecycle.ErrCoordinatorClosed) {
		return ErrCodeServiceUnavailable, http.StatusServiceUnavailable
	}
	switch types.KindOf(err) {
	case types.KindValidation:
		return ErrCodeValidation, http.StatusBadRequest
	case types.KindSubmission:
		return ErrCodeSubmission, http.StatusBadGateway
	case types.KindTaskFailed:
		return ErrCodeTaskFailed, http.StatusUnprocessableEntity
	case types.KindEmptyResults:
		return ErrCodeEmptyResults, http.StatusNotFound
	case types.KindProtocol:
		return ErrCodeProtocol, http.StatusBadGateway
	}
	if client.IsNotFound(err) {
		return ErrCodeNotFound, http.StatusNotFound
	}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) || types.KindOf(err) != types.KindUnknown {
		return ErrCodeExternalAPI, http.StatusBadGateway
	}
	return ErrCodeInternalError, http.StatusInternalServerError
}

// RespondError answers with the code and status ClassifyError picks
func RespondError(w http.ResponseWriter, err error, requestID string) {
	code, status := ClassifyError(err)
	ErrorHandler(w, err, code, status, requestID)
}

// Common error response helpers
func RespondBadRequest(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeBadRequest, http.StatusBadRequest, requestID)
}

func RespondNotFound(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeNotFound, http.StatusNotFound, requestID)
}

func RespondConflict(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeConflict, http.StatusConflict, requestID)
}

func RespondRateLimited(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeRateLimited, http.StatusTooManyRequests, requestID)
}

func RespondInternalError(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeInternalError, http.StatusInternalServerError, requestID)
}

func RespondServiceUnavailable(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeServiceUnavailable, http.StatusServiceUnavailable, requestID)
}

func RespondValidationError(w http.ResponseWriter, err error, requestID string) {
	ErrorHandler(w, err, ErrCodeValidation, http.StatusBadRequest, requestID)
}
