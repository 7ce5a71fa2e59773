package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func conflict(message string, details any) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, details)
}

func invalidArgument(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_ARGUMENT", message, nil)
}

func configError(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "CONFIG_ERROR", message, nil)
}

func unauthorized(message string) *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}
