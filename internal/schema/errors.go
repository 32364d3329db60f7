package schema

import "fmt"

// ValidationError reports bad or missing input, or an illegal state
// transition. It is never retried.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// ConversionError means the canonical request cannot be expressed in a
// gateway's native format. It identifies the gateway and, where known, the
// offending field. Never retried.
type ConversionError struct {
	Gateway Gateway
	Field   string
	Message string
}

func NewConversionError(gateway Gateway, field, msg string) *ConversionError {
	return &ConversionError{Gateway: gateway, Field: field, Message: msg}
}

func (e *ConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: cannot convert field %q: %s", e.Gateway, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: conversion failed: %s", e.Gateway, e.Message)
}

// GatewayError wraps a remote operation failure, either non-retryable or
// after retries were exhausted. It carries the originating gateway and the
// original low-level error when available.
type GatewayError struct {
	Gateway Gateway
	Message string
	Err     error
}

func NewGatewayError(gateway Gateway, msg string, err error) *GatewayError {
	return &GatewayError{Gateway: gateway, Message: msg, Err: err}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AuthenticationError is raised by the transport's credential check before
// the core is invoked.
type AuthenticationError struct {
	Message string
}

func NewAuthenticationError(msg string) *AuthenticationError {
	return &AuthenticationError{Message: msg}
}

func (e *AuthenticationError) Error() string { return e.Message }
