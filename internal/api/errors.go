// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the conversation service client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches another ClientError by Type so the sentinels below work with
// errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeMalformedPayload
	ErrTypeProtocol
	ErrTypeCanceled
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeMalformedPayload:
		return "malformed_payload"
	case ErrTypeProtocol:
		return "protocol"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrConnection       = &ClientError{Type: ErrTypeConnection, Message: "conversation service unreachable"}
	ErrTimeout          = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrStatus           = &ClientError{Type: ErrTypeStatus, Message: "unexpected status"}
	ErrMalformedPayload = &ClientError{Type: ErrTypeMalformedPayload, Message: "malformed payload"}
	ErrProtocol         = &ClientError{Type: ErrTypeProtocol, Message: "protocol violation"}
	ErrCanceled         = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// transportError classifies an error returned by http.Client.Do.
func transportError(ctx context.Context, err error) *ClientError {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "conversation service unreachable", Cause: err}
}

func typeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsTransient reports a network failure: unreachable service, timeout or
// non-2xx status.
func IsTransient(err error) bool {
	switch typeOf(err) {
	case ErrTypeConnection, ErrTypeTimeout, ErrTypeStatus:
		return true
	}
	return false
}

// IsMalformed reports a payload that could not be decoded.
func IsMalformed(err error) bool {
	return typeOf(err) == ErrTypeMalformedPayload
}

// IsProtocol reports a response that violated the wire contract.
func IsProtocol(err error) bool {
	return typeOf(err) == ErrTypeProtocol
}

// IsCanceled reports a request abandoned by its caller.
func IsCanceled(err error) bool {
	return typeOf(err) == ErrTypeCanceled
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
