// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a gateway failure. Values are safe to use as metric
// labels.
type ErrorKind string

// Gateway failure kinds.
const (
	KindAuth          ErrorKind = "auth"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
	KindRateLimit     ErrorKind = "rate_limit"
	KindServer        ErrorKind = "server"
	KindNetwork       ErrorKind = "network"
	KindMalformed     ErrorKind = "malformed"
	KindEmptyResponse ErrorKind = "empty_response"
	KindConfig        ErrorKind = "config"
	KindUnknown       ErrorKind = "unknown"
)

// GatewayError is the transport failure signal returned by every Gateway.
//
// Description:
//
//	Wraps the underlying cause with the provider name, a coarse kind and,
//	when known, the HTTP status. Callers treat every GatewayError the same
//	way (no answer); the kind exists for logs and metrics.
type GatewayError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements error. The provider prefix mirrors the "anthropic: ..."
// convention used across the clients.
func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error { return e.Err }

// newGatewayError builds a GatewayError, classifying err when kind is empty.
func newGatewayError(provider string, kind ErrorKind, msg string, err error) *GatewayError {
	if kind == "" {
		kind = ClassifyError(err)
	}
	return &GatewayError{Provider: provider, Kind: kind, Message: msg, Err: err}
}

// kindForStatus maps an HTTP status code to an ErrorKind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindConfig
	default:
		return KindMalformed
	}
}

// ClassifyError maps an error to a label-safe ErrorKind.
//
// Description:
//
//	A *GatewayError reports its own kind. Otherwise context and network
//	errors are recognized structurally, and anything left is classified by
//	message text so that errors from third-party SDKs still land in a
//	useful bucket.
//
// Inputs:
//
//	err - The error to classify. May be nil.
//
// Outputs:
//
//	ErrorKind - The classification. Empty for a nil error.
//
// Thread Safety: Safe for concurrent use.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind != "" {
		return gwErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "security token") ||
		strings.Contains(msg, "api key") ||
		strings.Contains(msg, "credentials"):
		return KindAuth
	case strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "throttl"):
		return KindRateLimit
	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset"):
		return KindNetwork
	case strings.Contains(msg, "internal error") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "unavailable"):
		return KindServer
	default:
		return KindUnknown
	}
}
