// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrInvalidRequest indicates a malformed or incomplete inbound request.
var ErrInvalidRequest = errors.New("invalid request")

// ErrBackendUnreachable indicates the resolved backend could not be reached
// or answered with a non-success status.
var ErrBackendUnreachable = errors.New("backend unreachable")

// ErrBackendUnavailable indicates calls to the backend are being rejected
// locally because its circuit breaker is open.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrUpstreamTimeout indicates the backend accepted the request but did not
// produce a reply in time.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// ErrMalformedFrame indicates a backend stream line that could not be decoded.
// It is recovered locally and never surfaced to clients.
var ErrMalformedFrame = errors.New("malformed upstream frame")

// ErrClientDisconnected indicates the outbound connection failed mid-stream.
var ErrClientDisconnected = errors.New("client disconnected")
