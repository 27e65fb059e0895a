// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"fmt"
	"strings"
)

// Kind tags an Error with the broad category of failure.
type Kind uint8

// The error kinds the core can produce or classify.
const (
	KindRuntime Kind = iota
	KindInvalidOperation
	KindExpiredSession
	KindCompatibility
	KindTransaction
	KindNetwork
	KindServerError
	KindUnexpectedServerResponse
)

func (k Kind) String() string {
	switch k {
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindExpiredSession:
		return "ExpiredSession"
	case KindCompatibility:
		return "Compatibility"
	case KindTransaction:
		return "Transaction"
	case KindNetwork:
		return "Network"
	case KindServerError:
		return "ServerError"
	case KindUnexpectedServerResponse:
		return "UnexpectedServerResponse"
	default:
		return "Runtime"
	}
}

// Error labels the core reasons about. Labels are the only mechanism by
// which retryability crosses the wire.
const (
	LabelRetryableWriteError            = "RetryableWriteError"
	LabelTransientTransactionError      = "TransientTransactionError"
	LabelUnknownTransactionCommitResult = "UnknownTransactionCommitResult"
)

// Error is the core's tagged error value: one concrete struct rather
// than an interface with a switch over command-error variants, since
// the core doesn't need the full command error taxonomy that concrete
// operations (insert, find, ...) would need — that's out of scope here.
type Error struct {
	Kind    Kind
	Code    *int32
	Message string
	Labels  []string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("(%s) [%d] %s", e.Kind, *e.Code, e.Message)
	}
	return fmt.Sprintf("(%s) %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// HasErrorLabel reports whether this error carries the given label.
func (e *Error) HasErrorLabel(label string) bool {
	if e == nil {
		return false
	}
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// newNetworkError wraps a lower-level network error (e.g. from a
// connection round trip) in an *Error tagged KindNetwork with the
// NetworkError label, and layers on transaction-state labels when the
// session is mid-transaction.
func newNetworkError(cause error, inTransaction, committing bool) *Error {
	labels := []string{"NetworkError"}
	if inTransaction && !committing {
		labels = append(labels, LabelTransientTransactionError)
	}
	if committing {
		labels = append(labels, LabelUnknownTransactionCommitResult)
	}
	return &Error{
		Kind:    KindNetwork,
		Message: cause.Error(),
		Labels:  labels,
		Wrapped: cause,
	}
}

// isNetworkError reports whether err is itself a network-kind *Error; a
// network error wrapped inside another error is not detected.
func isNetworkError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindNetwork
}

// stateChangeCodes are the legacy (pre-label) server codes that indicate
// the server is no longer writable/readable because of a primary
// election or shutdown in progress. Sourced from the MongoDB retryable-
// reads/writes wire protocol conventions, which every driver for this
// database reproduces identically.
var stateChangeCodes = map[int32]bool{
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
	10107: true, // NotWritablePrimary
	13435: true, // NotPrimaryNoSecondaryOk
	13436: true, // NotPrimaryOrSecondary
	189:   true, // PrimarySteppedDown
	91:    true, // ShutdownInProgress
}

// legacyRetryableWriteCodes are the additional codes that mark a write
// retryable on servers below SUPPORTS_OP_MSG, which never attach the
// RetryableWriteError label themselves.
var legacyRetryableWriteCodes = map[int32]bool{
	11600: true,
	11602: true,
	10107: true,
	13435: true,
	13436: true,
	189:   true,
	91:    true,
	7:     true, // HostNotFound
	6:     true, // HostUnreachable
	89:    true, // NetworkTimeout
	9001:  true, // SocketException
}

// ServerCodeIllegalOperation is the server code the legacy storage-engine
// remap keys on.
const ServerCodeIllegalOperation int32 = 20

// classifier implements the Error Classifier component. It is consulted
// by the Retry Policy for retryability; errors, with their labels, reach
// the caller unchanged. It never mutates state.
type classifier struct{}

// IsRetryableReadError reports whether err should trigger a single retry
// of a read operation.
func (classifier) IsRetryableReadError(err error) bool {
	e, ok := err.(*Error)
	if !ok || e == nil {
		return false
	}
	switch e.Kind {
	case KindExpiredSession, KindTransaction, KindCompatibility:
		return false
	}
	if e.Kind == KindNetwork {
		return true
	}
	if e.Code != nil && stateChangeCodes[*e.Code] {
		return true
	}
	return e.HasErrorLabel(LabelRetryableWriteError)
}

// IsRetryableWriteError reports whether err should trigger a single retry
// of a write operation, given the wire version observed on the server
// immediately before the failing attempt.
func (classifier) IsRetryableWriteError(err error, snapshotMaxWireVersion int32) bool {
	e, ok := err.(*Error)
	if !ok || e == nil {
		return false
	}
	switch e.Kind {
	case KindExpiredSession, KindTransaction, KindCompatibility:
		return false
	}
	if e.HasErrorLabel(LabelRetryableWriteError) {
		return true
	}
	if e.Kind == KindNetwork {
		return true
	}
	if snapshotMaxWireVersion < SupportsOpMsg && e.Code != nil && legacyRetryableWriteCodes[*e.Code] {
		return true
	}
	return false
}

// legacyRemapMessage is the exact, stable message the core substitutes
// for deployments that reject transaction numbers outright.
const legacyRemapMessage = "This MongoDB deployment does not support retryable writes. Please add retryWrites=false to your connection string."

// remapLegacyStorageEngine implements the legacy storage-engine remap: if
// the server code is IllegalOperation and the server message mentions
// "Transaction numbers", replace the error with a stable, canonical
// message and stop retrying. It does not look at the operation; the
// caller applies it to writes only.
func remapLegacyStorageEngine(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if !ok || e == nil {
		return nil, false
	}
	if e.Code == nil || *e.Code != ServerCodeIllegalOperation {
		return nil, false
	}
	if !strings.Contains(e.Message, "Transaction numbers") {
		return nil, false
	}
	return &Error{
		Kind:    KindServerError,
		Code:    e.Code,
		Message: legacyRemapMessage,
		Wrapped: e,
	}, true
}
