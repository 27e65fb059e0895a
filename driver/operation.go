// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package driver implements the Operation Execution Core: the
// subsystem that, given an abstract Operation and a live Topology view,
// decides where to run it, whether to attach session state, whether to
// retry, and how to classify the resulting errors.
//
// Concrete operations (insert, find, aggregate, ...), the wire protocol
// codec, the session pool, and the topology monitor are all external
// collaborators the core only reaches through the narrow contracts in
// this package and in driver/description and driver/session.
package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/session"
)

// InvalidOperationError is returned from Validate when a required field
// is missing from an Operation.
type InvalidOperationError struct{ MissingField string }

// Error implements the error interface.
func (e InvalidOperationError) Error() string {
	return "the " + e.MissingField + " field must be set on Operation"
}

// ExecuteFunc is the one primitive the core calls on the wire: run the
// operation against the given server (and session, if any), returning
// the decoded response or an error. Concrete operations provide this;
// the core never encodes or decodes a command itself. opts is the
// operation's options bag as of this attempt, including any
// "willRetryWrite" marker the Coordinator just set — the only way that
// marker is observable outside the core.
type ExecuteFunc func(ctx context.Context, server Server, sess *session.Client, opts map[string]any) (any, error)

// Operation is the request a caller wishes to execute. It carries an
// explicit aspect set (a small capability bitset) rather than a
// Type/RetryMode/Legacy field trio, so new capabilities compose without
// a growing struct.
type Operation struct {
	// Aspects are the capability flags this operation carries (read vs
	// write, retryable, cursor lifecycle, pin-bypass).
	Aspects AspectSet

	// ReadPreference is the read preference to use for selection. A nil
	// value defaults to primary.
	ReadPreference *readpref.ReadPref

	// PinnedServer is set only after the first execution of a cursor-
	// creating operation, and is read back on CURSOR_ITERATING
	// executions of the same cursor.
	PinnedServer *description.Server

	// Session is the caller-supplied explicit session, if any. Left nil
	// when the caller wants the core to manage an implicit session.
	Session *session.Client

	// Options is the mutable options bag the Coordinator may annotate
	// with "willRetryWrite".
	Options map[string]any

	// CanRetryRead, CanRetryWrite, and TrySecondaryWrite are set by the
	// operation's author (the concrete insert/find/... implementation),
	// not by the core.
	CanRetryRead      bool
	CanRetryWrite     bool
	TrySecondaryWrite bool

	// Execute is the wire-level primitive described above.
	Execute ExecuteFunc
}

// HasAspect reports whether the operation carries the given aspect.
func (op Operation) HasAspect(a Aspect) bool {
	return op.Aspects.Has(a)
}

// Validate ensures the operation is well-formed enough to run.
func (op Operation) Validate() error {
	if op.Execute == nil {
		return InvalidOperationError{MissingField: "Execute"}
	}
	return nil
}

// willRetryWriteOptionKey is the key the Coordinator sets to true on
// op.Options when it arms a write for retry.
const willRetryWriteOptionKey = "willRetryWrite"

func setWillRetryWrite(opts map[string]any) map[string]any {
	if opts == nil {
		opts = make(map[string]any, 1)
	}
	opts[willRetryWriteOptionKey] = true
	return opts
}
