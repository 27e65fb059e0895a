// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/google/uuid"

	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/serverselector"
	"github.com/coredb/godriver/driver/session"
	"github.com/coredb/godriver/internal/logger"
)

// Coordinator implements the Execution Coordinator: the only component
// of the core with externally visible operations. Besides an optional
// logger it has no state of its own; every Execute call is independent,
// single-threaded per operation with no shared mutable state.
type Coordinator struct {
	log *logger.Logger
}

// NewCoordinator returns a ready-to-use Coordinator. A nil log is fine;
// Info/Debug calls against a nil *logger.Logger are no-ops.
func NewCoordinator(log *logger.Logger) *Coordinator { return &Coordinator{log: log} }

// Execute runs one operation end to end: validate, acquire a session,
// select a server, run the two-attempt state machine, and tear down any
// implicit session on the way out. This is the blocking façade; Start
// below offers the same pipeline as an asynchronous completion.
func (c *Coordinator) Execute(ctx context.Context, topo Topology, op Operation) (ExecutionResult, error) {
	if err := op.Validate(); err != nil {
		return ExecutionResult{}, &Error{Kind: KindInvalidOperation, Message: err.Error(), Wrapped: err}
	}

	// Discovery may need to run more than once before the topology can
	// answer whether it supports sessions at all, so this re-enters the
	// check rather than probing exactly once.
	for topo.ShouldCheckForSessionSupport() {
		if _, err := topo.SelectServer(ctx, readPreferredDiscoverySelector(), nil); err != nil {
			return ExecutionResult{}, err
		}
	}

	sess, implicitOwner, err := c.acquireSession(topo, op)
	if err != nil {
		return ExecutionResult{}, err
	}

	// The implicit session's lifetime is a scoped resource: its release
	// must run on every exit path out of executeWithSelection, including
	// a panic unwinding through it, not just a normal return.
	defer func() {
		if implicitOwner != nil && sess != nil && sess.OwnedBy(implicitOwner) {
			sess.End()
		}
	}()

	return c.executeWithSelection(ctx, topo, op, sess)
}

// Start runs Execute on its own goroutine and returns a channel that
// receives exactly one result, satisfying callers that prefer a
// promise-style API over the blocking one.
func (c *Coordinator) Start(ctx context.Context, topo Topology, op Operation) <-chan CoordinatorOutcome {
	out := make(chan CoordinatorOutcome, 1)
	go func() {
		defer close(out)
		result, err := c.Execute(ctx, topo, op)
		out <- CoordinatorOutcome{Result: result, Err: err}
	}()
	return out
}

// CoordinatorOutcome is the value delivered on the channel Start returns.
type CoordinatorOutcome struct {
	Result ExecutionResult
	Err    error
}

// acquireSession resolves which session this execution will use: the
// caller's own explicit session, a freshly minted implicit one, or none.
// It returns the session to use and, when the core minted an implicit
// one, the owner tag teardown must match against.
func (c *Coordinator) acquireSession(topo Topology, op Operation) (*session.Client, *uuid.UUID, error) {
	if op.Session != nil {
		if !topo.HasSessionSupport() {
			return nil, nil, &Error{Kind: KindCompatibility, Message: "this deployment does not support sessions"}
		}
		if op.Session.Ended() {
			return nil, nil, &Error{Kind: KindExpiredSession, Message: "session has ended"}
		}
		if op.Session.SnapshotEnabled() && !topo.SupportsSnapshotReads() {
			return nil, nil, &Error{Kind: KindCompatibility, Message: "snapshot reads are not supported by this deployment"}
		}
		return op.Session, nil, nil
	}

	if !topo.HasSessionSupport() {
		return nil, nil, nil
	}

	sess, err := topo.StartSession()
	if err != nil {
		return nil, nil, err
	}
	c.log.Debug(logger.ComponentSession, "started implicit session")
	return sess, sess.Owner(), nil
}

// executeWithSelection runs the inner state machine: pre-flight
// constraints, server selection, the first attempt, and (if armed) the
// Retry Policy's second and final attempt.
func (c *Coordinator) executeWithSelection(ctx context.Context, topo Topology, op Operation, sess *session.Client) (ExecutionResult, error) {
	if err := preflight(op, sess); err != nil {
		return ExecutionResult{}, err
	}

	selector := resolveSelector(op, topo.CommonWireVersion())

	server, err := topo.SelectServer(ctx, selector, nil)
	if err != nil {
		return ExecutionResult{}, err
	}

	// Snapshot the server's max wire version now: the server may be
	// marked Unknown later by the very error we are about to observe,
	// losing that information.
	serverDesc := server.Description()

	var armRetry bool
	if sess != nil {
		if op.HasAspect(AspectWrite) {
			armRetry = willRetryWrite(op, topo, sess, serverDesc)
		} else {
			armRetry = willRetryRead(op, topo, sess, serverDesc)
		}
	}

	if armRetry && op.HasAspect(AspectWrite) {
		op.Options = setWillRetryWrite(op.Options)
		sess.IncrementTxnNumber()
	}

	response, execErr := op.Execute(ctx, server, sess, op.Options)
	if execErr == nil {
		return ExecutionResult{Server: server, Session: sess, Response: response}, nil
	}

	if !armRetry {
		return ExecutionResult{}, execErr
	}

	snapshotMaxWireVersion := int32(WireVersionUnknown)
	if serverDesc.WireVersion != nil {
		snapshotMaxWireVersion = serverDesc.WireVersion.Max
	}

	return c.retry(ctx, topo, op, sess, selector, serverDesc, execErr, snapshotMaxWireVersion)
}

// retry runs the Retry Policy's one-and-only second attempt: classify
// the first failure, re-select a server, recheck its retry capability,
// and execute once more.
func (c *Coordinator) retry(ctx context.Context, topo Topology, op Operation, sess *session.Client, selector description.ServerSelector, firstServer description.Server, firstErr error, snapshotMaxWireVersion int32) (ExecutionResult, error) {
	surfaced, decision := evaluateFailure(op, sess, firstServer, firstErr, snapshotMaxWireVersion)
	if !decision.retry {
		return ExecutionResult{}, surfaced
	}

	if decision.forceUnpin {
		c.log.Info(logger.ComponentSession, "force-unpinning session after cursor-creating network error")
		sess.ForceUnpin()
	}

	c.log.Info(logger.ComponentRetry, "retrying operation", "cause", firstErr.Error())

	server, err := topo.SelectServer(ctx, selector, decision.deprioritize)
	if err != nil {
		return ExecutionResult{}, err
	}
	if server == nil {
		return ExecutionResult{}, &Error{Kind: KindUnexpectedServerResponse, Message: "server selection failed without error"}
	}

	serverDesc := server.Description()
	if err := checkRetryCapability(op, serverDesc); err != nil {
		return ExecutionResult{}, err
	}

	if op.HasAspect(AspectWrite) {
		op.Options = setWillRetryWrite(op.Options)
	}

	response, execErr := op.Execute(ctx, server, sess, op.Options)
	if execErr != nil {
		return ExecutionResult{}, execErr
	}
	return ExecutionResult{Server: server, Session: sess, Response: response}, nil
}

// checkRetryCapability verifies the re-selected server itself supports
// the retry kind being attempted.
func checkRetryCapability(op Operation, server description.Server) error {
	if op.HasAspect(AspectWrite) {
		if !server.RetryableWritesSupported() {
			return &Error{Kind: KindUnexpectedServerResponse, Message: "selected server does not support retryable writes"}
		}
		return nil
	}
	if server.WireVersion == nil || !server.WireVersion.Supports(SupportsOpMsg) {
		return &Error{Kind: KindUnexpectedServerResponse, Message: "selected server does not support retryable reads"}
	}
	return nil
}

// preflight rejects a transaction demanding a non-primary read
// preference outright, and lazily unpins a pinned-but-committed session
// unless the operation opts out.
func preflight(op Operation, sess *session.Client) error {
	if sess == nil {
		return nil
	}
	if sess.TransactionRunning() && op.ReadPreference != nil && op.ReadPreference.Mode() != readpref.PrimaryMode {
		return &Error{Kind: KindTransaction, Message: "read preference in a transaction must be primary"}
	}
	if _, pinned := sess.PinnedServer(); pinned && sess.TransactionCommitted() && !op.HasAspect(AspectBypassPinningCheck) {
		sess.Unpin()
	}
	return nil
}

// readPreferredDiscoverySelector forces a primaryPreferred selection
// purely to push the topology through its session-support discovery.
func readPreferredDiscoverySelector() description.ServerSelector {
	return &serverselector.ReadPref{ReadPref: readpref.PrimaryPreferred()}
}
