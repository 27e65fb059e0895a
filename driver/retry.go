// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/session"
)

// retryDecision is what the Retry Policy hands back to the Coordinator
// after a failed attempt: whether to retry at all, and, if so, the
// bookkeeping the next attempt needs (servers to avoid on re-selection,
// and whether the session's pin must be forced off).
type retryDecision struct {
	retry        bool
	deprioritize []description.Server
	forceUnpin   bool
}

// notInTransaction reports whether sess is free to have a retry armed
// for it: either there is no session, or it isn't currently inside a
// multi-statement transaction (statements inside one are retried by the
// transaction as a whole, not individually). A session that is in the
// middle of running commitTransaction or abortTransaction is exempted:
// that commit/abort is itself the thing being retried as a whole, so it
// must not be blocked by the in-transaction check it would otherwise
// fail (the transaction is still InProgress at that point).
func notInTransaction(sess *session.Client) bool {
	if sess == nil {
		return true
	}
	if sess.Committing() || sess.Aborting() {
		return true
	}
	return !sess.TransactionRunning()
}

// willRetryRead is the config-and-capability gate checked before the
// first attempt, with no error in hand yet. Reads retry by default: only
// an explicit retryReads=false disarms them.
func willRetryRead(op Operation, topo Topology, sess *session.Client, server description.Server) bool {
	if !op.HasAspect(AspectRetryable) || !op.CanRetryRead {
		return false
	}
	if rr := topo.RetryReads(); rr != nil && !*rr {
		return false
	}
	if !notInTransaction(sess) {
		return false
	}
	return server.WireVersion.Supports(SupportsOpMsg)
}

// willRetryWrite is the write-side counterpart to willRetryRead: unlike
// reads, writes only arm when the deployment explicitly set
// retryWrites=true.
func willRetryWrite(op Operation, topo Topology, sess *session.Client, server description.Server) bool {
	if !op.HasAspect(AspectRetryable) || !op.CanRetryWrite {
		return false
	}
	if !topo.RetryWrites() {
		return false
	}
	if !notInTransaction(sess) {
		return false
	}
	return server.RetryableWritesSupported()
}

// evaluateFailure is the Retry Policy's verdict on a failed first
// attempt: it is only ever invoked once a retry has already been armed
// for the matching aspect by willRetryRead/willRetryWrite, so it only
// needs to judge the specific error that occurred, not repeat the
// config checks. snapshotMaxWireVersion is the wire version observed on
// the server immediately before the failing attempt.
func evaluateFailure(op Operation, sess *session.Client, server description.Server, err error, snapshotMaxWireVersion int32) (error, retryDecision) {
	if op.HasAspect(AspectWrite) {
		if remapped, ok := remapLegacyStorageEngine(err); ok {
			return remapped, retryDecision{}
		}
	}

	var retryable bool
	if op.HasAspect(AspectWrite) {
		retryable = (classifier{}).IsRetryableWriteError(err, snapshotMaxWireVersion)
	} else {
		retryable = (classifier{}).IsRetryableReadError(err)
	}
	if !retryable {
		return err, retryDecision{}
	}

	decision := retryDecision{
		retry:        true,
		deprioritize: []description.Server{server},
	}
	if op.HasAspect(AspectCursorCreating) && isNetworkError(err) && sess != nil {
		if _, pinned := sess.PinnedServer(); pinned && notInTransaction(sess) {
			decision.forceUnpin = true
		}
	}
	return err, decision
}
