// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package session implements the Session Binding component of the
// Operation Execution Core: it owns implicit-session creation, the
// transaction-number accounting that makes retried writes idempotent at
// the server, and the pin/unpin lifecycle a session goes through during a
// sharded transaction.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coredb/godriver/driver/description"
)

// ErrSessionEnded is returned when an operation is attempted on a session
// that has already been ended.
var ErrSessionEnded = errors.New("session: session has ended")

// TransactionState is the state a session's multi-statement transaction
// is currently in.
type TransactionState uint8

// The states a session's transaction moves through.
const (
	None TransactionState = iota
	Starting
	InProgress
	Committed
	Aborted
)

// transaction holds the session's transaction sub-state: whether one is
// currently running, and whether it has committed.
type transaction struct {
	state TransactionState
}

func (t transaction) inTransaction() bool {
	return t.state == Starting || t.state == InProgress
}

func (t transaction) isCommitted() bool {
	return t.state == Committed
}

// Client is a logical session with transaction state. The zero value is
// not usable; construct one with New or NewImplicit.
type Client struct {
	// owner is non-nil iff this session was created implicitly by the
	// core. Any unique-value generator works here; this uses a UUID.
	owner *uuid.UUID

	opts *ClientOptions

	ended           atomic.Bool
	txnNumber       atomic.Int64
	snapshotEnabled bool

	// stateMu guards the fields below: transaction/pin state is mutated
	// and read from whatever goroutine is currently driving this
	// session, and the core's own concurrency guarantee (single-threaded
	// per operation) does not extend to a session shared across
	// concurrently executing operations.
	stateMu      sync.Mutex
	pinnedServer *description.Server
	transaction  transaction
	committing   bool
	aborting     bool

	// poolClearer is registered by the connection-pool owner so a forced
	// unpin can ask it to clear the pinned server's pool. The core never
	// manages pools itself; this is the one signal it sends.
	poolClearer func(description.Server)

	clockMu       sync.Mutex
	clusterTime   bson.Raw
	operationTime *primitive.Timestamp
}

// New creates an explicit session: one the caller asked for by name and
// that the core must never end on its own.
func New(opts ...*ClientOptions) *Client {
	merged := MergeClientOptions(opts...)
	return &Client{
		opts:            merged,
		snapshotEnabled: merged.Snapshot != nil && *merged.Snapshot,
	}
}

// NewImplicit creates a session tagged with a fresh, process-unique
// owner value. The Execution Coordinator remembers this owner locally so
// its teardown path can tell "mine" from "theirs" even if an explicit
// session happens to share the same structure.
func NewImplicit(opts ...*ClientOptions) (*Client, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	c := New(opts...)
	c.owner = &id
	return c, nil
}

// IsImplicit reports whether this session was created implicitly by the
// core (as opposed to supplied explicitly by the caller).
func (c *Client) IsImplicit() bool {
	return c.owner != nil
}

// OwnedBy reports whether this session's owner tag matches the given one.
// Teardown uses this instead of pointer identity so that two distinct
// explicit sessions can never be confused for the implicit session a
// particular Execute call created.
func (c *Client) OwnedBy(owner *uuid.UUID) bool {
	if c.owner == nil || owner == nil {
		return false
	}
	return *c.owner == *owner
}

// Owner returns this session's owner tag, or nil if the session is explicit.
func (c *Client) Owner() *uuid.UUID {
	return c.owner
}

// Ended reports whether the session has already been ended. A session
// with Ended()==true may not be used for further operations.
func (c *Client) Ended() bool {
	return c.ended.Load()
}

// End marks the session as ended. It is idempotent: ending an
// already-ended session is a no-op.
func (c *Client) End() {
	c.ended.Store(true)
}

// SnapshotEnabled reports whether this session was started with snapshot
// reads enabled.
func (c *Client) SnapshotEnabled() bool {
	return c.snapshotEnabled
}

// TxnNumber returns the current transaction number. It starts at zero and
// is advanced only by IncrementTxnNumber.
func (c *Client) TxnNumber() int64 {
	return c.txnNumber.Load()
}

// IncrementTxnNumber advances the transaction number by exactly one and
// returns the new value. This happens iff a write is about to be
// attempted with retry armed, and it is never decremented on failure:
// the next attempt reuses the same number so the server can de-duplicate
// the retried write.
func (c *Client) IncrementTxnNumber() int64 {
	return c.txnNumber.Add(1)
}

// Pin binds the session to a single server, used during sharded
// transactions so every statement in the transaction lands on the same
// mongos.
func (c *Client) Pin(server description.Server) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.pinnedServer = &server
}

// Unpin releases the session's server pin.
func (c *Client) Unpin() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.pinnedServer = nil
}

// SetPoolClearer registers the callback ForceUnpin invokes with the
// previously pinned server. The session pool (or whoever owns the
// connection pools) supplies this; a nil clearer makes ForceUnpin
// equivalent to Unpin.
func (c *Client) SetPoolClearer(fn func(description.Server)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.poolClearer = fn
}

// ForceUnpin releases the session's server pin and asks the pool owner
// to clear the pinned server's connection pool, so a fresh cursor isn't
// resumed on a connection that just observed a network error. A no-op
// when the session isn't pinned.
func (c *Client) ForceUnpin() {
	c.stateMu.Lock()
	pinned := c.pinnedServer
	clearer := c.poolClearer
	c.pinnedServer = nil
	c.stateMu.Unlock()
	if pinned != nil && clearer != nil {
		clearer(*pinned)
	}
}

// PinnedServer returns the server this session is pinned to, if any.
func (c *Client) PinnedServer() (description.Server, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.pinnedServer == nil {
		return description.Server{}, false
	}
	return *c.pinnedServer, true
}

// StartTransaction moves the session into the Starting state. Returns an
// error if a transaction is already running.
func (c *Client) StartTransaction() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.transaction.inTransaction() {
		return errors.New("session: transaction already in progress")
	}
	c.transaction = transaction{state: Starting}
	c.committing = false
	c.aborting = false
	return nil
}

// ApplyCommand transitions a Starting transaction to InProgress once the
// first statement has actually been sent.
func (c *Client) ApplyCommand() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.transaction.state == Starting {
		c.transaction.state = InProgress
	}
}

// CommitTransaction marks the session's transaction committed.
func (c *Client) CommitTransaction() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.transaction.inTransaction() {
		return errors.New("session: no transaction started")
	}
	c.transaction.state = Committed
	return nil
}

// AbortTransaction marks the session's transaction aborted.
func (c *Client) AbortTransaction() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.transaction.inTransaction() {
		return errors.New("session: no transaction started")
	}
	c.transaction.state = Aborted
	return nil
}

// TransactionState returns the session's current transaction state.
func (c *Client) TransactionState() TransactionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.transaction.state
}

// TransactionRunning reports whether the session is currently inside a
// multi-statement transaction (Starting or InProgress).
func (c *Client) TransactionRunning() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.transaction.inTransaction()
}

// TransactionCommitted reports whether the session's transaction has
// committed. Used by the pre-flight pinning check: a committed, pinned
// session is unpinned lazily on the next operation.
func (c *Client) TransactionCommitted() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.transaction.isCommitted()
}

// SetCommitting marks that the session is in the middle of running
// commitTransaction, which relaxes the "not in transaction" requirement
// for retryability: a commit in flight is itself retried as a whole, so
// the statements it issues shouldn't be blocked by the in-transaction
// check.
func (c *Client) SetCommitting(v bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.committing = v
}

// SetAborting marks that the session is in the middle of running
// abortTransaction.
func (c *Client) SetAborting(v bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.aborting = v
}

// ClusterTime returns the highest $clusterTime this session has observed.
func (c *Client) ClusterTime() bson.Raw {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	return c.clusterTime
}

// AdvanceClusterTime updates the session's cluster time to the greater of
// its current value and other, so a causally-consistent read issued
// later on this session can require at least this point in the oplog. A
// concrete operation calls this after decoding a server response; the
// core itself never parses wire bytes.
func (c *Client) AdvanceClusterTime(other bson.Raw) error {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	max, err := MaxClusterTime(c.clusterTime, other)
	if err != nil {
		return err
	}
	c.clusterTime = max
	return nil
}

// OperationTime returns the highest operationTime this session has
// observed.
func (c *Client) OperationTime() *primitive.Timestamp {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	return c.operationTime
}

// AdvanceOperationTime updates the session's operation time to the
// greater of its current value and other.
func (c *Client) AdvanceOperationTime(other *primitive.Timestamp) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	if other == nil {
		return
	}
	if c.operationTime == nil || compareTimestamp(*c.operationTime, *other) < 0 {
		c.operationTime = other
	}
}

// compareTimestamp orders two BSON timestamps by (T, I), the same
// lexicographic comparison the server uses for operationTime.
func compareTimestamp(a, b primitive.Timestamp) int {
	switch {
	case a.T != b.T:
		if a.T < b.T {
			return -1
		}
		return 1
	case a.I != b.I:
		if a.I < b.I {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// clusterTimeValue extracts the (T, I) pair of the $clusterTime.clusterTime
// timestamp used to compare two cluster-time documents, mirroring the
// server's own ordering rule. It returns (0, 0) when that field is absent
// or not a timestamp.
func clusterTimeValue(ct bson.Raw) (epoch, ordinal uint32) {
	if len(ct) == 0 {
		return 0, 0
	}
	timeVal, err := ct.LookupErr("$clusterTime")
	if err != nil {
		return 0, 0
	}
	timeDoc, ok := timeVal.DocumentOK()
	if !ok {
		return 0, 0
	}
	ts, err := timeDoc.LookupErr("clusterTime")
	if err != nil {
		return 0, 0
	}
	t, i, ok := ts.TimestampOK()
	if !ok {
		return 0, 0
	}
	return t, i
}

// MaxClusterTime returns whichever of ct1, ct2 represents the later
// point in the cluster's oplog, by comparing their embedded clusterTime
// timestamps. A nil/empty document loses to any non-empty one.
func MaxClusterTime(ct1, ct2 bson.Raw) (bson.Raw, error) {
	if len(ct1) == 0 {
		return ct2, nil
	}
	if len(ct2) == 0 {
		return ct1, nil
	}
	if err := ct1.Validate(); err != nil {
		return nil, err
	}
	if err := ct2.Validate(); err != nil {
		return nil, err
	}
	epoch1, ord1 := clusterTimeValue(ct1)
	epoch2, ord2 := clusterTimeValue(ct2)
	if epoch1 > epoch2 || (epoch1 == epoch2 && ord1 > ord2) {
		return ct1, nil
	}
	return ct2, nil
}

// Committing reports whether the session is currently committing a
// transaction.
func (c *Client) Committing() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.committing
}

// Aborting reports whether the session is currently aborting a
// transaction.
func (c *Client) Aborting() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.aborting
}
