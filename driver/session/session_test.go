// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coredb/godriver/driver/description"
)

func TestNewImplicit(t *testing.T) {
	sess, err := NewImplicit()
	require.NoError(t, err)
	assert.True(t, sess.IsImplicit())
	assert.NotNil(t, sess.Owner())
}

func TestNewExplicit(t *testing.T) {
	sess := New()
	assert.False(t, sess.IsImplicit())
	assert.Nil(t, sess.Owner())
}

func TestOwnedBy(t *testing.T) {
	a, err := NewImplicit()
	require.NoError(t, err)
	b, err := NewImplicit()
	require.NoError(t, err)

	assert.True(t, a.OwnedBy(a.Owner()))
	assert.False(t, a.OwnedBy(b.Owner()))

	explicit := New()
	assert.False(t, explicit.OwnedBy(a.Owner()))

	var nilTag *uuid.UUID
	assert.False(t, a.OwnedBy(nilTag))
}

func TestEndIsIdempotent(t *testing.T) {
	sess := New()
	assert.False(t, sess.Ended())
	sess.End()
	assert.True(t, sess.Ended())
	sess.End()
	assert.True(t, sess.Ended())
}

func TestIncrementTxnNumber(t *testing.T) {
	sess := New()
	assert.Equal(t, int64(0), sess.TxnNumber())
	assert.Equal(t, int64(1), sess.IncrementTxnNumber())
	assert.Equal(t, int64(2), sess.IncrementTxnNumber())
	assert.Equal(t, int64(2), sess.TxnNumber())
}

func TestPinUnpin(t *testing.T) {
	sess := New()
	_, ok := sess.PinnedServer()
	assert.False(t, ok)

	server := description.Server{Addr: "a:1"}
	sess.Pin(server)
	pinned, ok := sess.PinnedServer()
	require.True(t, ok)
	assert.Equal(t, server.Addr, pinned.Addr)

	sess.Unpin()
	_, ok = sess.PinnedServer()
	assert.False(t, ok)
}

func TestForceUnpinClearsPool(t *testing.T) {
	sess := New()
	var cleared []string
	sess.SetPoolClearer(func(s description.Server) { cleared = append(cleared, s.Addr) })

	// Not pinned: nothing to clear.
	sess.ForceUnpin()
	assert.Empty(t, cleared)

	sess.Pin(description.Server{Addr: "a:1"})
	sess.ForceUnpin()
	assert.Equal(t, []string{"a:1"}, cleared)
	_, ok := sess.PinnedServer()
	assert.False(t, ok)

	// A lazy Unpin never clears the pool.
	sess.Pin(description.Server{Addr: "b:2"})
	sess.Unpin()
	assert.Equal(t, []string{"a:1"}, cleared)
}

func TestTransactionState(t *testing.T) {
	t.Run("start then commit", func(t *testing.T) {
		sess := New()
		assert.Equal(t, None, sess.TransactionState())

		require.NoError(t, sess.StartTransaction())
		assert.Equal(t, Starting, sess.TransactionState())
		assert.True(t, sess.TransactionRunning())

		sess.ApplyCommand()
		assert.Equal(t, InProgress, sess.TransactionState())

		require.NoError(t, sess.CommitTransaction())
		assert.True(t, sess.TransactionCommitted())
		assert.False(t, sess.TransactionRunning())
	})

	t.Run("start then abort", func(t *testing.T) {
		sess := New()
		require.NoError(t, sess.StartTransaction())
		require.NoError(t, sess.AbortTransaction())
		assert.Equal(t, Aborted, sess.TransactionState())
		assert.False(t, sess.TransactionCommitted())
	})

	t.Run("double start fails", func(t *testing.T) {
		sess := New()
		require.NoError(t, sess.StartTransaction())
		assert.Error(t, sess.StartTransaction())
	})

	t.Run("commit without start fails", func(t *testing.T) {
		sess := New()
		assert.Error(t, sess.CommitTransaction())
	})

	t.Run("abort without start fails", func(t *testing.T) {
		sess := New()
		assert.Error(t, sess.AbortTransaction())
	})

	t.Run("starting a transaction clears the committing flag", func(t *testing.T) {
		sess := New()
		sess.SetCommitting(true)
		require.NoError(t, sess.StartTransaction())
		assert.False(t, sess.Committing())
	})
}

// TestConcurrentPinAndTransactionAccess exercises pin/unpin and
// transaction-state transitions from many goroutines at once, the way a
// session handed across concurrently executing operations would. Run
// with -race this catches the unsynchronized-field class of bug
// directly rather than relying on inspection.
func TestConcurrentPinAndTransactionAccess(t *testing.T) {
	sess := New()
	server := description.Server{Addr: "a:1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Pin(server)
			_, _ = sess.PinnedServer()
			sess.Unpin()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.SetCommitting(true)
			_ = sess.Committing()
			sess.SetCommitting(false)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.TransactionState()
			_ = sess.TransactionRunning()
			_ = sess.TransactionCommitted()
		}()
	}
	wg.Wait()
}

func TestMergeClientOptions(t *testing.T) {
	yes := true
	no := false
	merged := MergeClientOptions(&ClientOptions{Snapshot: &no}, &ClientOptions{Snapshot: &yes})
	require.NotNil(t, merged.Snapshot)
	assert.True(t, *merged.Snapshot)
}

func clusterTimeDoc(t uint32, i uint32) bson.Raw {
	raw, err := bson.Marshal(bson.M{
		"$clusterTime": bson.M{
			"clusterTime": primitive.Timestamp{T: t, I: i},
		},
	})
	if err != nil {
		panic(err)
	}
	return raw
}

func TestAdvanceClusterTime(t *testing.T) {
	sess := New()
	assert.Nil(t, sess.ClusterTime())

	ct1 := clusterTimeDoc(10, 1)
	ct2 := clusterTimeDoc(10, 5)
	ct3 := clusterTimeDoc(5, 9)

	require.NoError(t, sess.AdvanceClusterTime(ct2))
	assert.Equal(t, ct2, sess.ClusterTime())

	// An earlier time never regresses the session's cluster time.
	require.NoError(t, sess.AdvanceClusterTime(ct3))
	assert.Equal(t, ct2, sess.ClusterTime())

	// A later ordinal at the same epoch still wins.
	require.NoError(t, sess.AdvanceClusterTime(ct1))
	assert.Equal(t, ct2, sess.ClusterTime())
}

func TestAdvanceOperationTime(t *testing.T) {
	sess := New()
	assert.Nil(t, sess.OperationTime())

	optime1 := &primitive.Timestamp{T: 10, I: 1}
	sess.AdvanceOperationTime(optime1)
	assert.Equal(t, optime1, sess.OperationTime())

	optime2 := &primitive.Timestamp{T: 5, I: 9}
	sess.AdvanceOperationTime(optime2)
	assert.Equal(t, optime1, sess.OperationTime())

	optime3 := &primitive.Timestamp{T: 12, I: 0}
	sess.AdvanceOperationTime(optime3)
	assert.Equal(t, optime3, sess.OperationTime())
}
