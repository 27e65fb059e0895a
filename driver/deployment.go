// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"

	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/session"
)

// Server is a handle to one network endpoint. It is opaque to the core
// except for its Description: the core never talks to a server
// directly, only reads its point-in-time description to decide policy.
type Server interface {
	Description() description.Server
}

// Topology is the narrow contract the core consumes from the cluster
// discovery subsystem, an external collaborator owned outside this
// package. The core never discovers servers or tracks their state
// itself; it only asks this interface to select one and to answer a
// handful of capability questions.
type Topology interface {
	// SelectServer performs a (possibly blocking) server selection using
	// the given selector, deprioritizing any servers in deprioritized so
	// a retry doesn't immediately land back on the server that just
	// failed.
	SelectServer(ctx context.Context, selector description.ServerSelector, deprioritized []description.Server) (Server, error)

	// ShouldCheckForSessionSupport reports whether the topology hasn't
	// yet completed the discovery needed to know if it supports
	// sessions at all.
	ShouldCheckForSessionSupport() bool

	// HasSessionSupport reports whether the topology supports logical
	// sessions.
	HasSessionSupport() bool

	// SupportsSnapshotReads reports whether the deployment can serve
	// snapshot reads.
	SupportsSnapshotReads() bool

	// CommonWireVersion is the maximum wire version supported by every
	// server currently known to the topology.
	CommonWireVersion() int32

	// RetryReads returns the topology's retryReads option. A nil value
	// means "not explicitly set", which the Retry Policy treats as
	// enabled: reads retry by default, an opt-out asymmetry with writes.
	RetryReads() *bool

	// RetryWrites returns the topology's retryWrites option. Writes
	// retry only when this is explicitly true, the opt-in counterpart
	// to RetryReads' default-on behavior.
	RetryWrites() bool

	// StartSession mints a new implicit logical session, tagged with a
	// fresh, process-unique owner value. The core only calls this when
	// no explicit session was supplied.
	StartSession() (*session.Client, error)
}

// ExecutionResult is what a single successful attempt, or a whole
// Coordinator.Execute call, produces.
type ExecutionResult struct {
	Server   Server
	Session  *session.Client
	Response any
}
