// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"errors"

	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/session"
)

type fakeServer struct {
	desc description.Server
}

func (s fakeServer) Description() description.Server { return s.desc }

// fakeTopology is a minimal, in-memory stand-in for the Topology
// subsystem, good enough to drive the Coordinator's pipeline in tests
// without a real cluster.
type fakeTopology struct {
	servers         []description.Server
	selectSeq       [][]description.Server // overrides successive SelectServer calls, in order
	selectCalls     int
	sessionSupport  bool
	retryReads      *bool
	retryWrites     bool
	snapshotReads   bool
	commonWire      int32
	discoveryChecks int // pending ShouldCheckForSessionSupport rounds
	selectErr       error
	startSessionErr error
}

func (f *fakeTopology) SelectServer(_ context.Context, selector description.ServerSelector, deprioritized []description.Server) (Server, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}

	candidates := f.servers
	if f.selectCalls < len(f.selectSeq) {
		candidates = f.selectSeq[f.selectCalls]
	}
	f.selectCalls++

	filtered := make([]description.Server, 0, len(candidates))
	for _, c := range candidates {
		skip := false
		for _, d := range deprioritized {
			if d.Addr == c.Addr {
				skip = true
				break
			}
		}
		if !skip {
			filtered = append(filtered, c)
		}
	}

	topo := description.Topology{Kind: description.TopologyKindReplicaSet, Servers: filtered}
	selected, err := selector.SelectServer(topo, filtered)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, errors.New("no server available")
	}
	return fakeServer{desc: selected[0]}, nil
}

func (f *fakeTopology) ShouldCheckForSessionSupport() bool {
	if f.discoveryChecks > 0 {
		f.discoveryChecks--
		return true
	}
	return false
}

func (f *fakeTopology) HasSessionSupport() bool     { return f.sessionSupport }
func (f *fakeTopology) SupportsSnapshotReads() bool { return f.snapshotReads }
func (f *fakeTopology) CommonWireVersion() int32    { return f.commonWire }
func (f *fakeTopology) RetryReads() *bool           { return f.retryReads }
func (f *fakeTopology) RetryWrites() bool           { return f.retryWrites }

func (f *fakeTopology) StartSession() (*session.Client, error) {
	if f.startSessionErr != nil {
		return nil, f.startSessionErr
	}
	return session.NewImplicit()
}

func boolPtr(b bool) *bool { return &b }
