// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package serverselector implements the concrete selection policies the
// Selector Resolver hands to the Topology subsystem: read-preference
// selection, pinned same-server selection for cursor continuation, and
// secondary-writable selection for the trySecondaryWrite escape hatch.
package serverselector

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coredb/godriver/driver/description"
)

// Composite applies a sequence of selectors in order, narrowing the
// candidate list at each step.
type Composite struct {
	Selectors []description.ServerSelector
}

var _ description.ServerSelector = (*Composite)(nil)

// SelectServer implements description.ServerSelector.
func (c *Composite) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	var err error
	for _, sel := range c.Selectors {
		candidates, err = sel.SelectServer(topo, candidates)
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// Latency narrows candidates to those within a latency window of the
// fastest candidate.
type Latency struct {
	Latency time.Duration
}

var _ description.ServerSelector = (*Latency)(nil)

// SelectServer implements description.ServerSelector.
func (l *Latency) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	if l.Latency < 0 || topo.Kind == description.TopologyKindLoadBalanced || len(candidates) < 2 {
		return candidates, nil
	}

	min := time.Duration(-1)
	for _, c := range candidates {
		if c.AverageRTTSet && (min < 0 || c.AverageRTT < min) {
			min = c.AverageRTT
		}
	}
	if min < 0 {
		return candidates, nil
	}

	max := min + l.Latency
	result := make([]description.Server, 0, len(candidates))
	for _, c := range candidates {
		if c.AverageRTTSet && c.AverageRTT <= max {
			result = append(result, c)
		}
	}
	return result, nil
}

// ReadPref selects servers suitable for the given read preference. It
// does not need tag sets or max-staleness, since those belong to the
// Topology subsystem's replica-set matching, out of scope for the core;
// it only decides which server kinds are eligible.
type ReadPref struct {
	ReadPref *readpref.ReadPref
}

var _ description.ServerSelector = (*ReadPref)(nil)

// SelectServer implements description.ServerSelector.
func (r *ReadPref) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	if topo.Kind == description.TopologyKindLoadBalanced {
		return candidates, nil
	}
	if topo.Kind == description.TopologyKindSingle {
		return candidates, nil
	}

	mode := readpref.PrimaryMode
	if r.ReadPref != nil {
		mode = r.ReadPref.Mode()
	}

	if topo.Kind == description.TopologyKindSharded {
		return selectByKind(candidates, description.ServerKindMongos), nil
	}

	switch mode {
	case readpref.PrimaryMode:
		return selectByKind(candidates, description.ServerKindRSPrimary), nil
	case readpref.SecondaryMode:
		return selectByKind(candidates, description.ServerKindRSSecondary), nil
	case readpref.PrimaryPreferredMode:
		primaries := selectByKind(candidates, description.ServerKindRSPrimary)
		if len(primaries) > 0 {
			return primaries, nil
		}
		return selectByKind(candidates, description.ServerKindRSSecondary), nil
	case readpref.SecondaryPreferredMode:
		secondaries := selectByKind(candidates, description.ServerKindRSSecondary)
		if len(secondaries) > 0 {
			return secondaries, nil
		}
		return selectByKind(candidates, description.ServerKindRSPrimary), nil
	case readpref.NearestMode:
		result := selectByKind(candidates, description.ServerKindRSPrimary)
		return append(result, selectByKind(candidates, description.ServerKindRSSecondary)...), nil
	}

	return nil, fmt.Errorf("serverselector: unsupported read preference mode: %v", mode)
}

// Write selects all writable servers: primaries, standalones, and mongos.
type Write struct{}

var _ description.ServerSelector = (*Write)(nil)

// SelectServer implements description.ServerSelector.
func (Write) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	if topo.Kind == description.TopologyKindSingle || topo.Kind == description.TopologyKindLoadBalanced {
		return candidates, nil
	}
	result := make([]description.Server, 0, len(candidates))
	for _, c := range candidates {
		switch c.Kind {
		case description.ServerKindMongos, description.ServerKindRSPrimary, description.ServerKindStandalone:
			result = append(result, c)
		}
	}
	return result, nil
}

// SecondaryWritable selects a secondary-eligible server for an operation
// that is willing to run a write against a secondary when the deployment's
// common wire version indicates the server can durably accept it (e.g. a
// pre-primary-election mongos routing a bulk write during a failover
// window). It falls back to the ordinary read-preference selector when
// the wire version floor isn't met.
type SecondaryWritable struct {
	CommonWireVersion int32
	MinWireVersion    int32
	ReadPref          *readpref.ReadPref
}

var _ description.ServerSelector = (*SecondaryWritable)(nil)

// SelectServer implements description.ServerSelector.
func (s *SecondaryWritable) SelectServer(topo description.Topology, candidates []description.Server) ([]description.Server, error) {
	if s.CommonWireVersion < s.MinWireVersion {
		return (&ReadPref{ReadPref: s.ReadPref}).SelectServer(topo, candidates)
	}
	result := make([]description.Server, 0, len(candidates))
	for _, c := range candidates {
		switch c.Kind {
		case description.ServerKindMongos, description.ServerKindRSPrimary,
			description.ServerKindRSSecondary, description.ServerKindStandalone:
			result = append(result, c)
		}
	}
	return result, nil
}

// PinnedServer is the same-server selector used for CURSOR_ITERATING
// operations: it still routes through the Topology subsystem (so stale-
// server checks fire) but only ever accepts the one server description
// the operation was pinned to.
type PinnedServer struct {
	Pinned description.Server
}

var _ description.ServerSelector = (*PinnedServer)(nil)

// SelectServer implements description.ServerSelector.
func (p *PinnedServer) SelectServer(_ description.Topology, candidates []description.Server) ([]description.Server, error) {
	for _, c := range candidates {
		if c.Addr == p.Pinned.Addr {
			return []description.Server{c}, nil
		}
	}
	return nil, fmt.Errorf("serverselector: pinned server %q is no longer part of the topology", p.Pinned.Addr)
}

func selectByKind(candidates []description.Server, kind description.ServerKind) []description.Server {
	result := make([]description.Server, 0, len(candidates))
	for _, c := range candidates {
		if c.Kind == kind {
			result = append(result, c)
		}
	}
	return result
}
