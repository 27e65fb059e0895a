// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coredb/godriver/driver/description"
	"github.com/coredb/godriver/driver/serverselector"
)

// resolveSelector implements the Selector Resolver component: given an
// operation and the topology's common wire version, it produces the
// concrete description.ServerSelector the Coordinator should hand to
// Topology.SelectServer.
//
//   - CURSOR_ITERATING with a pinned server always wins: the cursor must
//     continue on the exact server it was created on.
//   - trySecondaryWrite asks for a wire-version-gated secondary-writable
//     selector.
//   - a write with no read preference gets the writable-server selector.
//   - everything else falls back to an ordinary read-preference selector,
//     defaulting to primary when the operation didn't specify one.
func resolveSelector(op Operation, commonWireVersion int32) description.ServerSelector {
	if op.HasAspect(AspectCursorIterating) && op.PinnedServer != nil {
		return &serverselector.PinnedServer{Pinned: *op.PinnedServer}
	}

	rp := op.ReadPreference
	if op.TrySecondaryWrite {
		return &serverselector.SecondaryWritable{
			CommonWireVersion: commonWireVersion,
			MinWireVersion:    ShardedTransactions,
			ReadPref:          rp,
		}
	}

	if op.HasAspect(AspectWrite) && rp == nil {
		return &serverselector.Write{}
	}

	if rp == nil {
		rp = readpref.Primary()
	}
	return &serverselector.ReadPref{ReadPref: rp}
}
