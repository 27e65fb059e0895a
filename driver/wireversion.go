// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

// Wire protocol version constants used for retry and feature gating.
const (
	WireVersionUnknown      int32 = 0
	SupportsOpMsg           int32 = 6
	ReplicaSetTransactions  int32 = 7
	ShardedTransactions     int32 = 8
	WireVersion50           int32 = 13
	MinSupportedWireVersion int32 = 6
)
