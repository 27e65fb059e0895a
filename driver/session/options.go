// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import "go.mongodb.org/mongo-driver/mongo/readpref"

// ClientOptions represents the options used to start a logical session.
// Trimmed down to two fields: snapshot reads gate the compatibility
// check during session acquisition. The default read preference is
// carried and merged but not read by server selection, which defaults
// to primary when an operation doesn't specify a read preference.
type ClientOptions struct {
	Snapshot              *bool
	DefaultReadPreference *readpref.ReadPref
}

// MergeClientOptions combines multiple ClientOptions into one, with
// later options taking precedence.
func MergeClientOptions(opts ...*ClientOptions) *ClientOptions {
	merged := &ClientOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Snapshot != nil {
			merged.Snapshot = opt.Snapshot
		}
		if opt.DefaultReadPreference != nil {
			merged.DefaultReadPreference = opt.DefaultReadPreference
		}
	}
	return merged
}
