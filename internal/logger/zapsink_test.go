// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewZapSinkRoutesThroughZap drives a Logger backed by NewZapSink end
// to end, the same zap+zapr pairing wired in examples/_logger/zap/main.go,
// and asserts the records actually reach zap's core at the level the
// Logger asked for.
func TestNewZapSinkRoutesThroughZap(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core))

	log := New(sink, map[Component]Level{
		ComponentSession: DebugLevel,
		ComponentRetry:   InfoLevel,
	})

	log.Debug(ComponentSession, "started implicit session", "owner", "abc-123")
	log.Info(ComponentRetry, "retrying operation", "cause", "ECONNRESET")

	// A component logged below its configured level must not reach zap.
	log.Debug(ComponentRetry, "should be suppressed")

	entries := observed.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "started implicit session", entries[0].Message)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["owner"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "retrying operation", entries[1].Message)
	assert.Equal(t, "ECONNRESET", entries[1].ContextMap()["cause"])
}
