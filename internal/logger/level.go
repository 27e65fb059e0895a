// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "strings"

// Level is the severity of a log record. The ordering mirrors the
// logr convention of Info=0, so a LogSink backed by logr (e.g. zapr)
// needs no offset translation.
type Level int

const (
	OffLevel Level = iota - 1
	InfoLevel
	DebugLevel
)

// parseLevel maps the GODRIVER_LOG_* environment variable values to a
// Level, the same environment-variable convention the driver uses for
// its own component levels.
func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return DebugLevel
	case "info", "warn", "error", "notice":
		return InfoLevel
	default:
		return OffLevel
	}
}
