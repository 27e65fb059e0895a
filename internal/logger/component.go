// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "os"

// Component identifies which part of the core emitted a log record, so a
// caller can raise or lower verbosity per concern instead of globally.
type Component int

const (
	ComponentAll Component = iota
	ComponentSelection
	ComponentRetry
	ComponentSession
)

var componentEnvVars = map[Component]string{
	ComponentAll:       "GODRIVER_LOG_ALL",
	ComponentSelection: "GODRIVER_LOG_SELECTION",
	ComponentRetry:     "GODRIVER_LOG_RETRY",
	ComponentSession:   "GODRIVER_LOG_SESSION",
}

func envComponentLevels() map[Component]Level {
	levels := make(map[Component]Level, len(componentEnvVars))
	for component, envVar := range componentEnvVars {
		if v, ok := os.LookupEnv(envVar); ok {
			levels[component] = parseLevel(v)
		}
	}
	return levels
}
