// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger is the core's ambient logging facility. It is not part
// of the execution pipeline's correctness story; it exists so the
// Coordinator, Retry Policy, and Session Binding can narrate what they
// did (server selected, retry armed, session unpinned) without forcing
// a particular logging framework on every caller.
//
// A LogSink seam with an os.Stderr default, and per-component levels
// sourced from environment variables.
package logger

import (
	"io"
	"log"
	"os"
)

// LogSink is the seam a caller implements to receive the core's log
// records. Its shape matches logr.LogSink's Info method so that
// github.com/go-logr/zapr (and therefore go.uber.org/zap) can be used
// directly as a sink without an adapter.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
}

// Logger dispatches log records to a LogSink, gated by a per-component
// level. The zero value is not usable; construct one with New.
type Logger struct {
	componentLevels map[Component]Level
	sink            LogSink
}

// New constructs a Logger. A nil sink falls back to writing to
// os.Stderr. componentLevels, if given, override whatever the
// environment specifies.
func New(sink LogSink, componentLevels ...map[Component]Level) *Logger {
	levels := envComponentLevels()
	for _, overrides := range componentLevels {
		for c, l := range overrides {
			levels[c] = l
		}
	}
	if sink == nil {
		sink = newWriterSink(os.Stderr)
	}
	return &Logger{componentLevels: levels, sink: sink}
}

// NewWithWriter constructs a Logger that writes plain lines to w instead
// of requiring a LogSink implementation.
func NewWithWriter(w io.Writer, componentLevels ...map[Component]Level) *Logger {
	return New(newWriterSink(w), componentLevels...)
}

// enabled reports whether component is configured to log at level.
func (l *Logger) enabled(component Component, level Level) bool {
	if lvl, ok := l.componentLevels[ComponentAll]; ok && lvl >= level && lvl != OffLevel {
		return true
	}
	lvl, ok := l.componentLevels[component]
	return ok && lvl >= level && lvl != OffLevel
}

// Debug logs msg at DebugLevel for component, if enabled.
func (l *Logger) Debug(component Component, msg string, keysAndValues ...interface{}) {
	if l == nil || !l.enabled(component, DebugLevel) {
		return
	}
	l.sink.Info(int(DebugLevel), msg, keysAndValues...)
}

// Info logs msg at InfoLevel for component, if enabled.
func (l *Logger) Info(component Component, msg string, keysAndValues ...interface{}) {
	if l == nil || !l.enabled(component, InfoLevel) {
		return
	}
	l.sink.Info(int(InfoLevel), msg, keysAndValues...)
}

type writerSink struct {
	log *log.Logger
}

func newWriterSink(w io.Writer) *writerSink {
	return &writerSink{log: log.New(w, "", log.LstdFlags)}
}

func (s *writerSink) Info(_ int, msg string, keysAndValues ...interface{}) {
	if len(keysAndValues) == 0 {
		s.log.Print(msg)
		return
	}
	s.log.Println(append([]interface{}{msg}, keysAndValues...)...)
}
