// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewZapSink adapts a *zap.Logger into a LogSink via zapr, the same
// pairing the driver's own examples/_logger/zap wiring demonstrates for
// the public options.Logger API.
func NewZapSink(z *zap.Logger) LogSink {
	return zapr.NewLogger(z).GetSink()
}
