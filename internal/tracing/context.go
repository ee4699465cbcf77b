// Package tracing carries per-cycle identifiers through a context so that
// every log line of one poll cycle can be correlated.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// CycleIDKey is the context key for the poll cycle ID
	CycleIDKey ContextKey = "cycle_id"
	// LoopKey is the context key for the loop name (router or agent id)
	LoopKey ContextKey = "loop"
)

// NewCycleID generates a new cycle ID
func NewCycleID() string {
	return uuid.New().String()
}

// WithCycleID adds a cycle ID to the context
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CycleIDKey, cycleID)
}

// WithLoop adds the loop name to the context
func WithLoop(ctx context.Context, loop string) context.Context {
	return context.WithValue(ctx, LoopKey, loop)
}

// GetCycleID retrieves the cycle ID from the context
func GetCycleID(ctx context.Context) string {
	if cycleID, ok := ctx.Value(CycleIDKey).(string); ok {
		return cycleID
	}
	return ""
}

// GetLoop retrieves the loop name from the context
func GetLoop(ctx context.Context) string {
	if loop, ok := ctx.Value(LoopKey).(string); ok {
		return loop
	}
	return ""
}

// NewCycleContext starts a new cycle for loop
func NewCycleContext(ctx context.Context, loop string) context.Context {
	ctx = WithLoop(ctx, loop)
	return WithCycleID(ctx, NewCycleID())
}

// LoggerFromContext adds the tracing fields found in ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	logger := baseLogger
	if cycleID := GetCycleID(ctx); cycleID != "" {
		logger = logger.With().Str("cycle_id", cycleID).Logger()
	}
	if loop := GetLoop(ctx); loop != "" {
		logger = logger.With().Str("loop", loop).Logger()
	}
	return logger
}
