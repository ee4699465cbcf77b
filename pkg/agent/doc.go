// Package agent runs one agent's worker loop: it watches the agent's inbox,
// turns each new envelope into a generation request and publishes the
// response to the agent's outbox.
//
// Invariants:
// - Cycles never overlap; at most one provider call is in flight per worker.
// - Every detected change produces exactly one outbox artifact, an error
//   response when generation fails.
// - Every detected change produces exactly one processed activity record.
//
// Usage:
//
//	w, _ := agent.New(agent.Config{AgentID: "planner", Profile: profile, ...})
//	_ = w.Run(ctx, poller.Options{Interval: 2 * time.Second})
package agent
