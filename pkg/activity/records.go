package activity

import (
	"fmt"
	"strconv"
	"time"
)

// RouteRecord describes a message handed to an agent.
func RouteRecord(at time.Time, intent, agentID, envelopeID string, messageLen int, fellBack bool) Record {
	return Record{
		Time:  at,
		Actor: "router",
		Event: EventRouted,
		Fields: []Field{
			{Key: "intent", Value: intent},
			{Key: "agent", Value: agentID},
			{Key: "envelope", Value: envelopeID},
			{Key: "message_length", Value: strconv.Itoa(messageLen)},
			{Key: "fallback", Value: strconv.FormatBool(fellBack)},
		},
	}
}

// DispatchFailedRecord describes a routing attempt that produced no envelope.
func DispatchFailedRecord(at time.Time, intent, agentID string, err error) Record {
	return Record{
		Time:  at,
		Actor: "router",
		Event: EventDispatchFailed,
		Fields: []Field{
			{Key: "intent", Value: intent},
			{Key: "agent", Value: agentID},
			{Key: "error", Value: err.Error()},
		},
	}
}

// Processing summarizes one agent cycle.
type Processing struct {
	AgentID   string
	Model     string
	StartedAt time.Time
	Finished  time.Time
	Duration  time.Duration
	InputLen  int
	OutputLen int
	Err       error
}

// ProcessRecord describes one agent processing cycle.
func ProcessRecord(p Processing) Record {
	status := "ok"
	if p.Err != nil {
		status = "error"
	}

	fields := []Field{
		{Key: "model", Value: p.Model},
		{Key: "status", Value: status},
		{Key: "started", Value: p.StartedAt.Format(TimestampLayout)},
		{Key: "processing_time", Value: fmt.Sprintf("%.2fs", p.Duration.Seconds())},
		{Key: "input_length", Value: fmt.Sprintf("%d chars", p.InputLen)},
		{Key: "output_length", Value: fmt.Sprintf("%d chars", p.OutputLen)},
	}
	if p.Err != nil {
		fields = append(fields, Field{Key: "error", Value: p.Err.Error()})
	}

	return Record{
		Time:   p.Finished,
		Actor:  p.AgentID,
		Event:  EventProcessed,
		Fields: fields,
	}
}
