package phonebook

import (
	"io"

	internalaudit "github.com/MrEthical07/phonebook/internal/audit"
)

// AuditEvent is one security-relevant occurrence. Tokens and passwords
// never appear in it.
type AuditEvent = internalaudit.Event

// AuditSink receives events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MultiSink forwards each event to every sink in order.
type MultiSink = internalaudit.MultiSink
