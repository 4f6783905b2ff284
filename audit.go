package gateway

import "github.com/KuolDimDeng/Dott-Project-sub054/audit"

// Audit types re-exported so callers wiring a Builder need not import the
// audit package.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
	AuditType  = audit.Type
)

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
)
