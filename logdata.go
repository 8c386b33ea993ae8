package haystack

// Field names used when an event-style log is normalized into fields.
const (
	LogFieldEvent   = "event"
	LogFieldPayload = "payload"
)

// LogData is one timestamped log record attached to a span.
type LogData struct {
	fields    map[string]any
	Timestamp int64 // microseconds since the Unix epoch
}

// NewLogData builds a record from a field map. The map is copied.
func NewLogData(timestamp int64, fields map[string]any) LogData {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return LogData{Timestamp: timestamp, fields: cp}
}

// NewEventLogData builds a record from an event name and optional payload.
// A nil payload is omitted.
func NewEventLogData(timestamp int64, event string, payload any) LogData {
	fields := map[string]any{LogFieldEvent: event}
	if payload != nil {
		fields[LogFieldPayload] = payload
	}
	return LogData{Timestamp: timestamp, fields: fields}
}

// Fields returns a copy of the record's fields.
func (l LogData) Fields() map[string]any {
	cp := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		cp[k] = v
	}
	return cp
}

// Event returns the event name if the record carries one.
func (l LogData) Event() (string, bool) {
	ev, ok := l.fields[LogFieldEvent].(string)
	return ev, ok
}

// Payload returns the event payload, or nil.
func (l LogData) Payload() any {
	return l.fields[LogFieldPayload]
}
