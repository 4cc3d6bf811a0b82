package events

// Event is an audit record appended by state-mutating operations.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Sink receives events as operations apply.
type Sink interface {
	AppendEvent(evt *Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(evt *Event)

// AppendEvent implements Sink.
func (f SinkFunc) AppendEvent(evt *Event) {
	if f != nil {
		f(evt)
	}
}
