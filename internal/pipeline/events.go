package pipeline

// EventType classifies entries in the run's ordered event stream.
type EventType string

const (
	EventStepStart EventType = "step_start"
	EventStepEnd   EventType = "step_end"
	EventInfo      EventType = "info"
	EventWarning   EventType = "warning"
	EventError     EventType = "error"
)

// Event is one entry in the stream. Events are appended in order and never
// reordered or dropped.
type Event struct {
	Type    EventType `json:"type"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
}

func StepStart(stage, message string) Event {
	return Event{Type: EventStepStart, Name: stage + ".start", Message: message}
}

func StepEnd(stage, message string) Event {
	return Event{Type: EventStepEnd, Name: stage + ".end", Message: message}
}

func Info(name, message string) Event {
	return Event{Type: EventInfo, Name: name, Message: message}
}

func Warn(name, message string) Event {
	return Event{Type: EventWarning, Name: name, Message: message}
}

func Error(name, message string) Event {
	return Event{Type: EventError, Name: name, Message: message}
}

type recorder struct {
	events []Event
}

func (r *recorder) emit(ev Event) {
	r.events = append(r.events, ev)
}
