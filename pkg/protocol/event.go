package protocol

import "strings"

// Registered event names.
const (
	EventSubscribe       = "Subscribe"
	EventUnsubscribe     = "Unsubscribe"
	EventOrderCreated    = "OrderCreated"
	EventOrderWaiting    = "OrderWaiting"
	EventOrderAssigned   = "OrderAssigned"
	EventOrderCompleted  = "OrderCompleted"
	EventOrderUnassigned = "OrderUnassigned"
	EventOrderCancelled  = "OrderCancelled"
)

var eventNames = map[string]string{}

func init() {
	for _, name := range []string{
		EventSubscribe, EventUnsubscribe,
		EventOrderCreated, EventOrderWaiting, EventOrderAssigned,
		EventOrderCompleted, EventOrderUnassigned, EventOrderCancelled,
	} {
		eventNames[strings.ToLower(name)] = name
	}
}

// LookupEventName resolves a wire event name case-insensitively (numeric
// names are stringified first) to its canonical form.
func LookupEventName(v any) (string, bool) {
	name, err := CommandName(v)
	if err != nil {
		return "", false
	}
	canonical, ok := eventNames[strings.ToLower(name)]
	return canonical, ok
}

// Event is a server-originated notification.
type Event struct {
	Name   string
	Params map[string]any
}

// NewEvent builds an event with the given canonical name and params.
func NewEvent(name string, params map[string]any) Event {
	if params == nil {
		params = map[string]any{}
	}
	return Event{Name: name, Params: params}
}

// ToObj returns the wire object form of the event.
func (e Event) ToObj() map[string]any {
	params := e.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{"event": e.Name, "params": params}
}

// Equal reports whether two events have the same name and parameters.
func (e Event) Equal(other Event) bool {
	if e.Name != other.Name || len(e.Params) != len(other.Params) {
		return false
	}
	for k, v := range e.Params {
		if other.Params[k] != v {
			return false
		}
	}
	return true
}
