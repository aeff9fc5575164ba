package order

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Timestamp layout for the created/assigned/completed fields. Matches
// RFC 2822 style local timestamps, e.g. "Mon, 02 Jan 2006 15:04:05 -0700".
const timeLayout = time.RFC1123Z

// OrderError reports an invalid lifecycle transition or malformed order.
type OrderError string

func (e OrderError) Error() string { return string(e) }

// Order is an immutable description of a unit of build work.
//
// Lifecycle: Pending -> Assigned -> Completed, with Assigned -> Pending via
// Unassign. Transitions are pure: each returns a new Order and never mutates
// the receiver.
type Order struct {
	ID         string
	Desc       string
	SpecURI    string
	SpecRef    string
	SourceURI  string
	SourceArgs []string
	Env        map[string]string
	Created    string
	Assigned   string
	Completed  string
	Worker     string
}

// New constructs a pending order. The id is generated and the created
// timestamp set; all other lifecycle fields start empty.
func New(desc, specURI, specRef, sourceURI string, sourceArgs []string, env map[string]string) Order {
	return Order{
		ID:         uuid.NewString(),
		Desc:       desc,
		SpecURI:    specURI,
		SpecRef:    specRef,
		SourceURI:  sourceURI,
		SourceArgs: sourceArgs,
		Env:        env,
		Created:    timestamp(),
	}
}

func timestamp() string {
	return time.Now().Format(timeLayout)
}

// FromObj builds an Order from its JSON object form. Unrecognised keys are
// ignored. A missing id or created stamp is filled in, mirroring
// construction of a fresh order.
func FromObj(obj map[string]any) Order {
	o := Order{
		ID:        str(obj["id"]),
		Desc:      str(obj["desc"]),
		SpecURI:   str(obj["spec_uri"]),
		SpecRef:   str(obj["spec_ref"]),
		SourceURI: str(obj["source_uri"]),
		Created:   str(obj["created"]),
		Assigned:  str(obj["assigned"]),
		Completed: str(obj["completed"]),
		Worker:    str(obj["worker"]),
	}
	if args, ok := obj["source_args"].([]any); ok {
		for _, a := range args {
			o.SourceArgs = append(o.SourceArgs, str(a))
		}
	}
	if env, ok := obj["env"].(map[string]any); ok {
		o.Env = make(map[string]string, len(env))
		for k, v := range env {
			o.Env[k] = str(v)
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Created == "" {
		o.Created = timestamp()
	}
	return o
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// ToObj returns the JSON object form of the order. Every field is present;
// unset lifecycle fields are null.
func (o Order) ToObj() map[string]any {
	obj := map[string]any{
		"id":          o.ID,
		"desc":        o.Desc,
		"spec_uri":    o.SpecURI,
		"spec_ref":    o.SpecRef,
		"source_uri":  o.SourceURI,
		"source_args": sliceObj(o.SourceArgs),
		"env":         envObj(o.Env),
		"created":     o.Created,
		"assigned":    nullable(o.Assigned),
		"completed":   nullable(o.Completed),
		"worker":      nullable(o.Worker),
	}
	return obj
}

func sliceObj(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func envObj(env map[string]string) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Equal reports whether two orders agree on every field.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.Desc == other.Desc &&
		o.SpecURI == other.SpecURI &&
		o.SpecRef == other.SpecRef &&
		o.SourceURI == other.SourceURI &&
		slices.Equal(o.SourceArgs, other.SourceArgs) &&
		maps.Equal(o.Env, other.Env) &&
		o.Created == other.Created &&
		o.Assigned == other.Assigned &&
		o.Completed == other.Completed &&
		o.Worker == other.Worker
}

// Pending reports whether the order has not yet been assigned.
func (o Order) Pending() bool { return o.Assigned == "" }

// IsAssigned reports whether the order is currently assigned to a worker.
func (o Order) IsAssigned() bool { return o.Assigned != "" && o.Completed == "" }

// IsCompleted reports whether the order has been completed.
func (o Order) IsCompleted() bool { return o.Completed != "" }

// Assign hands the order to the named worker.
func (o Order) Assign(worker string) (Order, error) {
	if o.Assigned != "" {
		return Order{}, OrderError("cannot assign an already-assigned order")
	}
	o.Assigned = timestamp()
	o.Worker = worker
	return o, nil
}

// Unassign resets the assignment, returning the order to the pending state.
func (o Order) Unassign() (Order, error) {
	if o.Assigned == "" {
		return Order{}, OrderError("cannot unassign an unassigned order")
	}
	if o.Completed != "" {
		return Order{}, OrderError("cannot unassign a completed order")
	}
	o.Assigned = ""
	o.Worker = ""
	return o, nil
}

// Complete records the completion time. Completing an already-completed
// order is a no-op returning an equal value.
func (o Order) Complete() (Order, error) {
	if o.Assigned == "" {
		return Order{}, OrderError("cannot complete an unassigned order")
	}
	if o.Completed != "" {
		return o, nil
	}
	o.Completed = timestamp()
	return o, nil
}
