package server

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// Command parses its parameters and executes against a connection handler.
type Command interface {
	// Name is the canonical command name; lookup is case-insensitive.
	Name() string
	// ParseParams validates the raw params object, returning the parsed
	// form or a ParamError.
	ParseParams(params map[string]any) (any, error)
	// Execute runs the command with the parsed params.
	Execute(h *Handler, params any) error
}

var commands = map[string]Command{}

func registerCommand(c Command) {
	name := strings.ToLower(c.Name())
	if _, ok := commands[name]; ok {
		panic("command name already registered: " + name)
	}
	commands[name] = c
}

func init() {
	registerCommand(subscribeCommand{})
	registerCommand(unsubscribeCommand{})
	registerCommand(orderCreateCommand{})
	registerCommand(orderAssignCommand{})
	registerCommand(orderCompleteCommand{})
	registerCommand(orderUnassignCommand{})
	registerCommand(orderCancelCommand{})
}

// lookupCommand resolves a command by its wire name.
func lookupCommand(v any) (Command, *protocol.Error) {
	name, err := protocol.CommandName(v)
	if err != nil {
		return nil, protocol.ClientErrorf("Invalid command name.")
	}
	c, ok := commands[strings.ToLower(name)]
	if !ok {
		return nil, protocol.ClientErrorf("No such command.")
	}
	return c, nil
}

// requireParams rejects parameters outside the allowed set.
func requireParams(params map[string]any, allowed ...string) error {
	for key := range params {
		if !slices.Contains(allowed, key) {
			return protocol.ParamErrorf("unexpected parameter: %s", key)
		}
	}
	return nil
}

// Subscribe registers the connection's event filter.
type subscribeCommand struct{}

func (subscribeCommand) Name() string { return "Subscribe" }

func (subscribeCommand) ParseParams(params map[string]any) (any, error) {
	if err := requireParams(params, "events"); err != nil {
		return nil, err
	}
	raw, ok := params["events"].([]any)
	if !ok {
		return nil, protocol.ParamErrorf("events is not a list")
	}
	events := make([]string, 0, len(raw))
	for _, v := range raw {
		name, ok := protocol.LookupEventName(v)
		if !ok {
			return nil, protocol.ParamErrorf("unknown event: %v", v)
		}
		events = append(events, name)
	}
	return events, nil
}

func (subscribeCommand) Execute(h *Handler, params any) error {
	h.server.eventmgr.Add(h, params.([]string))
	h.server.eventmgr.PushEvent(protocol.NewEvent(protocol.EventSubscribe, nil))
	return nil
}

// Unsubscribe drops the connection's event subscription.
type unsubscribeCommand struct{}

func (unsubscribeCommand) Name() string { return "Unsubscribe" }

func (unsubscribeCommand) ParseParams(params map[string]any) (any, error) {
	if err := requireParams(params); err != nil {
		return nil, err
	}
	return nil, nil
}

func (unsubscribeCommand) Execute(h *Handler, _ any) error {
	h.server.eventmgr.Discard(h)
	h.server.eventmgr.PushEvent(protocol.NewEvent(protocol.EventUnsubscribe, nil))
	return nil
}

// OrderCreate adds a new order to the queue.
type orderCreateCommand struct{}

func (orderCreateCommand) Name() string { return "OrderCreate" }

func (orderCreateCommand) ParseParams(params map[string]any) (any, error) {
	if err := requireParams(params, "order"); err != nil {
		return nil, err
	}
	obj, ok := params["order"].(map[string]any)
	if !ok {
		return nil, protocol.ParamErrorf("order is not an object")
	}
	return order.FromObj(obj), nil
}

func (orderCreateCommand) Execute(h *Handler, params any) error {
	o := params.(order.Order)
	h.server.ordermgr.AddOrder(o)
	metrics.OrdersCreated.Inc()
	h.server.eventmgr.PushEvent(protocol.NewEvent(
		protocol.EventOrderCreated, map[string]any{"order_id": o.ID}))
	return nil
}

// OrderAssign registers one unit of demand for the connection.
type orderAssignCommand struct{}

func (orderAssignCommand) Name() string { return "OrderAssign" }

func (orderAssignCommand) ParseParams(params map[string]any) (any, error) {
	if err := requireParams(params); err != nil {
		return nil, err
	}
	return nil, nil
}

func (orderAssignCommand) Execute(h *Handler, _ any) error {
	h.server.eventmgr.PushEvent(protocol.NewEvent(protocol.EventOrderWaiting, nil))
	h.server.ordermgr.Subscribe(h)
	return nil
}

// OrderComplete reports completion of an assigned order.
type orderCompleteCommand struct{}

type orderCompleteParams struct {
	orderID string
	result  string
}

func (orderCompleteCommand) Name() string { return "OrderComplete" }

func (orderCompleteCommand) ParseParams(params map[string]any) (any, error) {
	if err := requireParams(params, "order_id", "result"); err != nil {
		return nil, err
	}
	raw, ok := params["order_id"].(string)
	if !ok {
		return nil, protocol.ParamErrorf("order_id is not a string")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, protocol.ParamErrorf("%s", err)
	}
	result, _ := params["result"].(string)
	return orderCompleteParams{orderID: id.String(), result: result}, nil
}

func (orderCompleteCommand) Execute(h *Handler, params any) error {
	p := params.(orderCompleteParams)
	if _, err := h.server.ordermgr.CompleteOrderID(p.orderID); err != nil {
		return protocol.CommandErrorf("%s", err)
	}
	metrics.OrdersCompleted.Inc()
	if p.result != "" {
		h.log.Info().Str("order_id", p.orderID).Str("result", p.result).Msg("order completed")
	}
	h.server.eventmgr.PushEvent(protocol.NewEvent(
		protocol.EventOrderCompleted, map[string]any{"order_id": p.orderID}))
	return nil
}

// OrderUnassign returns an assigned order to the pending queue.
type orderUnassignCommand struct{}

func (orderUnassignCommand) Name() string { return "OrderUnassign" }

func (orderUnassignCommand) ParseParams(params map[string]any) (any, error) {
	return parseOrderID(params)
}

func (orderUnassignCommand) Execute(h *Handler, params any) error {
	id := params.(string)
	h.server.ordermgr.UnassignOrder(id)
	metrics.OrdersUnassigned.Inc()
	h.server.eventmgr.PushEvent(protocol.NewEvent(
		protocol.EventOrderUnassigned, map[string]any{"order_id": id}))
	return nil
}

// OrderCancel removes an order in any state.
type orderCancelCommand struct{}

func (orderCancelCommand) Name() string { return "OrderCancel" }

func (orderCancelCommand) ParseParams(params map[string]any) (any, error) {
	return parseOrderID(params)
}

func (orderCancelCommand) Execute(h *Handler, params any) error {
	id := params.(string)
	h.server.ordermgr.CancelOrder(id)
	metrics.OrdersCancelled.Inc()
	h.server.eventmgr.PushEvent(protocol.NewEvent(
		protocol.EventOrderCancelled, map[string]any{"order_id": id}))
	return nil
}

func parseOrderID(params map[string]any) (any, error) {
	if err := requireParams(params, "order_id"); err != nil {
		return nil, err
	}
	raw, ok := params["order_id"].(string)
	if !ok {
		return nil, protocol.ParamErrorf("order_id is not a string")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, protocol.ParamErrorf("%s", err)
	}
	return id.String(), nil
}
