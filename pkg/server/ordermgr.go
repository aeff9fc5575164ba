package server

import (
	"fmt"
	"slices"
	"sync"

	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/order"
)

// OrderSubscriber receives assigned orders. A subscriber registers one unit
// of demand per Subscribe call and may hold several at once.
type OrderSubscriber interface {
	ID() string
	PushOrder(o order.Order)
}

// OrderManager owns the pending-order FIFO, the subscription FIFO and the
// assignment matching between them. An order id is at any moment in at most
// one of: the pending queue or the assigned set.
type OrderManager struct {
	mu sync.Mutex

	// onAssign fires after each assignment, outside any per-subscriber
	// state. Set once at server startup.
	onAssign func(order.Order)

	orders      map[string]order.Order
	subscribers map[string]OrderSubscriber

	orderq []string
	subq   []string
}

// NewOrderManager creates an empty order manager.
func NewOrderManager() *OrderManager {
	return &OrderManager{
		orders:      make(map[string]order.Order),
		subscribers: make(map[string]OrderSubscriber),
	}
}

// SetOnAssign installs the assignment hook. It fires for every assignment
// regardless of which subscriber receives the order.
func (m *OrderManager) SetOnAssign(f func(order.Order)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAssign = f
}

// Orders returns a snapshot of all known orders.
func (m *OrderManager) Orders() []order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}

// Subscribe records one unit of demand for the subscriber and drains.
func (m *OrderManager) Subscribe(sub OrderSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[sub.ID()] = sub
	m.subq = append(m.subq, sub.ID())
	m.drain()
}

// Unsubscribe removes all outstanding demand for the subscriber and drops
// its handle. Orders already assigned to it are untouched.
func (m *OrderManager) Unsubscribe(sub OrderSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, sub.ID())
	m.subq = slices.DeleteFunc(m.subq, func(id string) bool { return id == sub.ID() })
}

// AddOrder places the order in the pending queue and drains.
func (m *OrderManager) AddOrder(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	m.orderq = append(m.orderq, o.ID)
	metrics.OrdersPending.Inc()
	m.drain()
}

// CancelOrder removes the order from the queue and the order table,
// returning the last known value. Permitted in any state.
func (m *OrderManager) CancelOrder(id string) (order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.orderq, id) {
		metrics.OrdersPending.Dec()
	}
	m.orderq = slices.DeleteFunc(m.orderq, func(qid string) bool { return qid == id })
	o, ok := m.orders[id]
	delete(m.orders, id)
	return o, ok
}

// CompleteOrderID transitions the order to Completed, removes it from the
// order table and returns the completed value.
func (m *OrderManager) CompleteOrderID(id string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("unknown order: %s", id)
	}
	completed, err := o.Complete()
	if err != nil {
		return order.Order{}, err
	}
	delete(m.orders, id)
	return completed, nil
}

// UnassignOrder returns a currently assigned order to the front of the
// pending queue and drains. Unknown or unassigned orders are ignored.
func (m *OrderManager) UnassignOrder(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || !o.IsAssigned() {
		return
	}
	unassigned, err := o.Unassign()
	if err != nil {
		return
	}
	m.orders[id] = unassigned
	m.orderq = append([]string{id}, m.orderq...)
	metrics.OrdersPending.Inc()
	m.drain()
}

// drain matches pending orders to outstanding demand, strictly FIFO on both
// sides. Callers must hold the mutex.
func (m *OrderManager) drain() {
	for len(m.orderq) > 0 && len(m.subq) > 0 {
		oid := m.orderq[0]
		m.orderq = m.orderq[1:]
		sid := m.subq[0]
		m.subq = m.subq[1:]

		sub := m.subscribers[sid]
		assigned, err := m.orders[oid].Assign(sub.ID())
		if err != nil {
			// pending queue only ever holds pending orders
			continue
		}
		m.orders[oid] = assigned
		metrics.OrdersPending.Dec()
		sub.PushOrder(assigned)
		if m.onAssign != nil {
			m.onAssign(assigned)
		}
		// drop the handle once its subscription is exhausted
		if !slices.Contains(m.subq, sid) {
			delete(m.subscribers, sid)
		}
	}
}
