/*
Package server implements the igor control server: a TCP listener speaking
the framed JSON protocol, an order manager matching pending orders to
subscriber demand, and an event manager fanning state changes out to
observers.

# Order manager

Two FIFOs drive assignment: pending order ids and outstanding subscriber
demand (a subscriber appears once per unit of demand). Drain pops one of
each while both are non-empty, assigns the order, delivers it, and fires
the assignment hook. Tie-break is strictly FIFO on both sides.

A subscriber that disconnects drops its pending demand, but an order it
already holds stays assigned until an explicit OrderUnassign or
OrderCancel.

# Event manager

Subscribers carry a filter of event names; an empty filter means all
events. Delivery iterates over a snapshot so the table may be mutated
mid-delivery. Events reach a given subscriber in PushEvent call order.

# Concurrency

One goroutine per connection; both managers guard their state with a
mutex, so command execution against them runs to completion exactly as in
a single-threaded dispatch loop.
*/
package server
