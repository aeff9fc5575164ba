package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// Client is a control connection for order creators and observers.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

// NewClient connects to the server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		scanner: protocol.NewScanner(conn, protocol.WorkerTerminator),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CreateOrder sends an OrderCreate command for the order.
func (c *Client) CreateOrder(o order.Order) error {
	return c.push(protocol.CommandObj("ordercreate", map[string]any{"order": o.ToObj()}))
}

// Subscribe registers an event filter; an empty list subscribes to all
// events.
func (c *Client) Subscribe(events []string) error {
	list := make([]any, len(events))
	for i, e := range events {
		list[i] = e
	}
	return c.push(protocol.CommandObj("subscribe", map[string]any{"events": list}))
}

// Unsubscribe drops the event subscription.
func (c *Client) Unsubscribe() error {
	return c.push(protocol.CommandObj("unsubscribe", nil))
}

// CancelOrder sends an OrderCancel for the given order id.
func (c *Client) CancelOrder(orderID string) error {
	return c.push(protocol.CommandObj("ordercancel", map[string]any{"order_id": orderID}))
}

// Next reads the next server frame, waiting up to timeout. A zero timeout
// waits forever.
func (c *Client) Next(timeout time.Duration) (map[string]any, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	for c.scanner.Scan() {
		frame := c.scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		var obj map[string]any
		if err := protocol.DecodeFrame(frame, &obj); err != nil {
			return nil, err
		}
		return obj, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("connection closed")
}

func (c *Client) push(obj any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, obj)
}
