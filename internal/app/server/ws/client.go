package ws

import (
	"context"
	"dmchat/internal/core/contracts"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RuntimeClient is the registry handle for one socket. Send never
// blocks: a full buffer drops the event.
type RuntimeClient struct {
	id     string
	ws     *WebSocket
	out    chan []byte
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewClient(ws *WebSocket) *RuntimeClient {
	c := newRuntimeClient(ws, ws.opts.SendBuffer)
	go c.writeLoop(ws.opts.PingInterval)
	return c
}

func newRuntimeClient(ws *WebSocket, buffer int) *RuntimeClient {
	if buffer <= 0 {
		buffer = 256
	}
	return &RuntimeClient{
		id:  uuid.NewString(),
		ws:  ws,
		out: make(chan []byte, buffer),
	}
}

func (c *RuntimeClient) ID() string { return c.id }

func (c *RuntimeClient) Send(_ context.Context, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return contracts.ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return contracts.ErrSendDropped
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.out)
		c.mu.Unlock()
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

func (c *RuntimeClient) writeLoop(pingInterval time.Duration) {
	defer c.Close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ws.Context().Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				return
			}
		}
	}
}

var _ contracts.Client = (*RuntimeClient)(nil)
