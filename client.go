package cantemp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Client owns an adapter and fans incoming frames out to subscribers.
type Client struct {
	fh      *frameHandler
	adapter Adapter
	errChan chan error

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// New opens the adapter and starts the fan-out hub. The client owns the
// adapter from here on; Close shuts both down.
func New(ctx context.Context, adapter Adapter) (*Client, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter is nil")
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		fh:      newFrameHandler(adapter.Recv()),
		adapter: adapter,
		errChan: make(chan error, 10),
		cancel:  cancel,
	}
	if err := adapter.Open(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open adapter %s: %w", adapter.Name(), err)
	}
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		c.fh.run(ctx)
		return nil
	})
	errg.Go(func() error {
		return c.watchErrors(ctx)
	})
	go errg.Wait()
	return c, nil
}

func (c *Client) Adapter() Adapter {
	return c.adapter
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.fh.Close()
		err = c.adapter.Close()
	})
	return err
}

// Err exposes adapter errors that subscribers may want to act on.
func (c *Client) Err() <-chan error {
	return c.errChan
}

// watchErrors forwards adapter errors to the client's error channel so
// the adapter's own channel has a single consumer.
func (c *Client) watchErrors(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.adapter.Err():
			if err == nil {
				continue
			}
			select {
			case c.errChan <- err:
			default:
			}
			if !IsRecoverable(err) {
				return err
			}
		}
	}
}

// Subscribe returns a subscription delivering frames matching the given
// identifiers. No identifiers means all frames.
func (c *Client) Subscribe(ctx context.Context, identifiers ...uint32) *Sub {
	sub := &Sub{
		ctx:         ctx,
		c:           c,
		identifiers: identifiers,
		callback:    make(chan *Frame, 100),
	}
	c.fh.register <- sub
	return sub
}

type Sub struct {
	ctx         context.Context
	c           *Client
	errcount    uint16
	identifiers []uint32
	callback    chan *Frame
	closeOnce   sync.Once
}

func (s *Sub) Close() {
	s.closeOnce.Do(func() {
		s.c.fh.unregister <- s
	})
}

func (s *Sub) Chan() <-chan *Frame {
	return s.callback
}

func (s *Sub) Wait(ctx context.Context) (*Frame, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout: %w", ctx.Err())
	case frame, ok := <-s.callback:
		if !ok {
			return nil, ErrResponsechannelClosed
		}
		return frame, nil
	}
}

// frameHandler takes care of fanning out incoming frames to any subs
type frameHandler struct {
	subs       map[*Sub]bool
	register   chan *Sub
	unregister chan *Sub
	incoming   <-chan *Frame
	close      chan struct{}
	closeOnce  sync.Once
}

func newFrameHandler(incoming <-chan *Frame) *frameHandler {
	return &frameHandler{
		subs:       make(map[*Sub]bool),
		register:   make(chan *Sub, 10),
		unregister: make(chan *Sub, 10),
		close:      make(chan struct{}),
		incoming:   incoming,
	}
}

func (h *frameHandler) run(ctx context.Context) {
	for {
		select {
		case <-h.close:
			return
		case <-ctx.Done():
			return
		case sub := <-h.register:
			h.subs[sub] = true
		case sub := <-h.unregister:
			h.unsub(sub)
		case frame, ok := <-h.incoming:
			if !ok {
				// Source ended. Closing the subscriber channels tells
				// consumers the stream is complete.
				for sub := range h.subs {
					h.unsub(sub)
				}
				return
			}
			h.fanout(frame)
		}
	}
}

func (h *frameHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.close)
	})
}

func (h *frameHandler) fanout(frame *Frame) {
outer:
	for sub := range h.subs {
		select {
		case <-sub.ctx.Done():
			h.unsub(sub)
			continue
		default:
			if len(sub.identifiers) == 0 {
				h.deliver(sub, frame)
				continue
			}
			for _, id := range sub.identifiers {
				if id == frame.Identifier {
					h.deliver(sub, frame)
					continue outer
				}
			}
		}
	}
}

func (h *frameHandler) unsub(sub *Sub) {
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.callback)
	}
}

func (h *frameHandler) deliver(sub *Sub, frame *Frame) {
	select {
	case sub.callback <- frame:
	default:
		sub.errcount++
	}
	if sub.errcount > 20 {
		delete(h.subs, sub)
	}
}
