package cantemp

import (
	"log"
	"path/filepath"
	"runtime"
	"sync"
)

type BaseAdapter struct {
	name     string
	cfg      *AdapterConfig
	recvChan chan *Frame

	errChan chan error

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewBaseAdapter(name string, cfg *AdapterConfig) *BaseAdapter {
	return &BaseAdapter{
		name:      name,
		cfg:       cfg,
		recvChan:  make(chan *Frame, 1024),
		errChan:   make(chan error, 10),
		closeChan: make(chan struct{}),
	}
}

// Name returns the adapter name.
func (base *BaseAdapter) Name() string {
	return base.name
}

// Return the receive channel for the adapter
func (base *BaseAdapter) Recv() <-chan *Frame {
	return base.recvChan
}

// Return the error channel for the adapter
func (base *BaseAdapter) Err() <-chan error {
	return base.errChan
}

func (base *BaseAdapter) Close() {
	base.closeOnce.Do(func() {
		close(base.closeChan)
	})
}

// SetError reports an adapter error without blocking the reader.
func (base *BaseAdapter) SetError(err error) {
	select {
	case base.errChan <- err:
	default:
		_, file, no, ok := runtime.Caller(1)
		if ok {
			log.Printf("%s:%d error channel full: %v", filepath.Base(file), no, err)
		} else {
			log.Printf("error channel full: %v", err)
		}
	}
}

// deliver hands a frame to the consumer. Reception never blocks on
// analysis: when the channel is full the newest frame is dropped.
func (base *BaseAdapter) deliver(f *Frame) {
	select {
	case base.recvChan <- f:
	default:
		base.SetError(ErrDroppedFrame)
	}
}
