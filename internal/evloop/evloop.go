// Package evloop dispatches events received from providers to a handler.
package evloop

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/provider"
)

const DefEventChannelBufferSize = 512

// DefMaxConcurrentEvents is the max. number of events that are processed in
// parallel.
const DefMaxConcurrentEvents = 16

const loggerName = "event_loop"

type Handler interface {
	HandleEvent(context.Context, *provider.Event) error
}

// EvLoop receives events and passes them to a Handler.
// Events are handled asynchronously in go-routines.
type EvLoop struct {
	ch      chan *provider.Event
	logger  *zap.Logger
	handler Handler

	ctx      context.Context
	cancelFn context.CancelFunc

	sem       chan struct{}
	handlerWg sync.WaitGroup
	loopDone  chan struct{}
	deferFn   func()
}

// WithHandlerRoutineDeferFunc sets a function to be run when a go-routine
// that handles an event returns.
// It can be used to set a panic handler.
func WithHandlerRoutineDeferFunc(fn func()) func(*EvLoop) {
	return func(e *EvLoop) {
		e.deferFn = fn
	}
}

// WithMaxConcurrentEvents sets the max. number of events that are handled in
// parallel.
func WithMaxConcurrentEvents(n int) func(*EvLoop) {
	return func(e *EvLoop) {
		e.sem = make(chan struct{}, n)
	}
}

func New(handler Handler, opts ...func(*EvLoop)) *EvLoop {
	ctx, cancelFn := context.WithCancel(context.Background())

	evl := EvLoop{
		ch:       make(chan *provider.Event, DefEventChannelBufferSize),
		handler:  handler,
		logger:   zap.L().Named(loggerName),
		ctx:      ctx,
		cancelFn: cancelFn,
		sem:      make(chan struct{}, DefMaxConcurrentEvents),
		loopDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(&evl)
	}

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *provider.Event {
	return e.ch
}

// Start processes events until the event channel is closed.
func (e *EvLoop) Start() {
	defer close(e.loopDone)

	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for ev := range e.ch {
		logger := e.logger.With(ev.LogFields()...)
		logger.Debug("event received", logfields.Event("event_received"))

		select {
		case e.sem <- struct{}{}:
		case <-e.ctx.Done():
			logger.Info("event loop is terminating, event is dropped",
				logfields.Event("event_dropped"),
			)
			continue
		}

		e.handlerWg.Add(1)

		go func() {
			if e.deferFn != nil {
				defer e.deferFn()
			}

			defer e.handlerWg.Done()
			defer func() { <-e.sem }()

			if err := e.handler.HandleEvent(e.ctx, ev); err != nil {
				logger.Error("handling event failed",
					logfields.Event("event_handling_failed"),
					zap.Error(err),
				)
				return
			}

			logger.Debug("event handled", logfields.Event("event_handled"))
		}()
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

// Stop stops the event loop and waits until all handler go-routines
// terminated. Running handlers are cancelled.
// The event channel (Evloop.C()) will be closed.
// Stop must only be called after Start was called.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.cancelFn()
	<-e.loopDone

	e.logger.Debug(
		"waiting for event handlers to terminate",
		logfields.Event("eventloop_terminating"),
	)
	e.handlerWg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
