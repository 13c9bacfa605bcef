package audit

import (
	"context"
	"sync"
	"time"

	"github.com/quarryhq/quarry/pkg/observability"
)

const defaultBufferSize = 256

// Logger buffers audit events and writes them to the store from a
// background worker. Record never blocks the request path; when the
// buffer is full the event is dropped and counted in the service log.
type Logger struct {
	store  *Store
	log    *observability.Logger
	events chan *Event

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewLogger creates an audit logger and starts its worker
func NewLogger(store *Store, log *observability.Logger, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	l := &Logger{
		store:  store,
		log:    log,
		events: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

// Record queues an event for persistence
func (l *Logger) Record(event *Event) {
	select {
	case l.events <- event:
	case <-l.done:
	default:
		l.log.WithField("action", string(event.Action)).Warn("audit buffer full, event dropped")
	}
}

// Close drains pending events and stops the worker
func (l *Logger) Close() {
	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}

func (l *Logger) worker() {
	defer l.wg.Done()
	defer observability.RecoverPanic(l.log, "audit worker")

	for {
		select {
		case event := <-l.events:
			l.persist(event)
		case <-l.done:
			for {
				select {
				case event := <-l.events:
					l.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) persist(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Insert(ctx, event); err != nil {
		l.log.WithError(err).Error("failed to persist audit event")
	}
}
