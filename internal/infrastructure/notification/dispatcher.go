package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/e-approval/internal/application/port"
	"go.uber.org/zap"
)

// AllEvents subscribes a sink to every notification event
const AllEvents = "*"

type sink struct {
	name     string
	notifier port.Notifier
}

// Dispatcher fans notifications out to the sinks subscribed to their event.
// It implements port.Notifier so the approval service sees a single notifier.
type Dispatcher struct {
	mu     sync.RWMutex
	sinks  map[string][]sink
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher with no sinks
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:  make(map[string][]sink),
		logger: logger,
	}
}

// Subscribe registers a named sink for an event type, or AllEvents
func (d *Dispatcher) Subscribe(event, name string, n port.Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sinks[event] = append(d.sinks[event], sink{name: name, notifier: n})
	d.logger.Info("Notification sink registered", zap.String("event", event), zap.String("sink", name))
}

// Sinks returns the names of the sinks that receive event
func (d *Dispatcher) Sinks(event string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	for _, s := range d.matching(event) {
		names = append(names, s.name)
	}
	return names
}

// Notify implements port.Notifier. Every matching sink runs even when an
// earlier one fails; the failures are joined.
func (d *Dispatcher) Notify(ctx context.Context, msg port.Notification) error {
	d.mu.RLock()
	sinks := d.matching(msg.Event)
	d.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := d.safeNotify(ctx, s, msg); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) matching(event string) []sink {
	out := make([]sink, 0, len(d.sinks[event])+len(d.sinks[AllEvents]))
	out = append(out, d.sinks[AllEvents]...)
	if event != AllEvents {
		out = append(out, d.sinks[event]...)
	}
	return out
}

// safeNotify runs a sink with panic recovery
func (d *Dispatcher) safeNotify(ctx context.Context, s sink, msg port.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
			d.logger.Error("Notification sink panic recovered",
				zap.String("event", msg.Event),
				zap.String("sink", s.name),
				zap.Any("panic", r))
		}
	}()

	return s.notifier.Notify(ctx, msg)
}
