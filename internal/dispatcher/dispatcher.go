// Package dispatcher routes control commands (enable a script, persist an
// element override, ...) to their handlers. Commands may be queued from any
// goroutine and are run by whoever drains the queue, so handlers touching
// the engine execute on the frame loop.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Command is one control request.
type Command struct {
	Name     string
	Args     []string
	Received time.Time
}

// HandlerFunc executes a command.
type HandlerFunc func(Command) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged  bool
	minArgs int
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// MinArgs rejects commands with fewer arguments before the handler runs.
func MinArgs(n int) Option {
	return func(c *config) {
		c.minArgs = n
	}
}

// Dispatcher routes commands to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	// logged marks handlers that report their own failures
	logged map[string]bool
	logger Logger
	queue  chan Command

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// New creates a Dispatcher whose queue holds up to queueSize commands.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, queueSize int) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logged:   make(map[string]bool),
		queue:    make(chan Command, queueSize),
		logger:   logger,
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of commands in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.queueSize, int64(len(d.queue)))
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.commands.dropped",
		metric.WithDescription("Total commands dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the named command with optional configuration.
// Handlers are registered before commands start flowing.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.minArgs > 0 {
		handler = withMinArgs(name, cfg.minArgs, handler)
	}
	if cfg.logged {
		handler = d.withLogging(name, handler)
	}
	d.handlers[name] = handler
	d.logged[name] = cfg.logged
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Dispatch runs the command's handler on the calling goroutine.
func (d *Dispatcher) Dispatch(c Command) error {
	h, ok := d.handlers[c.Name]
	if !ok {
		return fmt.Errorf("unknown command: %s", c.Name)
	}

	attrs := metric.WithAttributes(attribute.String("command", c.Name))
	err := h(c)
	d.processed.Add(context.Background(), 1, attrs)
	if err != nil {
		d.failed.Add(context.Background(), 1, attrs)
	}
	return err
}

// Enqueue queues a command without blocking. Safe for concurrent use; a
// full queue drops the command and reports false.
func (d *Dispatcher) Enqueue(c Command) bool {
	if c.Received.IsZero() {
		c.Received = time.Now()
	}
	select {
	case d.queue <- c:
		return true
	default:
		d.dropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("command", c.Name)))
		return false
	}
}

// Drain dispatches every queued command and returns how many ran. Errors
// are logged, not returned; handlers registered with Logged log their own.
func (d *Dispatcher) Drain() int {
	n := 0
	for {
		select {
		case c := <-d.queue:
			if err := d.Dispatch(c); err != nil && !d.logged[c.Name] {
				d.logger.Error("command failed", "command", c.Name, "error", err)
			}
			n++
		default:
			return n
		}
	}
}

func withMinArgs(name string, n int, h HandlerFunc) HandlerFunc {
	return func(c Command) error {
		if len(c.Args) < n {
			return fmt.Errorf("%s: expected at least %d args, got %d", name, n, len(c.Args))
		}
		return h(c)
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(c Command) error {
		start := time.Now()
		d.logger.Debug("handling command", "command", name, "args", len(c.Args))

		err := h(c)

		if err != nil {
			d.logger.Error("command failed", "command", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", name, "duration", time.Since(start))
		}
		return err
	}
}
