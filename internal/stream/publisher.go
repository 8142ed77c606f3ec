// Package stream publishes overlay frames to an external viewer over
// WebSocket. Frames are fire-and-forget and dropped when the viewer falls
// behind; the session hello is acknowledged. The viewer may send control
// commands back.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/overmark/overmark/pkg/streaming"
)

const instrumentationName = "github.com/overmark/overmark/internal/stream"

// Config holds WebSocket publisher configuration.
type Config struct {
	URL    string
	Secret string
	Host   string // reported in hello
}

// Publisher streams frames to one viewer.
type Publisher struct {
	conn *connection
	cfg  Config

	sent    metric.Int64Counter
	dropped metric.Int64Counter
}

// New creates a publisher. Uses the global OTel meter for metrics (no-op if
// not configured).
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := otel.Meter(instrumentationName)
	p := &Publisher{cfg: cfg}

	var err error
	p.sent, err = m.Int64Counter(
		"stream.messages.sent",
		metric.WithDescription("Messages queued to the viewer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}
	p.dropped, err = m.Int64Counter(
		"stream.messages.dropped",
		metric.WithDescription("Messages dropped due to full send queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	p.conn = newConnection(logger, func() {
		p.dropped.Add(context.Background(), 1)
	})
	return p, nil
}

// OnCommand installs the receiver for viewer commands. It runs on the read
// goroutine and must not block; set it before Init.
func (p *Publisher) OnCommand(fn func(streaming.CommandPayload)) {
	p.conn.onCommand = fn
}

// Init connects to the viewer.
func (p *Publisher) Init() error {
	return p.conn.dial(p.cfg.URL, p.cfg.Secret)
}

// Close sends bye without waiting and disconnects.
func (p *Publisher) Close() error {
	if data, err := marshalEnvelope(streaming.TypeBye, nil); err == nil {
		p.conn.send(data)
	}
	return p.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (p *Publisher) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if p.conn.send(data) {
		p.sent.Add(context.Background(), 1)
	}
	return nil
}

// Hello opens the session and waits for the viewer's ack. The message is
// cached and replayed after reconnects.
func (p *Publisher) Hello(scripts []streaming.ScriptInfo) error {
	data, err := marshalEnvelope(streaming.TypeHello, streaming.HelloPayload{Host: p.cfg.Host, Scripts: scripts})
	if err != nil {
		return err
	}

	p.conn.mu.Lock()
	p.conn.hello = data
	p.conn.mu.Unlock()

	return p.conn.sendAndWait(data, streaming.TypeHello, ackTimeout)
}

// PublishFrame queues a frame. It never blocks the frame loop.
func (p *Publisher) PublishFrame(frame streaming.FramePayload) error {
	return p.sendEnvelope(streaming.TypeFrame, frame)
}

// PublishScripts queues a script status listing.
func (p *Publisher) PublishScripts(scripts []streaming.ScriptInfo) error {
	return p.sendEnvelope(streaming.TypeScripts, scripts)
}
