package alerts

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// LogSink writes one warning per event to the default logger.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(ev Event) error {
	slog.Warn("alert fired",
		"id", ev.ID,
		"patient", ev.PatientID,
		"condition", ev.Condition,
		"timestamp", ev.Timestamp,
	)
	return nil
}

// Publisher is the subset of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on a subject.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink publishing to subject through pub.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

// DialNATS connects to url with reconnect handling logged through slog.
func DialNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("cardiowatch-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("alerts: nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("alerts: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("alerts: nats connect %q: %w", url, err)
	}
	return nc, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	return nil
}
