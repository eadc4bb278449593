package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "zkbridge.platform"

// NatsPublisher publishes events as JSON to subject "<prefix>.<platform id>.<event type>".
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNatsPublisher(url, subjectPrefix string) (*NatsPublisher, error) {
	if url == "" {
		return nil, errors.New("nats url is empty")
	}
	conn, err := nats.Connect(url,
		nats.Name("zkbridge"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warning("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return newNatsPublisher(conn, subjectPrefix), nil
}

func newNatsPublisher(conn *nats.Conn, subjectPrefix string) *NatsPublisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NatsPublisher{conn: conn, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

func (p *NatsPublisher) Publish(ev *Event) error {
	payload, err := ev.Bytes()
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, ev), payload); err != nil {
		return fmt.Errorf("publishing %s event: %w", ev.Type, err)
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NatsPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	err := p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
	return err
}

// Subject returns the subject event is published to.
func Subject(prefix string, ev *Event) string {
	id := strings.TrimPrefix(ev.PlatformID.String(), "0x")
	return fmt.Sprintf("%s.%s.%s", prefix, id, ev.Type)
}
