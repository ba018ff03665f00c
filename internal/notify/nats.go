package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix - префикс тем: arb.opportunity, arb.trade, arb.risk
const DefaultSubjectPrefix = "arb"

// NATSPublisher публикует события в NATS, тема = prefix.type
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher подключается к NATS
func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger = logger.Named("nats")

	conn, err := nats.Connect(url,
		nats.Name("arbd"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject возвращает тему события
func (p *NATSPublisher) Subject(t EventType) string {
	return subject(p.prefix, t)
}

func subject(prefix string, t EventType) string {
	return prefix + "." + string(t)
}

// Publish сериализует событие и публикует (без ожидания подтверждения)
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединение
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}
	return err
}
