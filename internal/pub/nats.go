// Package pub republishes the merged market-data stream over NATS so other
// processes (research, monitoring) can consume the same feed the engine sees.
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mwalczyk/arbot/internal/domain"
)

// Config holds NATS connection parameters for the publisher.
type Config struct {
	URL           string
	SubjectPrefix string
}

// marketMessage is the wire form of one republished update.
type marketMessage struct {
	Exchange string    `json:"exchange"`
	Bid      float64   `json:"bid"`
	BidSize  float64   `json:"bid_size"`
	Ask      float64   `json:"ask"`
	AskSize  float64   `json:"ask_size"`
	Time     time.Time `json:"time"`
}

// Publisher forwards market updates to NATS subjects named
// {prefix}.{exchange}.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher connects to the NATS server. The connection retries in the
// background on initial failure and reconnects automatically afterwards.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	l := logger.With(slog.String("component", "pub"))

	opts := []nats.Option{
		nats.Name("arbot-md"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("pub: connect %s: %w", cfg.URL, err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "md"
	}

	return &Publisher{nc: nc, prefix: prefix, logger: l}, nil
}

// Run forwards updates from the stream until ctx is cancelled or the stream
// closes. Publish failures are logged and skipped; market data is ephemeral.
func (p *Publisher) Run(ctx context.Context, updates <-chan domain.Market) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-updates:
			if !ok {
				return nil
			}
			if err := p.publish(m); err != nil {
				p.logger.Warn("publish failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Publisher) publish(m domain.Market) error {
	body, err := json.Marshal(marketMessage{
		Exchange: string(m.Exchange),
		Bid:      m.Update.Bid.Price,
		BidSize:  m.Update.Bid.Size,
		Ask:      m.Update.Ask.Price,
		AskSize:  m.Update.Ask.Size,
		Time:     m.Update.Time,
	})
	if err != nil {
		return fmt.Errorf("pub: marshal update: %w", err)
	}

	subject := p.prefix + "." + string(m.Exchange)
	if err := p.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("pub: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("pub: drain: %w", err)
	}
	return nil
}
