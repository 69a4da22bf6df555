package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/metrics"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

// Notifier announces ledger transactions once their range is checkpointed
//
//go:generate mockgen -source=publisher.go -destination=../../mocks/notifier.go -package=mocks -mock_names=Notifier=MockNotifier
type Notifier interface {
	// Notify publishes one message per transaction; delivery is best effort
	Notify(ctx context.Context, txs []domain.LedgerTransaction) error

	// Close releases the connection
	Close()
}

// Message is the payload published for each transaction
type Message struct {
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint      `json:"log_index"`
	TxType      string    `json:"tx_type"`
	TokenID     uint64    `json:"token_id"`
	From        *string   `json:"from,omitempty"`
	To          *string   `json:"to,omitempty"`
	Price       string    `json:"price,omitempty"` // decimal wei
	Timestamp   time.Time `json:"timestamp"`
}

type publisher struct {
	nc            adapter.NatsConn
	js            adapter.JetStream
	subjectPrefix string
	json          adapter.JSON
}

// NewPublisher connects to NATS and makes sure the stream exists.
// An empty URL disables notifications and returns a no-op notifier.
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (Notifier, error) {
	if cfg.URL == "" {
		logger.InfoCtx(ctx, "NATS URL not configured, notifications disabled")
		return NewNoopNotifier(), nil
	}

	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}

	return &publisher{
		nc:            nc,
		js:            js,
		subjectPrefix: cfg.SubjectPrefix,
		json:          jsonAdapter,
	}, nil
}

// Notify publishes every transaction and returns the joined publish errors.
// The tx hash is the message id, so a replayed range is deduplicated by the stream.
func (p *publisher) Notify(ctx context.Context, txs []domain.LedgerTransaction) error {
	var errs []error
	for i := range txs {
		if err := p.publish(ctx, &txs[i]); err != nil {
			metrics.RecordNotification(false)
			errs = append(errs, err)
			continue
		}
		metrics.RecordNotification(true)
	}
	return errors.Join(errs...)
}

func (p *publisher) publish(ctx context.Context, tx *domain.LedgerTransaction) error {
	msg := NewMessage(tx)
	data, err := p.json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", tx.TxHash, err)
	}

	subject := p.Subject(tx.TxType)
	logger.DebugCtx(ctx, "Publishing NATS message", zap.String("subject", subject), zap.String("tx_hash", tx.TxHash))

	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(tx.TxHash)); err != nil {
		return fmt.Errorf("failed to publish transaction %s: %w", tx.TxHash, err)
	}
	return nil
}

// Subject returns the subject for a transaction type, e.g. market.buy
func (p *publisher) Subject(txType domain.TxType) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, txType)
}

// Close drains pending publishes then closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", zap.Error(err))
		p.nc.Close()
	}
}

// NewMessage converts a ledger transaction to its published form
func NewMessage(tx *domain.LedgerTransaction) Message {
	msg := Message{
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		LogIndex:    tx.LogIndex,
		TxType:      string(tx.TxType),
		TokenID:     tx.TokenID,
		From:        tx.FromAddress,
		To:          tx.ToAddress,
		Timestamp:   tx.Timestamp,
	}
	if tx.Price != nil {
		msg.Price = tx.Price.String()
	}
	return msg
}

type noopNotifier struct{}

// NewNoopNotifier returns a notifier that drops everything
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(context.Context, []domain.LedgerTransaction) error { return nil }

func (noopNotifier) Close() {}
