package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/events"
	"github.com/chukwukap/waffles/internal/models"
	"github.com/chukwukap/waffles/internal/session"
)

// JetStreamConsumerConfig holds configuration for the JetStream consumer.
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns default consumer configuration.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    session.StreamName,
		ConsumerName:  "game-gateway",
		SubjectFilter: session.SubjectPrefix + ">",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// ChatStore persists confirmed chat messages for late-join backfill. Nil
// disables persistence; the in-memory ring still feeds snapshots.
type ChatStore interface {
	InsertChatMessage(ctx context.Context, msg *models.ChatMessage) error
}

// EventConsumer consumes game events from JetStream and hands them to the
// connection manager for fan-out.
type EventConsumer struct {
	manager  *ConnectionManager
	ring     *EventRing
	chat     ChatStore
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

// WithChatStore enables durable chat backfill.
func (ec *EventConsumer) WithChatStore(store ChatStore) *EventConsumer {
	ec.chat = store
	return ec
}

// NewEventConsumer connects to JetStream and ensures the durable consumer.
func NewEventConsumer(manager *ConnectionManager, ring *EventRing, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{manager: manager, ring: ring, nc: nc, js: js, config: config}
	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Game gateway websocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().Str("consumer", ec.config.ConsumerName).Msg("created JetStream consumer")
	}
	ec.consumer = consumer
	return nil
}

// Start consumes events until the context is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := ec.processMessage(msg); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("failed to NAK message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return nil
}

func (ec *EventConsumer) processMessage(msg jetstream.Msg) error {
	return ec.dispatch(msg.Data())
}

func (ec *EventConsumer) dispatch(data []byte) error {
	var event events.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	gameID, err := uuid.Parse(event.GameID)
	if err != nil {
		return fmt.Errorf("parse game id: %w", err)
	}

	switch event.Type {
	case events.TypeGameEnded:
		ec.manager.MarkEnded(gameID)
		// The channel is done; release its snapshot buffer.
		ec.ring.Drop(gameID)
	case events.TypeChatMessage:
		ec.ring.Add(gameID, &event)
		ec.persistChat(gameID, &event)
	default:
		ec.ring.Add(gameID, &event)
	}
	ec.manager.Broadcast(gameID, &event)
	return nil
}

// persistChat is best-effort: a failed write loses backfill for one message,
// never the realtime delivery.
func (ec *EventConsumer) persistChat(gameID uuid.UUID, event *events.Event) {
	if ec.chat == nil {
		return
	}
	var payload events.ChatMessagePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("malformed chat payload")
		return
	}
	playerID, err := uuid.Parse(payload.PlayerID)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("malformed chat player id")
		return
	}
	msg := &models.ChatMessage{
		ID:       uuid.New(),
		GameID:   gameID,
		PlayerID: playerID,
		Text:     payload.Text,
		SentAt:   payload.SentAt,
	}
	if err := ec.chat.InsertChatMessage(context.Background(), msg); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to persist chat message")
	}
}

// Stop tears down the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
