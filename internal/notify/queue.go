package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultStream = "authsys:mail"

// Stream message fields.
const (
	fieldTo      = "to"
	fieldSubject = "subject"
	fieldBody    = "body"
)

// StreamSender queues messages on a Redis stream.
type StreamSender struct {
	client *redis.Client
	stream string
}

func NewStreamSender(client *redis.Client, stream string) *StreamSender {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamSender{client: client, stream: stream}
}

func (s *StreamSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			fieldTo:      to,
			fieldSubject: subject,
			fieldBody:    body,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("queue mail: %w", err)
	}
	return nil
}

// DispatcherConfig names the stream and consumer group a Dispatcher reads.
type DispatcherConfig struct {
	Stream        string
	Group         string
	Consumer      string
	Block         time.Duration
	ClaimInterval time.Duration
}

// Dispatcher consumes queued mail and hands each message to a Sender.
// Messages are acknowledged only after delivery succeeds; stalled ones are
// reclaimed every ClaimInterval.
type Dispatcher struct {
	client   *redis.Client
	cfg      DispatcherConfig
	delivery Sender
	log      zerolog.Logger
}

func NewDispatcher(client *redis.Client, cfg DispatcherConfig, delivery Sender, log zerolog.Logger) *Dispatcher {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = "authsys-mailers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "authsys"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = time.Minute
	}
	return &Dispatcher{
		client:   client,
		cfg:      cfg,
		delivery: delivery,
		log:      log.With().Str("component", "mail_dispatcher").Str("stream", cfg.Stream).Logger(),
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (d *Dispatcher) EnsureGroup(ctx context.Context) error {
	err := d.client.XGroupCreateMkStream(ctx, d.cfg.Stream, d.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(d.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := d.read(ctx); err != nil && ctx.Err() == nil {
			d.log.Error().Err(err).Msg("stream read error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}

		select {
		case <-ticker.C:
			if err := d.claimStalled(ctx); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("claim stalled messages")
			}
		default:
		}
	}
}

func (d *Dispatcher) read(ctx context.Context) error {
	result, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    d.cfg.Group,
		Consumer: d.cfg.Consumer,
		Streams:  []string{d.cfg.Stream, ">"},
		Count:    10,
		Block:    d.cfg.Block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			d.process(ctx, msg)
		}
	}
	return nil
}

func (d *Dispatcher) claimStalled(ctx context.Context) error {
	pending, err := d.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: d.cfg.Stream,
		Group:  d.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.Idle < d.cfg.ClaimInterval {
			continue
		}
		msgs, err := d.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   d.cfg.Stream,
			Group:    d.cfg.Group,
			Consumer: d.cfg.Consumer,
			MinIdle:  d.cfg.ClaimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			d.log.Error().Err(err).Str("message_id", entry.ID).Msg("claim failed")
			continue
		}
		for _, msg := range msgs {
			d.process(ctx, msg)
		}
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, msg redis.XMessage) {
	if err := d.Handle(ctx, msg); err != nil {
		d.log.Error().Err(err).Str("message_id", msg.ID).Msg("deliver mail failed")
		return
	}
	if err := d.client.XAck(ctx, d.cfg.Stream, d.cfg.Group, msg.ID).Err(); err != nil {
		d.log.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

// Handle delivers a single stream message.
func (d *Dispatcher) Handle(ctx context.Context, msg redis.XMessage) error {
	to, _ := msg.Values[fieldTo].(string)
	subject, _ := msg.Values[fieldSubject].(string)
	body, _ := msg.Values[fieldBody].(string)
	if to == "" {
		return fmt.Errorf("message %s has no recipient", msg.ID)
	}
	return d.delivery.Send(ctx, to, subject, body)
}
