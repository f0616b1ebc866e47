package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/observability"
)

const effectStreamMaxLen = 10000

// EffectDispatcher delivers revocation effects to the outside world.
type EffectDispatcher interface {
	Dispatch(ctx context.Context, effects []Effect) error
}

// BrokerEffectDispatcher fans effects out to NATS subjects and a Redis stream.
// Either transport may be nil.
type BrokerEffectDispatcher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
}

// NewBrokerEffectDispatcher constructs a dispatcher publishing under channelBase,
// e.g. "ledger" yields the stream "ledger:effects" and subjects "ledger.effects.<kind>".
func NewBrokerEffectDispatcher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *BrokerEffectDispatcher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":effects"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".effects"
	}

	return &BrokerEffectDispatcher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "effect_dispatcher").Logger(),
	}
}

// Dispatch publishes every effect to every configured transport. Failures are
// collected so one broken transport does not hide the other.
func (d *BrokerEffectDispatcher) Dispatch(ctx context.Context, effects []Effect) error {
	var errs []error
	for _, effect := range effects {
		payload, err := json.Marshal(effect)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode effect %s: %w", effect.Kind, err))
			continue
		}

		if d.redis != nil && d.redisStream != "" {
			err := d.redis.XAdd(ctx, &redis.XAddArgs{
				Stream: d.redisStream,
				MaxLen: effectStreamMaxLen,
				Approx: true,
				Values: map[string]interface{}{
					"kind":    string(effect.Kind),
					"payload": payload,
				},
			}).Err()
			if err != nil {
				observability.EffectDispatchErrors().WithLabelValues(string(effect.Kind)).Inc()
				errs = append(errs, fmt.Errorf("redis stream %s: %w", effect.Kind, err))
			}
		}

		if d.nats != nil && d.natsSubject != "" {
			if err := d.nats.Publish(d.natsSubject+"."+string(effect.Kind), payload); err != nil {
				observability.EffectDispatchErrors().WithLabelValues(string(effect.Kind)).Inc()
				errs = append(errs, fmt.Errorf("nats %s: %w", effect.Kind, err))
			}
		}

		d.logger.Debug().Str("effect", string(effect.Kind)).Str("action_id", effect.ActionID).Msg("effect dispatched")
	}

	return errors.Join(errs...)
}

// LogEffectDispatcher only logs effects. It is the default when no broker is configured.
type LogEffectDispatcher struct {
	logger zerolog.Logger
}

// NewLogEffectDispatcher constructs a logging dispatcher.
func NewLogEffectDispatcher(logger zerolog.Logger) *LogEffectDispatcher {
	return &LogEffectDispatcher{logger: logger.With().Str("component", "effect_dispatcher").Logger()}
}

// Dispatch logs each effect and returns nil.
func (l *LogEffectDispatcher) Dispatch(ctx context.Context, effects []Effect) error {
	for _, effect := range effects {
		l.logger.Info().
			Str("effect", string(effect.Kind)).
			Str("action_id", effect.ActionID).
			Str("author", effect.Author).
			Msg("revocation effect")
	}
	return nil
}
