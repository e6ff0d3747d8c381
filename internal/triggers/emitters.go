package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/blingbridge/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

// LogEmitter writes every trigger to the structured log.
type LogEmitter struct {
	logg *logger.Logger
}

func NewLogEmitter(logg *logger.Logger) *LogEmitter {
	return &LogEmitter{logg: logg}
}

func (e *LogEmitter) Emit(ctx context.Context, trigger Trigger) error {
	if e == nil || e.logg == nil {
		return nil
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"trigger":     trigger.Name.String(),
		"event":       trigger.EventKind,
		"status_code": trigger.StatusCode,
		"invoice_id":  trigger.InvoiceID,
	})
	e.logg.Info(ctx, "trigger emitted")
	return nil
}

// Publisher is satisfied by *pubsub.Client.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubEmitter publishes triggers as JSON messages.
type PubSubEmitter struct {
	publisher Publisher
	timeout   time.Duration
}

func NewPubSubEmitter(publisher Publisher) (*PubSubEmitter, error) {
	if publisher == nil {
		return nil, errors.New("publisher required")
	}
	return &PubSubEmitter{publisher: publisher, timeout: defaultPublishTimeout}, nil
}

func (e *PubSubEmitter) Emit(ctx context.Context, trigger Trigger) error {
	data, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}
	attrs := map[string]string{
		"trigger":    trigger.Name.String(),
		"event":      trigger.EventKind,
		"invoice_id": strconv.FormatInt(trigger.InvoiceID, 10),
	}
	if trigger.EventID != "" {
		attrs["event_id"] = trigger.EventID
	}

	publishCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if _, err := e.publisher.Publish(publishCtx, data, attrs); err != nil {
		return fmt.Errorf("publish trigger %s: %w", trigger.Name, err)
	}
	return nil
}

// MultiEmitter fans a trigger out to every emitter and combines the errors.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, trigger Trigger) error {
	var err error
	for _, emitter := range m {
		if emitter == nil {
			continue
		}
		err = multierr.Append(err, emitter.Emit(ctx, trigger))
	}
	return err
}
