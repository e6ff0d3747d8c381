package blingwebhook

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/blingbridge/internal/invoices"
	"github.com/angelmondragon/blingbridge/internal/triggers"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Recorder outcomes besides trigger names.
const (
	OutcomeIgnored          = "ignored"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeMalformed        = "malformed"
)

type StateApplier interface {
	Apply(ctx context.Context, change invoices.StateChange) (bool, error)
}

type Guard interface {
	CheckAndMark(ctx context.Context, deliveryKey string) (bool, error)
	Delete(ctx context.Context, deliveryKey string) error
}

// Recorder counts processed deliveries by outcome.
type Recorder interface {
	RecordWebhook(outcome string)
}

type ServiceParams struct {
	Verifier *Verifier
	Guard    Guard
	Emitter  triggers.Emitter
	Updater  StateApplier
	Logger   *logger.Logger
	Recorder Recorder
	Clock    func() time.Time
}

// Service verifies, maps and dispatches Bling webhook deliveries.
type Service struct {
	verifier *Verifier
	guard    Guard
	emitter  triggers.Emitter
	updater  StateApplier
	logg     *logger.Logger
	recorder Recorder
	now      func() time.Time
}

// Outcome reports how a delivery was handled.
type Outcome struct {
	Trigger   triggers.Name `json:"trigger,omitempty"`
	InvoiceID int64         `json:"invoice_id,omitempty"`
	Ignored   bool          `json:"ignored"`
	Duplicate bool          `json:"duplicate"`
	Applied   bool          `json:"applied"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, errors.New("signature verifier required")
	}
	if params.Emitter == nil {
		return nil, errors.New("trigger emitter required")
	}
	if params.Updater == nil {
		return nil, errors.New("invoice state updater required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		verifier: params.Verifier,
		guard:    params.Guard,
		emitter:  params.Emitter,
		updater:  params.Updater,
		logg:     params.Logger,
		recorder: params.Recorder,
		now:      clock,
	}, nil
}

// Handle processes one raw delivery. INVALID_SIGNATURE and VALIDATION_ERROR
// are the caller's 401 and 400; ignored and duplicate deliveries succeed.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if err := s.verifier.Verify(body, signature); err != nil {
		s.record(OutcomeInvalidSignature)
		return Outcome{}, err
	}

	ev, err := Parse(body)
	if err != nil {
		s.record(OutcomeMalformed)
		return Outcome{}, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"webhook_event": ev.Resource + "." + ev.Kind,
		"event_id":      ev.ID,
		"invoice_id":    ev.InvoiceID,
		"status_code":   ev.Status,
	})

	name, ok := Map(ev)
	if !ok {
		s.record(OutcomeIgnored)
		s.logg.Debug(ctx, "webhook event ignored")
		return Outcome{InvoiceID: ev.InvoiceID, Ignored: true}, nil
	}
	outcome := Outcome{Trigger: name, InvoiceID: ev.InvoiceID}

	deliveryKey := DeliveryKey(ev, body)
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, deliveryKey)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook dedup unavailable")
		} else if seen {
			s.record(OutcomeDuplicate)
			s.logg.Info(ctx, "duplicate webhook delivery skipped")
			outcome.Duplicate = true
			return outcome, nil
		}
	}

	if err := s.emitter.Emit(ctx, triggers.Trigger{
		Name:       name,
		EventKind:  ev.Resource + "." + ev.Kind,
		StatusCode: ev.Status,
		InvoiceID:  ev.InvoiceID,
		EventID:    ev.ID,
		OccurredAt: s.now().UTC(),
		Payload:    ev.Raw,
	}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "trigger emission failed")
	}

	applied, err := s.updater.Apply(ctx, invoices.StateChange{
		Trigger:   name,
		InvoiceID: ev.InvoiceID,
		Number:    ev.Number,
		Series:    ev.Series,
		AccessKey: ev.AccessKey,
		DanfeURL:  ev.DanfeURL,
	})
	if err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(context.WithoutCancel(ctx), deliveryKey); delErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "webhook dedup release failed")
			}
		}
		return outcome, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply invoice state")
	}

	outcome.Applied = applied
	s.record(name.String())
	s.logg.Info(ctx, "webhook processed")
	return outcome, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordWebhook(outcome)
	}
}
