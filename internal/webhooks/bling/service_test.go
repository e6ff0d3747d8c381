package blingwebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/internal/invoices"
	"github.com/angelmondragon/blingbridge/internal/triggers"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return "bb:idempotency:" + scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingEmitter struct {
	got []triggers.Trigger
	err error
}

func (r *recordingEmitter) Emit(_ context.Context, trigger triggers.Trigger) error {
	r.got = append(r.got, trigger)
	return r.err
}

type fakeApplier struct {
	changes []invoices.StateChange
	applied bool
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, change invoices.StateChange) (bool, error) {
	f.changes = append(f.changes, change)
	return f.applied, f.err
}

type outcomeCounter map[string]int

func (c outcomeCounter) RecordWebhook(outcome string) { c[outcome]++ }

type fixture struct {
	svc      *Service
	store    *memoryStore
	emitter  *recordingEmitter
	applier  *fakeApplier
	outcomes outcomeCounter
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{
		store:    &memoryStore{keys: map[string]bool{}},
		emitter:  &recordingEmitter{},
		applier:  &fakeApplier{applied: true},
		outcomes: outcomeCounter{},
	}
	guard, err := NewIdempotencyGuard(f.store, time.Hour, "bling_webhook")
	require.NoError(t, err)
	f.svc, err = NewService(ServiceParams{
		Verifier: NewVerifier(secret),
		Guard:    guard,
		Emitter:  f.emitter,
		Updater:  f.applier,
		Logger:   logger.Nop(),
		Recorder: f.outcomes,
	})
	require.NoError(t, err)
	return f
}

const authorizedBody = `[{"body":{"event":"invoice.updated","data":{"id":700,"situacao":5}}}]`

func TestHandleDispatchesAuthorizedEvent(t *testing.T) {
	f := newFixture(t, "s")
	body := []byte(authorizedBody)

	outcome, err := f.svc.Handle(context.Background(), body, Sign([]byte("s"), body))
	require.NoError(t, err)
	assert.Equal(t, triggers.InvoiceAuthorized, outcome.Trigger)
	assert.True(t, outcome.Applied)

	require.Len(t, f.emitter.got, 1)
	assert.Equal(t, "invoice.updated", f.emitter.got[0].EventKind)
	assert.Equal(t, int64(700), f.emitter.got[0].InvoiceID)
	require.Len(t, f.applier.changes, 1)
	assert.Equal(t, triggers.InvoiceAuthorized, f.applier.changes[0].Trigger)
	assert.Equal(t, 1, f.outcomes["invoice_authorized"])
}

func TestHandleRejectsBadSignature(t *testing.T) {
	f := newFixture(t, "s")
	_, err := f.svc.Handle(context.Background(), []byte(authorizedBody), "")
	assert.Equal(t, pkgerrors.CodeSignature, pkgerrors.CodeOf(err))
	assert.Empty(t, f.emitter.got)
	assert.Equal(t, 1, f.outcomes[OutcomeInvalidSignature])
}

func TestHandleIgnoresUnmappedStatus(t *testing.T) {
	f := newFixture(t, "")
	outcome, err := f.svc.Handle(context.Background(), []byte(`{"event":"invoice.updated","data":{"id":1,"situacao":3}}`), "")
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
	assert.Empty(t, f.emitter.got)
	assert.Empty(t, f.applier.changes)
	assert.Empty(t, f.store.keys)
}

func TestHandleSkipsDuplicateDelivery(t *testing.T) {
	f := newFixture(t, "")
	body := []byte(authorizedBody)

	_, err := f.svc.Handle(context.Background(), body, "")
	require.NoError(t, err)
	outcome, err := f.svc.Handle(context.Background(), body, "")
	require.NoError(t, err)

	assert.True(t, outcome.Duplicate)
	assert.Len(t, f.applier.changes, 1)
	assert.Equal(t, 1, f.outcomes[OutcomeDuplicate])
}

func TestHandleReleasesDedupMarkOnFailure(t *testing.T) {
	f := newFixture(t, "")
	f.applier.err = errors.New("db down")
	body := []byte(authorizedBody)

	_, err := f.svc.Handle(context.Background(), body, "")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Empty(t, f.store.keys)

	f.applier.err = nil
	outcome, err := f.svc.Handle(context.Background(), body, "")
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
}

func TestHandleSurvivesEmitterFailure(t *testing.T) {
	f := newFixture(t, "")
	f.emitter.err = errors.New("pubsub unavailable")

	outcome, err := f.svc.Handle(context.Background(), []byte(`{"eventId":"e1","event":"invoice.deleted","data":{"id":5}}`), "")
	require.NoError(t, err)
	assert.Equal(t, triggers.InvoiceDeleted, outcome.Trigger)
	assert.True(t, f.store.keys["bb:idempotency:bling_webhook:event:e1"])
}

func TestHandleMalformedPayload(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.Handle(context.Background(), []byte(`[]`), "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
