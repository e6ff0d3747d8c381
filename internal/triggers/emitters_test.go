package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type fakePublisher struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("publish without deadline")
	}
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

type recordingEmitter struct {
	got []Trigger
	err error
}

func (r *recordingEmitter) Emit(_ context.Context, trigger Trigger) error {
	r.got = append(r.got, trigger)
	return r.err
}

func TestPubSubEmitterEncodesTrigger(t *testing.T) {
	pub := &fakePublisher{}
	emitter, err := NewPubSubEmitter(pub)
	require.NoError(t, err)

	trigger := Trigger{Name: InvoiceAuthorized, EventKind: "invoice.updated", StatusCode: 5, InvoiceID: 42, EventID: "evt-1", Payload: json.RawMessage(`{"id":42}`)}
	require.NoError(t, emitter.Emit(context.Background(), trigger))

	assert.Equal(t, "invoice_authorized", pub.attrs["trigger"])
	assert.Equal(t, "42", pub.attrs["invoice_id"])
	assert.Equal(t, "evt-1", pub.attrs["event_id"])

	var decoded Trigger
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, InvoiceAuthorized, decoded.Name)
	assert.JSONEq(t, `{"id":42}`, string(decoded.Payload))
}

func TestPubSubEmitterWrapsPublishError(t *testing.T) {
	emitter, err := NewPubSubEmitter(&fakePublisher{err: errors.New("unavailable")})
	require.NoError(t, err)
	err = emitter.Emit(context.Background(), Trigger{Name: InvoiceCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice_created")

	_, err = NewPubSubEmitter(nil)
	assert.Error(t, err)
}

func TestMultiEmitterCallsEveryEmitter(t *testing.T) {
	first := &recordingEmitter{err: errors.New("first failed")}
	second := &recordingEmitter{}
	third := &recordingEmitter{err: errors.New("third failed")}

	err := MultiEmitter{first, nil, second, third, NewLogEmitter(logger.Nop())}.Emit(context.Background(), Trigger{Name: InvoiceDeleted})

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)
	assert.Len(t, third.got, 1)
}
