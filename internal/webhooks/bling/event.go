package blingwebhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

// Event kinds after the resource prefix is stripped.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Event is one parsed webhook delivery.
type Event struct {
	ID        string
	Resource  string
	Kind      string
	Status    int
	InvoiceID int64
	Number    string
	Series    string
	AccessKey string
	DanfeURL  string
	Raw       json.RawMessage
}

type envelope struct {
	EventID string          `json:"eventId"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Body    json.RawMessage `json:"body"`
}

type invoiceData struct {
	ID        bling.FlexString `json:"id"`
	Status    bling.FlexString `json:"situacao"`
	Number    bling.FlexString `json:"numero"`
	Series    bling.FlexString `json:"serie"`
	AccessKey string           `json:"chaveAcesso"`
	DanfeURL  string           `json:"linkDanfe"`
}

// Parse accepts a JSON array whose first element carries the event in "body",
// or the event object itself.
func Parse(raw []byte) (Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Event{}, malformed("empty payload")
	}

	if raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return Event{}, malformed("payload is not valid JSON")
		}
		if len(batch) == 0 {
			return Event{}, malformed("payload array is empty")
		}
		raw = bytes.TrimSpace(batch[0])
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return Event{}, err
	}
	if env.Event == "" && len(env.Body) > 0 {
		inner, err := decodeBody(env.Body)
		if err != nil {
			return Event{}, err
		}
		if inner.EventID == "" {
			inner.EventID = env.EventID
		}
		env = inner
	}
	if strings.TrimSpace(env.Event) == "" {
		return Event{}, malformed("event name is missing")
	}

	resource, kind := splitEvent(env.Event)
	ev := Event{
		ID:       strings.TrimSpace(env.EventID),
		Resource: resource,
		Kind:     kind,
		Raw:      append(json.RawMessage(nil), raw...),
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return ev, nil
	}
	var data invoiceData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Event{}, malformed("event data is malformed")
	}
	ev.Status = data.Status.Int()
	if id := data.ID.String(); id != "" {
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Event{}, malformed("invoice id is not numeric")
		}
		ev.InvoiceID = parsed
	}
	ev.Number = data.Number.String()
	ev.Series = data.Series.String()
	ev.AccessKey = strings.TrimSpace(data.AccessKey)
	ev.DanfeURL = strings.TrimSpace(data.DanfeURL)
	return ev, nil
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if len(raw) == 0 || raw[0] != '{' {
		return env, malformed("event must be a JSON object")
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, malformed("payload is not valid JSON")
	}
	return env, nil
}

// decodeBody handles "body" sent either as an object or as a JSON-encoded string.
func decodeBody(body json.RawMessage) (envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var text string
		if err := json.Unmarshal(body, &text); err != nil {
			return envelope{}, malformed("body is not valid JSON")
		}
		body = json.RawMessage(strings.TrimSpace(text))
	}
	return decodeEnvelope(body)
}

// splitEvent turns "invoice.updated" into ("invoice", "updated").
func splitEvent(name string) (string, string) {
	name = strings.ToLower(strings.TrimSpace(name))
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

func malformed(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "malformed webhook payload: "+msg)
}
