package webhooks

import (
	"context"
	"net/http"

	"github.com/angelmondragon/blingbridge/api/responses"
	"github.com/angelmondragon/blingbridge/api/validators"
	blingwebhook "github.com/angelmondragon/blingbridge/internal/webhooks/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type BlingWebhookService interface {
	Handle(ctx context.Context, body []byte, signature string) (blingwebhook.Outcome, error)
}

// BlingWebhook receives Bling invoice notifications. Ignored and duplicate
// deliveries are acknowledged with 200 so Bling stops retrying them.
func BlingWebhook(svc BlingWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := validators.ReadRawBody(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := svc.Handle(ctx, payload, r.Header.Get(blingwebhook.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
