package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/blingbridge/api/responses"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type SalesChannelLister interface {
	List(ctx context.Context) ([]bling.SalesChannel, error)
}

func SalesChannels(svc SalesChannelLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales channel service unavailable"))
			return
		}
		channels, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if channels == nil {
			channels = []bling.SalesChannel{}
		}
		responses.WriteSuccess(w, channels)
	}
}
