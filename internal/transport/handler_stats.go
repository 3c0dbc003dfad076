package transport

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/recoverops/dunning/model"
)

// StatsProvider yields the current recovery statistics rollup.
type StatsProvider interface {
	Stats(ctx context.Context) (model.Stats, error)
}

// handleStats serves the statistics rollup as JSON. Provider errors are
// mapped to HTTP status codes the same way as every other handler, so a
// store outage surfaces as 503 with a STORE_UNAVAILABLE envelope.
func handleStats(provider StatsProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := provider.Stats(r.Context())
		if err != nil {
			logger.Error("stats rollup failed", zap.Error(err))
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snapshot)
	}
}
