package http

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "fuelpanel/internal/errors"
)

// ClosingHandler exposes the closing state of the last processed batch
type ClosingHandler struct {
	runs   RunService
	errors *apierrors.ErrorHandler
}

// NewClosingHandler creates a closing state handler
func NewClosingHandler(runs RunService, errorHandler *apierrors.ErrorHandler) *ClosingHandler {
	return &ClosingHandler{runs: runs, errors: errorHandler}
}

// GetClosing handles GET /api/v1/closing. With ?station= it answers with
// that station's record only.
func (h *ClosingHandler) GetClosing(w http.ResponseWriter, r *http.Request) {
	state := h.runs.Closing()

	if station := r.URL.Query().Get("station"); station != "" {
		record, ok := state.Get(station)
		if !ok {
			h.errors.HandleError(w, r, apierrors.NewNotFoundError("closing record for station "+station))
			return
		}
		render.JSON(w, r, record)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"stations": state.Len(),
		"records":  state.Records(),
	})
}
