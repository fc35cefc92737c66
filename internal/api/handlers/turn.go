package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/service"
)

type TurnHandler struct {
	dispatcher *service.Dispatcher
}

func NewTurnHandler(dispatcher *service.Dispatcher) *TurnHandler {
	return &TurnHandler{dispatcher: dispatcher}
}

// Handle processes one dialogue turn through the routing core.
func (h *TurnHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.dispatcher.HandleTurn(r.Context(), &req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
