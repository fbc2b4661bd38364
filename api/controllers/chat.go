package controllers

import (
	"net/http"

	"github.com/angelmondragon/collectibles-backend/api/responses"
	"github.com/angelmondragon/collectibles-backend/api/validators"
	"github.com/angelmondragon/collectibles-backend/internal/chat"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat relays one message to the trade assistant.
func Chat(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "chat is not configured"))
			return
		}
		var req chatRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reply, err := svc.Reply(r.Context(), req.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}
