package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/api/middleware"
	"github.com/angelmondragon/collectibles-backend/api/responses"
	"github.com/angelmondragon/collectibles-backend/api/validators"
	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// CollectibleList returns a catalog page, optionally filtered by category.
func CollectibleList(svc collectibles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		list, err := svc.List(r.Context(), collectibles.ListParams{
			Category: validators.SanitizeString(q.Get("category"), 100),
			Limit:    limit,
			Cursor:   strings.TrimSpace(q.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CollectibleDetail(svc collectibles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"))
			return
		}
		id, err := validators.ParseUUID(chi.URLParam(r, "collectibleId"), "collectibleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

type createCollectibleRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,max=100"`
	Rarity      string          `json:"rarity" validate:"max=50"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,url"`
}

// CollectibleCreate lists a new collectible owned by the caller.
func CollectibleCreate(svc collectibles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req createCollectibleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), userID, collectibles.CreateInput{
			Title:       validators.SanitizeString(req.Title, 200),
			Description: validators.SanitizeString(req.Description, 2000),
			Price:       req.Price,
			Category:    validators.SanitizeString(req.Category, 100),
			Rarity:      validators.SanitizeString(req.Rarity, 50),
			ImageURL:    req.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// CollectiblesOwned returns the caller's holdings.
func CollectiblesOwned(svc collectibles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		holdings, err := svc.ListOwned(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, holdings)
	}
}
