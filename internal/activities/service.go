package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Entry is one line in a user's activity feed.
type Entry struct {
	UserID      uuid.UUID
	Type        enums.ActivityType
	Description string
	Metadata    map[string]any
}

// Recorder writes feed entries inside a caller-owned transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

// Service reads and writes the activity feed.
type Service interface {
	Recorder
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

type ListResult struct {
	Items  []ActivityView `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

type ActivityView struct {
	ID           uuid.UUID          `json:"id"`
	ActivityType enums.ActivityType `json:"activity_type"`
	Description  string             `json:"description"`
	Metadata     json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

type service struct {
	repo Repository
}

// NewService wires the activity feed.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activities repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.UserID == uuid.Nil {
		return fmt.Errorf("activity user id required")
	}
	if strings.TrimSpace(entry.Description) == "" {
		return fmt.Errorf("activity description required")
	}
	row := &models.UserActivity{
		ID:           models.NewID(),
		UserID:       entry.UserID,
		ActivityType: entry.Type,
		Description:  entry.Description,
	}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		row.Metadata = raw
	}
	return s.repo.WithTx(tx).Create(ctx, row)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByUser(ctx, listQuery{UserID: params.UserID, Limit: params.Limit, Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activities")
	}

	items := make([]ActivityView, 0, len(rows))
	for _, row := range rows {
		items = append(items, ActivityView{
			ID:           row.ID,
			ActivityType: row.ActivityType,
			Description:  row.Description,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt,
		})
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
