package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

type UserActivity struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	ActivityType enums.ActivityType `gorm:"column:activity_type;type:text;not null"`
	Description  string             `gorm:"column:description;not null"`
	Metadata     json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (UserActivity) TableName() string { return "user_activities" }
