package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	SourceGenerated = "generated"
	SourceCSV       = "csv"
)

// GenerationRun records one dataset load.
type GenerationRun struct {
	ID                snowflake.ID      `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Seed              string            `gorm:"column:seed;type:varchar(32);not null" json:"seed"`
	Source            string            `gorm:"column:source;type:varchar(16);not null" json:"source"`
	Parameters        datatypes.JSONMap `gorm:"column:parameters" json:"parameters,omitempty"`
	UserCount         int               `gorm:"column:user_count;not null" json:"user_count"`
	SubscriptionCount int               `gorm:"column:subscription_count;not null" json:"subscription_count"`
	PaymentCount      int               `gorm:"column:payment_count;not null" json:"payment_count"`
	ActivityCount     int               `gorm:"column:activity_count;not null" json:"activity_count"`
	LoadedAt          time.Time         `gorm:"column:loaded_at;not null;index" json:"loaded_at"`
}

func (GenerationRun) TableName() string { return "generation_runs" }
