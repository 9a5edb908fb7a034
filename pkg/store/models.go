package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type BookModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Author         string
	ContentPreview string `gorm:"type:text"`
	StorageKey     string
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

type SessionModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"index"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null;index"`
}

type ChunkModel struct {
	ID         string `gorm:"primaryKey"`
	BookID     string `gorm:"not null;index"`
	ChunkIndex int    `gorm:"not null"`
	Content    string `gorm:"type:text;not null"`
	Metadata   datatypes.JSON   `gorm:"type:jsonb"`
	Embedding  *pgvector.Vector `gorm:"type:vector(1024)"`
	CreatedAt  time.Time        `gorm:"not null;index"`
}
