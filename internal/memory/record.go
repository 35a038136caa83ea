// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package memory implements the long-term memory store: persisted fact
// records partitioned per assistant, with embedding-similarity search and
// a text-search fallback.
package memory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aetherlink/engram/internal/embeddings"
	"gorm.io/gorm"
)

// Metadata source values.
const (
	SourceAuto   = "auto"   // written by the conversation processor
	SourceManual = "manual" // written by a user action or memory tool
)

// DefaultAssistantID is the partition used when no assistant is given.
const DefaultAssistantID = "default"

// Metadata is a free-form key-value map persisted as JSON.
type Metadata map[string]string

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Record is a persisted fact about a user/assistant relationship.
type Record struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Memory      string    `gorm:"type:text;not null" json:"memory"`
	Hash        string    `gorm:"index" json:"hash"`
	Embedding   []byte    `gorm:"type:blob" json:"-"` // little-endian float32 blob
	AssistantID string    `gorm:"index;not null" json:"assistant_id"`
	Metadata    Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Score is the similarity score, populated in search results only.
	Score float64 `gorm:"-" json:"score,omitempty"`
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "memory_records"
}

// Vector decodes the stored embedding blob.
func (r *Record) Vector() []float32 {
	return embeddings.BlobToFloat32Slice(r.Embedding)
}

// SetVector encodes and stores the embedding blob.
func (r *Record) SetVector(vec []float32) {
	r.Embedding = embeddings.Float32SliceToBlob(vec)
}

// Migrate runs migrations for the memory records table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}
