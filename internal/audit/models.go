package audit

import "time"

// Record is one ingestion as reported on the event bus. Document text is
// never stored here.
type Record struct {
	ID         string    `gorm:"primaryKey;size:26" json:"id"` // ULID length
	Namespace  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"namespace"`
	Filename   string    `gorm:"type:varchar(255);not null" json:"filename"`
	Pages      int       `gorm:"not null;default:0" json:"pages"`
	Chunks     int       `gorm:"not null;default:0" json:"chunks"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Record) TableName() string { return "ingestion_records" }
