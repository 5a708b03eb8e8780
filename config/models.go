package config

import "time"

// Job represents a training job in the database.
type Job struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"index"`
	ModelType     string `gorm:"index"`
	TrainingSteps int64
	LearningRate  *float64
	Description   string `gorm:"type:text"`
	Status        string `gorm:"index"`
	Logs          string `gorm:"type:text"` // worker-written training output
	// Seq is a monotonically increasing insertion counter used as the
	// listing tiebreak when two records share a created_at timestamp.
	Seq         int64     `gorm:"autoIncrement;uniqueIndex"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// TableName overrides the table name
func (Job) TableName() string {
	return "jobs"
}
