package domain

import "time"

// Conventional status values. The column is free text and not restricted to these.
const (
	StatusTodo  = "TODO"
	StatusDoing = "DOING"
	StatusDone  = "DONE"
)

type Todo struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Title       string     `gorm:"not null"`
	Completed   bool       `gorm:"not null;default:false"`
	CreatedAt   time.Time  `gorm:"type:date;not null;default:CURRENT_DATE;autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"not null"`
	StartDate   *time.Time `gorm:"type:date"`
	EndDate     *time.Time `gorm:"type:date"`
	Status      *string
	Description *string
	ImageName   *string
}

func (Todo) TableName() string { return "todos" }

// TodoPatch carries the updatable fields of a todo. A nil field is absent and
// leaves the stored value unchanged; a non-nil field is applied even when its
// value is the zero value. For StartDate, EndDate and ImageName, an empty
// string clears the column.
type TodoPatch struct {
	Title       *string
	Completed   *bool
	StartDate   *string
	EndDate     *string
	Status      *string
	Description *string
	ImageName   *string
}

// HasChanges reports whether any field is present.
func (p TodoPatch) HasChanges() bool {
	return p.Title != nil || p.Completed != nil || p.StartDate != nil || p.EndDate != nil ||
		p.Status != nil || p.Description != nil || p.ImageName != nil
}
