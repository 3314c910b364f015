package entity

import "time"

// ApprovalForm is the template a document is created from
type ApprovalForm struct {
	ID                  int64     `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Category            string    `json:"category"`
	FieldSchema         string    `json:"field_schema,omitempty"`
	DefaultLineTemplate string    `json:"default_line_template,omitempty"`
	MaxLevels           int       `json:"max_levels"` // 0 = unlimited
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}
