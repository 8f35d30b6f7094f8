package models

import "time"

type Repository struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Owner       string     `json:"owner"`
	FullName    string     `json:"full_name"`
	Description *string    `json:"description,omitempty"`
	URL         string     `json:"url"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
