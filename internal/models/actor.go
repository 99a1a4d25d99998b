package models

import "github.com/google/uuid"

// Actor is the verified identity supplied by the auth collaborator.
// It is not persisted here; posts and facts store only the id.
type Actor struct {
	ID       uuid.UUID `json:"id"`
	Fullname string    `json:"fullname"`
	Avatar   string    `json:"avatar"`
}
