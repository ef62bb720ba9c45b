package model

import "time"

// File is an uploaded blob exposed through a shareable link.
// Data is never serialised; GET /files/{id} streams it directly.
type File struct {
	ID          string    `json:"fileId"`
	Name        string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}
