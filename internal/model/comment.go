package model

import "time"

// Comment is a short text posted by an account on a video.
type Comment struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	VideoID      string    `json:"videoId"`
	Text         string    `json:"text"`
	Date         time.Time `json:"date"`
	Author       string    `json:"author"`
	AuthorAvatar string    `json:"authorAvatar,omitempty"`
}
