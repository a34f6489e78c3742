package model

import "time"

// Stat is the publication flag of a video.
type Stat int

const (
	StatPrivate Stat = 0
	StatPublic  Stat = 1
)

// Toggle flips public and private. Applying it twice is a no-op.
func (s Stat) Toggle() Stat {
	if s == StatPublic {
		return StatPrivate
	}
	return StatPublic
}

func (s Stat) String() string {
	if s == StatPublic {
		return "public"
	}
	return "private"
}

// MediaStatus tracks the thumbnail and preview generation for an upload.
type MediaStatus string

const (
	MediaPending MediaStatus = "pending"
	MediaReady   MediaStatus = "ready"
	MediaFailed  MediaStatus = "failed"
)

func (m MediaStatus) Valid() bool {
	switch m {
	case MediaPending, MediaReady, MediaFailed:
		return true
	}
	return false
}

// Video is an uploaded clip. Path, Thumb and Cover are file names relative
// to the upload directory; Cover is the short hover preview clip.
//
// Author and AuthorAvatar are joined from the owning account at read time.
type Video struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"ownerId"`
	Title        string      `json:"title"`
	Desc         string      `json:"desc"`
	Tags         []string    `json:"tags"`
	Path         string      `json:"path"`
	Thumb        string      `json:"thumb"`
	Cover        string      `json:"cover"`
	Visits       int64       `json:"visits"`
	Stat         Stat        `json:"stat"`
	MediaStatus  MediaStatus `json:"mediaStatus"`
	UploadDate   time.Time   `json:"uploadDate"`
	Author       string      `json:"author"`
	AuthorAvatar string      `json:"authorAvatar,omitempty"`
}

func (v *Video) IsPublic() bool { return v.Stat == StatPublic }

// VideoPatch is a partial metadata edit. Nil fields are left unchanged.
type VideoPatch struct {
	Title *string
	Desc  *string
	Tags  *[]string
}

func (p VideoPatch) Empty() bool {
	return p.Title == nil && p.Desc == nil && p.Tags == nil
}

// Apply writes the set fields of p onto v.
func (p VideoPatch) Apply(v *Video) {
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.Desc != nil {
		v.Desc = *p.Desc
	}
	if p.Tags != nil {
		v.Tags = append([]string(nil), (*p.Tags)...)
	}
}
