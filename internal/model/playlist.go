package model

import "time"

// Playlist is an ordered list of video snapshots owned by one account.
type Playlist struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	IsPrivate bool            `json:"isPrivate"`
	Videos    []PlaylistEntry `json:"videos"`
	CreatedAt time.Time       `json:"createdAt"`
	Author    string          `json:"author"`
}

// Contains reports whether videoID is already in the playlist.
func (p *Playlist) Contains(videoID string) bool {
	for _, e := range p.Videos {
		if e.ID == videoID {
			return true
		}
	}
	return false
}

// PlaylistEntry is a copy of a video's display fields taken when the video
// was added. It is not refreshed when the video changes.
type PlaylistEntry struct {
	ID     string `json:"id"     bson:"id"`
	Title  string `json:"title"  bson:"title"`
	Author string `json:"author" bson:"author"`
	Desc   string `json:"desc"   bson:"desc"`
	Thumb  string `json:"thumb"  bson:"thumb"`
	Cover  string `json:"cover"  bson:"cover"`
}

func SnapshotOf(v *Video) PlaylistEntry {
	return PlaylistEntry{
		ID:     v.ID,
		Title:  v.Title,
		Author: v.Author,
		Desc:   v.Desc,
		Thumb:  v.Thumb,
		Cover:  v.Cover,
	}
}

// PlaylistPatch renames a playlist or flips its privacy. Nil fields are
// left unchanged.
type PlaylistPatch struct {
	Name      *string
	IsPrivate *bool
}
