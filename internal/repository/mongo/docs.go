package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/watchme/internal/model"
)

// accountDoc is the stored account. The embedded arrays are never decoded
// through it; reads of those go through the aggregation records below.
type accountDoc struct {
	ID          string           `bson:"_id"`
	Username    string           `bson:"username"`
	Email       string           `bson:"email"`
	FirstName   string           `bson:"firstName,omitempty"`
	LastName    string           `bson:"lastName,omitempty"`
	Name        string           `bson:"name,omitempty"`
	About       string           `bson:"about,omitempty"`
	Avatar      string           `bson:"avatar,omitempty"`
	URL         string           `bson:"url,omitempty"`
	Permission  model.Permission `bson:"permission"`
	Auth        model.AuthMethod `bson:"auth"`
	LastLoginAt *time.Time       `bson:"lastLoginDate,omitempty"`
	CreatedAt   time.Time        `bson:"createdAt"`
	UpdatedAt   time.Time        `bson:"updatedAt"`
}

func accountToDoc(a *model.Account) accountDoc {
	return accountDoc{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Name:        a.Name,
		About:       a.About,
		Avatar:      a.AvatarURL,
		URL:         a.ProfileURL,
		Permission:  a.Permission,
		Auth:        a.Auth,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (d *accountDoc) toModel() model.Account {
	return model.Account{
		ID:          d.ID,
		Username:    d.Username,
		Email:       d.Email,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Name:        d.Name,
		About:       d.About,
		AvatarURL:   d.Avatar,
		ProfileURL:  d.URL,
		Permission:  d.Permission,
		Auth:        d.Auth,
		LastLoginAt: d.LastLoginAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// accountSummary excludes the embedded arrays from account reads.
var accountSummary = bson.M{"videos": 0, "comments": 0, "playlists": 0}

// Elements as stored inside the account arrays. They carry no owner field:
// the owner is the enclosing document.

type videoDoc struct {
	ID          string            `bson:"id"`
	Title       string            `bson:"title"`
	Desc        string            `bson:"desc"`
	Tags        []string          `bson:"tags"`
	Path        string            `bson:"path"`
	Thumb       string            `bson:"thumb"`
	Cover       string            `bson:"cover"`
	Visits      int64             `bson:"visits"`
	Stat        model.Stat        `bson:"stat"`
	MediaStatus model.MediaStatus `bson:"mediaStatus"`
	UploadDate  time.Time         `bson:"uploadDate"`
}

type commentDoc struct {
	ID      string    `bson:"id"`
	VideoID string    `bson:"videoId"`
	Text    string    `bson:"text"`
	Date    time.Time `bson:"date"`
}

type playlistDoc struct {
	ID        string                `bson:"id"`
	Name      string                `bson:"name"`
	IsPrivate bool                  `bson:"isPrivate"`
	Videos    []model.PlaylistEntry `bson:"videos"`
	CreatedAt time.Time             `bson:"createdAt"`
}

// Flattened records produced by the unwind pipelines.

type videoRecord struct {
	ID           string            `bson:"id"`
	OwnerID      string            `bson:"ownerId"`
	Title        string            `bson:"title"`
	Desc         string            `bson:"desc"`
	Tags         []string          `bson:"tags"`
	Path         string            `bson:"path"`
	Thumb        string            `bson:"thumb"`
	Cover        string            `bson:"cover"`
	Visits       int64             `bson:"visits"`
	Stat         model.Stat        `bson:"stat"`
	MediaStatus  model.MediaStatus `bson:"mediaStatus"`
	UploadDate   time.Time         `bson:"uploadDate"`
	Author       string            `bson:"author"`
	AuthorAvatar string            `bson:"authorAvatar"`
}

var videoProjection = bson.M{
	"_id":          0,
	"id":           "$videos.id",
	"ownerId":      "$_id",
	"title":        "$videos.title",
	"desc":         "$videos.desc",
	"tags":         "$videos.tags",
	"path":         "$videos.path",
	"thumb":        "$videos.thumb",
	"cover":        "$videos.cover",
	"visits":       "$videos.visits",
	"stat":         "$videos.stat",
	"mediaStatus":  "$videos.mediaStatus",
	"uploadDate":   "$videos.uploadDate",
	"author":       "$username",
	"authorAvatar": "$avatar",
}

func (r *videoRecord) toModel() model.Video {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Video{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Title:        r.Title,
		Desc:         r.Desc,
		Tags:         tags,
		Path:         r.Path,
		Thumb:        r.Thumb,
		Cover:        r.Cover,
		Visits:       r.Visits,
		Stat:         r.Stat,
		MediaStatus:  r.MediaStatus,
		UploadDate:   r.UploadDate,
		Author:       r.Author,
		AuthorAvatar: r.AuthorAvatar,
	}
}

type commentRecord struct {
	ID           string    `bson:"id"`
	OwnerID      string    `bson:"ownerId"`
	VideoID      string    `bson:"videoId"`
	Text         string    `bson:"text"`
	Date         time.Time `bson:"date"`
	Author       string    `bson:"author"`
	AuthorAvatar string    `bson:"authorAvatar"`
}

var commentProjection = bson.M{
	"_id":          0,
	"id":           "$comments.id",
	"ownerId":      "$_id",
	"videoId":      "$comments.videoId",
	"text":         "$comments.text",
	"date":         "$comments.date",
	"author":       "$username",
	"authorAvatar": "$avatar",
}

func (r *commentRecord) toModel() model.Comment {
	return model.Comment{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		VideoID:      r.VideoID,
		Text:         r.Text,
		Date:         r.Date,
		Author:       r.Author,
		AuthorAvatar: r.AuthorAvatar,
	}
}

type playlistRecord struct {
	ID        string                `bson:"id"`
	OwnerID   string                `bson:"ownerId"`
	Name      string                `bson:"name"`
	IsPrivate bool                  `bson:"isPrivate"`
	Videos    []model.PlaylistEntry `bson:"videos"`
	CreatedAt time.Time             `bson:"createdAt"`
	Author    string                `bson:"author"`
}

var playlistProjection = bson.M{
	"_id":       0,
	"id":        "$playlists.id",
	"ownerId":   "$_id",
	"name":      "$playlists.name",
	"isPrivate": "$playlists.isPrivate",
	"videos":    "$playlists.videos",
	"createdAt": "$playlists.createdAt",
	"author":    "$username",
}

func (r *playlistRecord) toModel() model.Playlist {
	videos := r.Videos
	if videos == nil {
		videos = []model.PlaylistEntry{}
	}
	return model.Playlist{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Videos:    videos,
		CreatedAt: r.CreatedAt,
		Author:    r.Author,
	}
}

func toModels[R any, M any](records []R, convert func(*R) M) []M {
	out := make([]M, 0, len(records))
	for i := range records {
		out = append(out, convert(&records[i]))
	}
	return out
}
