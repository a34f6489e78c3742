package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
)

var newestFirst = bson.D{{Key: "uploadDate", Value: -1}, {Key: "id", Value: -1}}

// contains matches s anywhere in the field, case-insensitively.
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// searchFilter requires every token in the title, or every token in the
// description, or every token among the tags, on public videos only.
func searchFilter(tokens []string) bson.M {
	groups := []string{"videos.title", "videos.desc", "videos.tags"}
	or := make(bson.A, 0, len(groups))
	for _, field := range groups {
		and := make(bson.A, 0, len(tokens))
		for _, tok := range tokens {
			and = append(and, bson.M{field: contains(tok)})
		}
		or = append(or, bson.M{"$and": and})
	}
	return bson.M{"videos.stat": model.StatPublic, "$or": or}
}

// similarFilter matches public videos with any tag in their title,
// description or tags.
func similarFilter(tags []string) bson.M {
	or := make(bson.A, 0, len(tags)*3)
	for _, tag := range tags {
		re := contains(tag)
		or = append(or,
			bson.M{"videos.title": re},
			bson.M{"videos.desc": re},
			bson.M{"videos.tags": re},
		)
	}
	return bson.M{"videos.stat": model.StatPublic, "$or": or}
}

func (s *Store) findVideos(ctx context.Context, match bson.M, sort bson.D) ([]model.Video, error) {
	records, err := s.videos.find(ctx, match, sort)
	if err != nil {
		return nil, err
	}
	return toModels(records, (*videoRecord).toModel), nil
}

// CreateVideo appends the video to its owner's document. ID is assigned
// here; UploadDate and MediaStatus default to now and pending.
func (s *Store) CreateVideo(ctx context.Context, video *model.Video) error {
	video.ID = xid.New().String()
	if video.UploadDate.IsZero() {
		video.UploadDate = time.Now().UTC()
	}
	if video.MediaStatus == "" {
		video.MediaStatus = model.MediaPending
	}
	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}

	return s.videos.push(ctx, video.OwnerID, videoDoc{
		ID:          video.ID,
		Title:       video.Title,
		Desc:        video.Desc,
		Tags:        tags,
		Path:        video.Path,
		Thumb:       video.Thumb,
		Cover:       video.Cover,
		Visits:      video.Visits,
		Stat:        video.Stat,
		MediaStatus: video.MediaStatus,
		UploadDate:  video.UploadDate.UTC(),
	})
}

func (s *Store) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	r, err := s.videos.findOne(ctx, "video", id)
	if err != nil {
		return nil, err
	}
	v := r.toModel()
	return &v, nil
}

func (s *Store) ListPublicVideos(ctx context.Context) ([]model.Video, error) {
	return s.findVideos(ctx, bson.M{"videos.stat": model.StatPublic}, newestFirst)
}

func (s *Store) ListVideosByOwner(ctx context.Context, ownerID string) ([]model.Video, error) {
	return s.findVideos(ctx, bson.M{"_id": ownerID}, newestFirst)
}

func (s *Store) SearchVideos(ctx context.Context, tokens []string) ([]model.Video, error) {
	if len(tokens) == 0 {
		return []model.Video{}, nil
	}
	return s.findVideos(ctx, searchFilter(tokens), newestFirst)
}

func (s *Store) SimilarVideos(ctx context.Context, tags []string) ([]model.Video, error) {
	if len(tags) == 0 {
		return []model.Video{}, nil
	}
	return s.findVideos(ctx, similarFilter(tags), newestFirst)
}

func (s *Store) UpdateVideo(ctx context.Context, id string, patch model.VideoPatch) error {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Desc != nil {
		set["desc"] = *patch.Desc
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}
	if len(set) == 0 {
		_, err := s.GetVideo(ctx, id)
		return err
	}
	return s.videos.update(ctx, "video", id, "$set", set)
}

func (s *Store) SetVideoStat(ctx context.Context, id string, stat model.Stat) error {
	return s.videos.update(ctx, "video", id, "$set", bson.M{"stat": stat})
}

func (s *Store) IncrementVisits(ctx context.Context, id string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"videos.$": 1})

	var doc struct {
		Videos []videoDoc `bson:"videos"`
	}
	err := s.accounts.FindOneAndUpdate(ctx,
		bson.M{"videos.id": id},
		bson.M{"$inc": bson.M{"videos.$.visits": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperror.NotFound("video", id)
		}
		return 0, fmt.Errorf("mongo: incrementing visits of %s: %w", id, err)
	}
	if len(doc.Videos) == 0 {
		return 0, apperror.NotFound("video", id)
	}
	return doc.Videos[0].Visits, nil
}

func (s *Store) SetMediaStatus(ctx context.Context, id string, status model.MediaStatus) error {
	return s.videos.update(ctx, "video", id, "$set", bson.M{"mediaStatus": status})
}

func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Video, error) {
	return s.findVideos(ctx, bson.M{
		"videos.mediaStatus": model.MediaPending,
		"videos.uploadDate":  bson.M{"$lt": cutoff.UTC()},
	}, bson.D{{Key: "uploadDate", Value: 1}})
}

func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	return s.videos.pull(ctx, "video", id)
}
