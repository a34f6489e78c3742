package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/match"
	"github.com/sakif/watchme/internal/model"
)

var day0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func videoIDs(videos []model.Video) []string {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	return ids
}

func containsID(videos []model.Video, id string) bool {
	for _, v := range videos {
		if v.ID == id {
			return true
		}
	}
	return false
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateVideo_Defaults(t *testing.T) {
	db := newTestDB(t)
	owner := createTestAccount(t, db, "alice")

	v := &model.Video{OwnerID: owner.ID, Title: "first", Path: "a.mp4", Stat: model.StatPublic}
	if err := db.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	if v.ID == "" || v.UploadDate.IsZero() {
		t.Fatalf("CreateVideo() did not set ID/UploadDate: %+v", v)
	}
	if v.MediaStatus != model.MediaPending {
		t.Errorf("MediaStatus = %q, want pending", v.MediaStatus)
	}

	found, err := db.GetVideo(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if found.Author != "alice" {
		t.Errorf("Author = %q, want alice", found.Author)
	}
	if found.AuthorAvatar != owner.AvatarURL {
		t.Errorf("AuthorAvatar = %q, want %q", found.AuthorAvatar, owner.AvatarURL)
	}
	if found.Tags == nil || len(found.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil slice", found.Tags)
	}
}

func TestGetVideo_AuthorMatchesOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	bob := createTestAccount(t, db, "bob")

	for _, owner := range []*model.Account{alice, bob} {
		v := createTestVideo(t, db, owner, "clip by "+owner.Username, "", []string{"x"}, day0)
		found, err := db.GetVideo(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		if found.Author != owner.Username {
			t.Errorf("Author = %q, want %q", found.Author, owner.Username)
		}
	}
}

func TestGetVideo_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetVideo(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetVideo() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListPublicVideos_NewestFirstAndNoPrivate(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	bob := createTestAccount(t, db, "bob")

	old := createTestVideo(t, db, alice, "old", "", nil, day0)
	newest := createTestVideo(t, db, bob, "newest", "", nil, day0.Add(48*time.Hour))
	middle := createTestVideo(t, db, alice, "middle", "", nil, day0.Add(24*time.Hour))
	hidden := createTestVideo(t, db, bob, "hidden", "", nil, day0.Add(72*time.Hour))
	if err := db.SetVideoStat(context.Background(), hidden.ID, model.StatPrivate); err != nil {
		t.Fatalf("SetVideoStat() error = %v", err)
	}

	videos, err := db.ListPublicVideos(context.Background())
	if err != nil {
		t.Fatalf("ListPublicVideos() error = %v", err)
	}

	got := videoIDs(videos)
	want := []string{newest.ID, middle.ID, old.ID}
	if len(got) != len(want) {
		t.Fatalf("ListPublicVideos() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i], want[i])
		}
	}
	for _, v := range videos {
		if !v.IsPublic() {
			t.Errorf("private video %s returned", v.ID)
		}
	}
}

func TestListPublicVideos_Empty(t *testing.T) {
	db := newTestDB(t)

	videos, err := db.ListPublicVideos(context.Background())
	if err != nil {
		t.Fatalf("ListPublicVideos() error = %v", err)
	}
	if videos == nil || len(videos) != 0 {
		t.Errorf("ListPublicVideos() = %#v, want empty slice", videos)
	}
}

func TestListVideosByOwner_IncludesPrivate(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	bob := createTestAccount(t, db, "bob")

	v := createTestVideo(t, db, alice, "mine", "", nil, day0)
	createTestVideo(t, db, bob, "theirs", "", nil, day0)
	_ = db.SetVideoStat(context.Background(), v.ID, model.StatPrivate)

	videos, err := db.ListVideosByOwner(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListVideosByOwner() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != v.ID {
		t.Errorf("ListVideosByOwner() = %v, want [%s]", videoIDs(videos), v.ID)
	}
}

// =========================================================================
// SEARCH TESTS
// =========================================================================

func TestSearchVideos_ConjunctionPerField(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")

	inTitle := createTestVideo(t, db, alice, "Ocean Waves", "relaxing", nil, day0)
	inDesc := createTestVideo(t, db, alice, "Relax", "big ocean and big waves", nil, day0)
	inTags := createTestVideo(t, db, alice, "Beach", "sunset", []string{"Ocean", "waves"}, day0)
	split := createTestVideo(t, db, alice, "ocean", "waves", nil, day0)

	videos, err := db.SearchVideos(context.Background(), match.Tokenize("ocean waves"))
	if err != nil {
		t.Fatalf("SearchVideos() error = %v", err)
	}

	for _, id := range []string{inTitle.ID, inDesc.ID, inTags.ID} {
		if !containsID(videos, id) {
			t.Errorf("SearchVideos() missing %s", id)
		}
	}
	if containsID(videos, split.ID) {
		t.Error("SearchVideos() matched a video whose tokens are split across fields")
	}
}

func TestSearchVideos_SingleTokenCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	v := createTestVideo(t, db, alice, "Learning GoLang", "", nil, day0)
	createTestVideo(t, db, alice, "Rust", "", nil, day0)

	videos, err := db.SearchVideos(context.Background(), []string{"golang"})
	if err != nil {
		t.Fatalf("SearchVideos() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != v.ID {
		t.Errorf("SearchVideos() = %v, want [%s]", videoIDs(videos), v.ID)
	}

	// Folding is not limited to ASCII.
	paris := createTestVideo(t, db, alice, "Été à Paris", "", nil, day0)
	cafe := createTestVideo(t, db, alice, "Rome", "", []string{"CAFÉ"}, day0)
	for _, tc := range []struct {
		query string
		want  string
	}{
		{"été", paris.ID},
		{"ÉTÉ À", paris.ID},
		{"café", cafe.ID},
	} {
		videos, err := db.SearchVideos(context.Background(), match.Tokenize(tc.query))
		if err != nil {
			t.Fatalf("SearchVideos(%q) error = %v", tc.query, err)
		}
		if len(videos) != 1 || videos[0].ID != tc.want {
			t.Errorf("SearchVideos(%q) = %v, want [%s]", tc.query, videoIDs(videos), tc.want)
		}
	}
}

func TestSearchVideos_LiteralWildcards(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	createTestVideo(t, db, alice, "100 percent", "", nil, day0)
	v := createTestVideo(t, db, alice, "100% done", "", nil, day0)

	videos, err := db.SearchVideos(context.Background(), []string{"100%"})
	if err != nil {
		t.Fatalf("SearchVideos() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != v.ID {
		t.Errorf("SearchVideos(100%%) = %v, want [%s]", videoIDs(videos), v.ID)
	}
}

func TestSearchVideos_SkipsPrivateAndEmpty(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	v := createTestVideo(t, db, alice, "secret ocean", "", nil, day0)
	_ = db.SetVideoStat(context.Background(), v.ID, model.StatPrivate)

	videos, err := db.SearchVideos(context.Background(), []string{"ocean"})
	if err != nil {
		t.Fatalf("SearchVideos() error = %v", err)
	}
	if len(videos) != 0 {
		t.Errorf("SearchVideos() returned private video")
	}

	videos, err = db.SearchVideos(context.Background(), nil)
	if err != nil || len(videos) != 0 {
		t.Errorf("SearchVideos(nil) = %v, %v; want empty, nil", videos, err)
	}
}

// =========================================================================
// SIMILAR TESTS
// =========================================================================

func TestSimilarVideos_AnyTagAnyField(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")

	ref := createTestVideo(t, db, alice, "Docker basics", "", []string{"[docker]", "devops", "Ärger"}, day0)
	byTitle := createTestVideo(t, db, alice, "More DOCKER", "", nil, day0)
	byUnicode := createTestVideo(t, db, alice, "Viel ÄRGER", "", nil, day0)
	byDesc := createTestVideo(t, db, alice, "Pipelines", "a devops story", nil, day0)
	byTag := createTestVideo(t, db, alice, "Compose", "", []string{"docker-compose"}, day0)
	unrelated := createTestVideo(t, db, alice, "Cooking", "pasta", []string{"food"}, day0)

	videos, err := db.SimilarVideos(context.Background(), match.SanitizeTags(ref.Tags))
	if err != nil {
		t.Fatalf("SimilarVideos() error = %v", err)
	}

	for _, id := range []string{byTitle.ID, byDesc.ID, byTag.ID, byUnicode.ID} {
		if !containsID(videos, id) {
			t.Errorf("SimilarVideos() missing %s", id)
		}
	}
	if containsID(videos, unrelated.ID) {
		t.Error("SimilarVideos() returned an unrelated video")
	}
	if !containsID(videos, ref.ID) {
		t.Error("SimilarVideos() is expected to include the reference video; callers exclude it")
	}
}

func TestSimilarVideos_NoTags(t *testing.T) {
	db := newTestDB(t)
	videos, err := db.SimilarVideos(context.Background(), nil)
	if err != nil || len(videos) != 0 {
		t.Errorf("SimilarVideos(nil) = %v, %v; want empty, nil", videos, err)
	}
}

// =========================================================================
// MUTATION TESTS
// =========================================================================

func TestUpdateVideo_OnlyTouchesOneVideo(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	a := createTestVideo(t, db, alice, "a", "desc a", []string{"x"}, day0)
	b := createTestVideo(t, db, alice, "b", "desc b", []string{"y"}, day0)

	title := "a2"
	tags := []string{"p", "q"}
	if err := db.UpdateVideo(context.Background(), a.ID, model.VideoPatch{Title: &title, Tags: &tags}); err != nil {
		t.Fatalf("UpdateVideo() error = %v", err)
	}

	gotA, _ := db.GetVideo(context.Background(), a.ID)
	gotB, _ := db.GetVideo(context.Background(), b.ID)
	if gotA.Title != "a2" || gotA.Desc != "desc a" || len(gotA.Tags) != 2 {
		t.Errorf("updated video = %+v", gotA)
	}
	if gotB.Title != "b" || gotB.Tags[0] != "y" {
		t.Errorf("sibling video changed: %+v", gotB)
	}
}

func TestUpdateVideo_NotFound(t *testing.T) {
	db := newTestDB(t)
	title := "x"

	err := db.UpdateVideo(context.Background(), "missing", model.VideoPatch{Title: &title})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateVideo() error = %v, want ErrNotFound", err)
	}
	err = db.UpdateVideo(context.Background(), "missing", model.VideoPatch{})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateVideo(empty patch) error = %v, want ErrNotFound", err)
	}
}

func TestSetVideoStat_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	v := createTestVideo(t, db, alice, "t", "", nil, day0)

	for i := 0; i < 2; i++ {
		cur, _ := db.GetVideo(context.Background(), v.ID)
		if err := db.SetVideoStat(context.Background(), v.ID, cur.Stat.Toggle()); err != nil {
			t.Fatalf("SetVideoStat() error = %v", err)
		}
	}

	got, _ := db.GetVideo(context.Background(), v.ID)
	if got.Stat != model.StatPublic {
		t.Errorf("Stat after two toggles = %v, want public", got.Stat)
	}
}

func TestIncrementVisits(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	v := createTestVideo(t, db, alice, "t", "", nil, day0)

	for want := int64(1); want <= 3; want++ {
		got, err := db.IncrementVisits(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("IncrementVisits() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementVisits() = %d, want %d", got, want)
		}
	}

	if _, err := db.IncrementVisits(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("IncrementVisits(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMediaStatusAndPendingSweep(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")

	stale := &model.Video{OwnerID: alice.ID, Title: "stale", Path: "s.mp4", UploadDate: day0}
	fresh := &model.Video{OwnerID: alice.ID, Title: "fresh", Path: "f.mp4", UploadDate: day0.Add(2 * time.Hour)}
	for _, v := range []*model.Video{stale, fresh} {
		if err := db.CreateVideo(context.Background(), v); err != nil {
			t.Fatalf("CreateVideo() error = %v", err)
		}
	}

	pending, err := db.ListPendingBefore(context.Background(), day0.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListPendingBefore() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != stale.ID {
		t.Fatalf("ListPendingBefore() = %v, want [%s]", videoIDs(pending), stale.ID)
	}

	if err := db.SetMediaStatus(context.Background(), stale.ID, model.MediaFailed); err != nil {
		t.Fatalf("SetMediaStatus() error = %v", err)
	}
	got, _ := db.GetVideo(context.Background(), stale.ID)
	if got.MediaStatus != model.MediaFailed {
		t.Errorf("MediaStatus = %q, want failed", got.MediaStatus)
	}
}

func TestDeleteVideo_RemovesExactlyOne(t *testing.T) {
	db := newTestDB(t)
	alice := createTestAccount(t, db, "alice")
	bob := createTestAccount(t, db, "bob")

	target := createTestVideo(t, db, alice, "target", "", nil, day0)
	createTestVideo(t, db, alice, "keep", "", nil, day0)
	createTestVideo(t, db, bob, "bob keeps", "", nil, day0)

	if err := db.DeleteVideo(context.Background(), target.ID); err != nil {
		t.Fatalf("DeleteVideo() error = %v", err)
	}

	aliceVideos, _ := db.ListVideosByOwner(context.Background(), alice.ID)
	bobVideos, _ := db.ListVideosByOwner(context.Background(), bob.ID)
	if len(aliceVideos) != 1 || len(bobVideos) != 1 {
		t.Errorf("after delete alice=%d bob=%d, want 1 and 1", len(aliceVideos), len(bobVideos))
	}

	if err := db.DeleteVideo(context.Background(), target.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteVideo() error = %v, want ErrNotFound", err)
	}
}
