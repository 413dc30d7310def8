package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/capvis/internal/config"
	"github.com/timmy/capvis/internal/domain"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "captions.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return db
}

func testImage(key string, modTime time.Time) domain.ImageRecord {
	return domain.ImageRecord{
		Key:     key,
		Path:    "/data/source/" + key + ".jpg",
		Format:  "jpg",
		Size:    1234,
		ModTime: modTime,
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	img := testImage("a", time.Now())
	caption := &domain.Caption{
		SceneOverview: "a quiet street",
		Environment:   domain.Environment{LocationType: "outdoor"},
		Objects:       []domain.Object{{Name: "car", Attributes: []string{"red"}}},
	}

	if err := repo.Put(t.Context(), img, caption, "test-model"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(t.Context(), "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Structured() {
		t.Fatal("expected structured caption back")
	}
	if got.SceneOverview != caption.SceneOverview {
		t.Errorf("scene_overview = %q, want %q", got.SceneOverview, caption.SceneOverview)
	}
	if len(got.Objects) != 1 || got.Objects[0].Name != "car" {
		t.Errorf("objects = %+v", got.Objects)
	}

	rec, err := repo.GetRecord(t.Context(), "a")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.VLMModel != "test-model" {
		t.Errorf("model = %q, want test-model", rec.VLMModel)
	}
	if rec.RawFallback {
		t.Error("structured caption stored with raw fallback flag")
	}
}

func TestGetMissingKey(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	if _, err := repo.Get(t.Context(), "nope"); !domain.IsNotFound(err) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}
}

func TestPutRawFallback(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	img := testImage("a", time.Now())
	caption := &domain.Caption{RawText: "the model said: not json"}

	if err := repo.Put(t.Context(), img, caption, "test-model"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(t.Context(), "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Structured() {
		t.Fatal("expected raw fallback caption back")
	}
	if got.RawText != caption.RawText {
		t.Errorf("raw_text = %q, want %q", got.RawText, caption.RawText)
	}
}

func TestHasFreshness(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	modTime := time.Now().Add(-time.Hour)
	img := testImage("a", modTime)
	if err := repo.Put(t.Context(), img, &domain.Caption{SceneOverview: "x"}, "m"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ok, err := repo.Has(t.Context(), img)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !ok {
		t.Error("record with matching size and mtime should be fresh")
	}

	resized := img
	resized.Size = img.Size + 1
	if ok, _ := repo.Has(t.Context(), resized); ok {
		t.Error("record should be stale after file size change")
	}

	touched := img
	touched.ModTime = modTime.Add(time.Second)
	if ok, _ := repo.Has(t.Context(), touched); ok {
		t.Error("record should be stale after mtime change")
	}

	if ok, _ := repo.Has(t.Context(), testImage("other", modTime)); ok {
		t.Error("unknown key should not report a cached record")
	}
}

func TestHasMaxAge(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 50*time.Millisecond)
	img := testImage("a", time.Now())
	if err := repo.Put(t.Context(), img, &domain.Caption{SceneOverview: "x"}, "m"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ok, _ := repo.Has(t.Context(), img); !ok {
		t.Error("record should be fresh immediately after Put")
	}

	time.Sleep(80 * time.Millisecond)
	if ok, _ := repo.Has(t.Context(), img); ok {
		t.Error("record older than maxAge should be stale")
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	img := testImage("a", time.Now())

	if err := repo.Put(t.Context(), img, &domain.Caption{SceneOverview: "first"}, "m"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Put(t.Context(), img, &domain.Caption{SceneOverview: "second"}, "m"); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := repo.Get(t.Context(), "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SceneOverview != "second" {
		t.Errorf("scene_overview = %q, want second", got.SceneOverview)
	}

	keys, err := repo.Keys(t.Context())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("got %d keys after overwrite, want 1", len(keys))
	}
}

func TestKeysSorted(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	now := time.Now()
	for _, key := range []string{"c", "a", "b"} {
		if err := repo.Put(t.Context(), testImage(key, now), &domain.Caption{SceneOverview: key}, "m"); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	keys, err := repo.Keys(t.Context())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestClearAndStats(t *testing.T) {
	repo := NewCaptionRepository(newTestDB(t), 0)
	now := time.Now()
	for _, key := range []string{"a", "b"} {
		if err := repo.Put(t.Context(), testImage(key, now), &domain.Caption{SceneOverview: key}, "m"); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	stats, err := repo.Stats(t.Context())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Records != 2 {
		t.Errorf("records = %d, want 2", stats.Records)
	}
	if stats.PayloadBytes == 0 {
		t.Error("payload bytes should be non-zero with records present")
	}

	if err := repo.Clear(t.Context()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	stats, err = repo.Stats(t.Context())
	if err != nil {
		t.Fatalf("Stats after clear: %v", err)
	}
	if stats.Records != 0 || stats.PayloadBytes != 0 {
		t.Errorf("stats after clear = %+v, want empty", stats)
	}
	keys, err := repo.Keys(t.Context())
	if err != nil {
		t.Fatalf("Keys after clear: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys after clear, want 0", len(keys))
	}
}
