package repository

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshotAt(id, city string, minutesAgo int, temp float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		ID:          id,
		City:        city,
		Country:     "FR",
		Temperature: temp,
		FeelsLike:   temp - 1,
		Humidity:    55,
		WindSpeed:   3.2,
		Description: "clear sky",
		Icon:        "01d",
		CapturedAt:  baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
		Source:      "OpenWeatherMap",
	}
}

func assertSameSnapshot(t *testing.T, got, want models.WeatherSnapshot) {
	t.Helper()
	if !got.CapturedAt.Equal(want.CapturedAt) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, want.CapturedAt)
	}
	got.CapturedAt, want.CapturedAt = time.Time{}, time.Time{}
	if got != want {
		t.Errorf("snapshot = %+v, want %+v", got, want)
	}
}

// testRepositoryContract exercises the behavior every Repository backend must share.
// newRepo must return an empty repository.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("save and get by id", func(t *testing.T) {
		repo := newRepo(t)
		want := snapshotAt("id-1", "Paris", 5, 18)
		if err := repo.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, found, err := repo.GetByID(ctx, "id-1")
		if err != nil || !found {
			t.Fatalf("GetByID() = found %v, err %v; want true, nil", found, err)
		}
		assertSameSnapshot(t, got, want)
	})

	t.Run("get by id missing", func(t *testing.T) {
		repo := newRepo(t)
		_, found, err := repo.GetByID(ctx, "nope")
		if err != nil || found {
			t.Errorf("GetByID() = found %v, err %v; want false, nil", found, err)
		}
	})

	t.Run("get by city returns most recent and ignores case", func(t *testing.T) {
		repo := newRepo(t)
		for _, s := range []models.WeatherSnapshot{
			snapshotAt("old", "Paris", 90, 10),
			snapshotAt("new", "Paris", 5, 18),
			snapshotAt("mid", "Paris", 40, 14),
			snapshotAt("ldn", "London", 1, 9),
		} {
			if err := repo.Save(ctx, s); err != nil {
				t.Fatalf("Save(%s) error = %v", s.ID, err)
			}
		}
		got, found, err := repo.GetByCity(ctx, " paris ")
		if err != nil || !found {
			t.Fatalf("GetByCity() = found %v, err %v; want true, nil", found, err)
		}
		if got.ID != "new" {
			t.Errorf("GetByCity().ID = %q, want new", got.ID)
		}
	})

	t.Run("get by city unknown", func(t *testing.T) {
		repo := newRepo(t)
		_ = repo.Save(ctx, snapshotAt("ldn", "London", 1, 9))
		_, found, err := repo.GetByCity(ctx, "Paris")
		if err != nil || found {
			t.Errorf("GetByCity() = found %v, err %v; want false, nil", found, err)
		}
	})

	t.Run("duplicate rows per city are kept", func(t *testing.T) {
		repo := newRepo(t)
		_ = repo.Save(ctx, snapshotAt("a", "Paris", 2, 18))
		_ = repo.Save(ctx, snapshotAt("b", "Paris", 1, 18))
		recent, err := repo.GetRecent(ctx, 10)
		if err != nil {
			t.Fatalf("GetRecent() error = %v", err)
		}
		if len(recent) != 2 {
			t.Errorf("len(GetRecent()) = %d, want 2", len(recent))
		}
	})

	t.Run("save upserts by id", func(t *testing.T) {
		repo := newRepo(t)
		_ = repo.Save(ctx, snapshotAt("id-1", "Paris", 5, 18))
		updated := snapshotAt("id-1", "Paris", 1, 21)
		if err := repo.Save(ctx, updated); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, _, _ := repo.GetByID(ctx, "id-1")
		assertSameSnapshot(t, got, updated)
		recent, _ := repo.GetRecent(ctx, 10)
		if len(recent) != 1 {
			t.Errorf("len(GetRecent()) = %d after upsert, want 1", len(recent))
		}
	})

	t.Run("get recent caps and orders", func(t *testing.T) {
		repo := newRepo(t)
		for i, mins := range []int{30, 10, 50, 20, 40} {
			_ = repo.Save(ctx, snapshotAt(string(rune('a'+i)), "Paris", mins, float64(i)))
		}
		recent, err := repo.GetRecent(ctx, 3)
		if err != nil {
			t.Fatalf("GetRecent() error = %v", err)
		}
		if len(recent) != 3 {
			t.Fatalf("len(GetRecent(3)) = %d, want 3", len(recent))
		}
		for i := 1; i < len(recent); i++ {
			if recent[i].CapturedAt.After(recent[i-1].CapturedAt) {
				t.Errorf("GetRecent() not ordered most recent first at %d", i)
			}
		}
		if recent[0].ID != "b" {
			t.Errorf("GetRecent()[0].ID = %q, want b", recent[0].ID)
		}
	})

	t.Run("get recent empty", func(t *testing.T) {
		repo := newRepo(t)
		recent, err := repo.GetRecent(ctx, 5)
		if err != nil || len(recent) != 0 {
			t.Errorf("GetRecent() = %v, %v; want empty, nil", recent, err)
		}
	})

	t.Run("delete removes every index entry", func(t *testing.T) {
		repo := newRepo(t)
		_ = repo.Save(ctx, snapshotAt("gone", "Paris", 1, 18))
		_ = repo.Save(ctx, snapshotAt("kept", "Paris", 20, 12))
		if err := repo.Delete(ctx, "gone"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, found, _ := repo.GetByID(ctx, "gone"); found {
			t.Error("GetByID() found deleted snapshot")
		}
		got, found, err := repo.GetByCity(ctx, "Paris")
		if err != nil || !found || got.ID != "kept" {
			t.Errorf("GetByCity() = %q, found %v, err %v; want kept", got.ID, found, err)
		}
		recent, _ := repo.GetRecent(ctx, 10)
		if len(recent) != 1 {
			t.Errorf("len(GetRecent()) = %d, want 1", len(recent))
		}
	})

	t.Run("delete unknown id is not an error", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Delete(ctx, "unknown-id"); err != nil {
			t.Errorf("Delete(unknown) error = %v, want nil", err)
		}
	})
}
