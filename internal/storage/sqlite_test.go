package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	statePath := filepath.Join(t.TempDir(), "state", "pks.db")
	db, err := OpenSQLite(statePath, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := NewSQLiteStore(db, func() time.Time { return time.Unix(1700000000, 0) })
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store, statePath
}

func TestSQLiteStorePutGetDelete(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, map[string]string{
		KeyAccessToken:  "access-1",
		KeyRefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	value, ok, err := store.Get(ctx, KeyAccessToken)
	if err != nil || !ok || value != "access-1" {
		t.Fatalf("unexpected access token lookup: %q %v %v", value, ok, err)
	}

	if err := store.Put(ctx, map[string]string{KeyAccessToken: "access-2"}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, _, _ = store.Get(ctx, KeyAccessToken)
	if value != "access-2" {
		t.Fatalf("expected overwritten value, got %q", value)
	}

	if err := store.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUserInfo); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, KeyRefreshToken); ok {
		t.Fatalf("expected refresh token to be deleted")
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	store, statePath := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, map[string]string{KeyUserInfo: `{"id":1}`}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	sqlDB, _ := store.db.DB()
	sqlDB.Close()

	db, err := OpenSQLite(statePath, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	reopened, err := NewSQLiteStore(db, nil)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	value, ok, err := reopened.Get(ctx, KeyUserInfo)
	if err != nil || !ok || value != `{"id":1}` {
		t.Fatalf("expected persisted profile, got %q %v %v", value, ok, err)
	}
}

func TestSQLiteStoreRejectsInvalidKey(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.Put(context.Background(), map[string]string{"": "x"}); err == nil {
		t.Fatalf("expected invalid key error")
	}
	if _, _, err := store.Get(context.Background(), ""); err == nil {
		t.Fatalf("expected invalid key error on get")
	}
}

func TestNewSQLiteStoreRequiresDatabase(t *testing.T) {
	if _, err := NewSQLiteStore(nil, nil); err != ErrMissingDatabase {
		t.Fatalf("expected ErrMissingDatabase, got %v", err)
	}
}

func TestApplyMigrationsCleansLegacyState(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "migration.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&Entry{}, &migrationRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	seed := []Entry{
		{Key: KeyAccessToken, Value: "  ", UpdatedAtSeconds: 1},
		{Key: legacyUserInfoKey, Value: `{"id":7}`, UpdatedAtSeconds: 1},
	}
	if err := database.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	var count int64
	database.Model(&Entry{}).Where("state_key = ?", KeyAccessToken).Count(&count)
	if count != 0 {
		t.Fatalf("expected blank access token row to be dropped")
	}
	var profile Entry
	if err := database.Where("state_key = ?", KeyUserInfo).Take(&profile).Error; err != nil {
		t.Fatalf("expected legacy profile to be renamed: %v", err)
	}
	if profile.Value != `{"id":7}` {
		t.Fatalf("unexpected profile value %q", profile.Value)
	}

	var records []migrationRecord
	database.Find(&records)
	if len(records) != 2 {
		t.Fatalf("expected 2 migration records, got %d", len(records))
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		t.Fatalf("re-applying migrations failed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, map[string]string{KeyAccessToken: "a", KeyUserInfo: "{}"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", store.Len())
	}
	if err := store.Delete(ctx, KeyAccessToken, "missing"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, KeyAccessToken); ok {
		t.Fatalf("expected access token to be removed")
	}
}
