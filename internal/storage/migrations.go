package storage

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationDropBlankEntries = "2026-09-14_drop_blank_state_entries"
	migrationRenameLegacyUser = "2026-10-02_rename_legacy_user_key"
	legacyUserInfoKey         = "user"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDropBlankEntries, apply: dropBlankEntries},
		{name: migrationRenameLegacyUser, apply: renameLegacyUserKey},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("client state migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Blank credentials were written by early builds on logout instead of deleting the row.
func dropBlankEntries(db *gorm.DB) error {
	return db.Where("TRIM(state_value) = ''").Delete(&Entry{}).Error
}

func renameLegacyUserKey(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&Entry{}).Where("state_key = ?", KeyUserInfo).Count(&current).Error; err != nil {
			return err
		}
		if current > 0 {
			return tx.Where("state_key = ?", legacyUserInfoKey).Delete(&Entry{}).Error
		}
		return tx.Model(&Entry{}).
			Where("state_key = ?", legacyUserInfoKey).
			Update("state_key", KeyUserInfo).Error
	})
}
