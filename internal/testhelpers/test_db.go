package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mi-ganesh/Document-Editor/internal/store/gormstore"
)

var (
	openSQLite        = func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard}) }
	dropDocumentTable = func(db *gorm.DB) error { return db.Migrator().DropTable(&gormstore.Document{}) }
)

// SQLiteDSN returns an in-memory database name unique to the test.
func SQLiteDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// SetupTestStore creates an isolated in-memory SQLite document store for tests.
func SetupTestStore(t *testing.T) *gormstore.DocumentRepository {
	t.Helper()

	db, err := openSQLite(SQLiteDSN(t))
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	// shared-cache sqlite reports table locks under concurrent writers
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	repo, err := gormstore.New(db)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repo
}

// DropDocumentTable removes the documents table to force repository errors.
func DropDocumentTable(t *testing.T, repo *gormstore.DocumentRepository) {
	t.Helper()
	if err := dropDocumentTable(repo.DB); err != nil {
		panic(fmt.Sprintf("failed to drop documents table: %v", err))
	}
}
