package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mi-ganesh/Document-Editor/internal/models"
	"github.com/mi-ganesh/Document-Editor/internal/store"
)

// Document is the SQL row for a room's text.
type Document struct {
	ID     uint   `gorm:"primaryKey"`
	RoomID string `gorm:"column:room_id;uniqueIndex;not null"`
	Code   string `gorm:"column:code;not null;default:''"`
}

func (Document) TableName() string { return "documents" }

type DocumentRepository struct {
	DB *gorm.DB
}

var _ store.DocumentStore = (*DocumentRepository)(nil)

// Open connects to a postgres or sqlite database and migrates the documents table.
func Open(driver, dsn string) (*DocumentRepository, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps db and migrates the schema.
func New(db *gorm.DB) (*DocumentRepository, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &DocumentRepository{DB: db}, nil
}

func (r *DocumentRepository) FindOrCreate(ctx context.Context, roomID string) (*models.Document, error) {
	row := Document{RoomID: roomID}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, roomID)
}

func (r *DocumentRepository) Find(ctx context.Context, roomID string) (*models.Document, error) {
	var row Document
	err := r.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Document{RoomID: row.RoomID, Code: row.Code}, nil
}

func (r *DocumentRepository) Upsert(ctx context.Context, roomID, code string) error {
	row := Document{RoomID: roomID, Code: code}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code"}),
		}).
		Create(&row).Error
}

func (r *DocumentRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *DocumentRepository) Close(context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
