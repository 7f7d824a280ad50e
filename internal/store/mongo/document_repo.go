package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mi-ganesh/Document-Editor/internal/models"
	"github.com/mi-ganesh/Document-Editor/internal/store"
)

// Repo wraps the MongoDB collection holding one document per room.
type Repo struct{ col *mongo.Collection }

var _ store.DocumentStore = (*Repo)(nil)

// NewDocumentRepo opens the collection and ensures the unique index on roomId.
func NewDocumentRepo(ctx context.Context, c *Client, dbName, colName string) (*Repo, error) {
	db, err := c.DB(dbName)
	if err != nil {
		return nil, err
	}
	r := NewRepo(db.Collection(colName))
	if err := r.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRepo wraps an existing collection without touching its indexes.
func NewRepo(col *mongo.Collection) *Repo { return &Repo{col: col} }

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create roomId index: %w", err)
	}
	return nil
}

// FindOrCreate returns the room's document, inserting an empty one when absent.
func (r *Repo) FindOrCreate(ctx context.Context, roomID string) (*models.Document, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc models.Document
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$setOnInsert": bson.M{"code": ""}},
		opts,
	).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// lost a concurrent insert race; the winner's record is there now
		return r.Find(ctx, roomID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Repo) Find(ctx context.Context, roomID string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert replaces the room's code, creating the document when absent.
func (r *Repo) Upsert(ctx context.Context, roomID, code string) error {
	filter := bson.M{"roomId": roomID}
	update := bson.M{"$set": bson.M{"code": code}}
	opts := options.Update().SetUpsert(true)

	_, err := r.col.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = r.col.UpdateOne(ctx, filter, update)
	}
	return err
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, readpref.Primary())
}

func (r *Repo) Close(ctx context.Context) error {
	return r.col.Database().Client().Disconnect(ctx)
}
