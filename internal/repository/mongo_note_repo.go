package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/notekeeper/internal/model"
)

// noteDocument はnotesコレクションのドキュメント表現。
type noteDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	Tags      []string  `bson:"tags"`
	IsPinned  bool      `bson:"isPinned"`
	CreatedOn time.Time `bson:"createdOn"`
	UpdatedOn time.Time `bson:"updatedOn"`
}

func (d *noteDocument) toModel() *model.Note {
	return &model.Note{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		Content:   d.Content,
		Tags:      nonNilTags(d.Tags),
		IsPinned:  d.IsPinned,
		CreatedAt: d.CreatedOn,
		UpdatedAt: d.UpdatedOn,
	}
}

// noteSort はノート一覧の並び順。PostgresNoteRepoのORDER BYと同じ。
var noteSort = bson.D{
	{Key: "isPinned", Value: -1},
	{Key: "createdOn", Value: -1},
	{Key: "_id", Value: 1},
}

// MongoNoteRepo はMongoDBを使用したノートリポジトリ。
type MongoNoteRepo struct {
	coll *mongo.Collection
}

// NewMongoNoteRepo はMongoNoteRepoを生成する。
func NewMongoNoteRepo(db *mongo.Database) *MongoNoteRepo {
	return &MongoNoteRepo{coll: db.Collection(NotesCollection)}
}

// Create はノートを作成する。
func (r *MongoNoteRepo) Create(ctx context.Context, note *model.Note) error {
	doc := noteDocument{
		ID:        note.ID,
		UserID:    note.UserID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      nonNilTags(note.Tags),
		IsPinned:  note.IsPinned,
		CreatedOn: note.CreatedAt,
		UpdatedOn: note.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// ListByOwner は所有者のノート一覧を返す。
func (r *MongoNoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	return r.find(ctx, bson.M{"userId": ownerID})
}

// SearchByOwner はタイトル・本文・タグを対象に部分一致検索する。
// queryはregexp.QuoteMetaでエスケープしてから大文字小文字を区別しない正規表現に埋め込む。
func (r *MongoNoteRepo) SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.Note, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"userId": ownerID,
		"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
			bson.M{"tags": pattern},
		},
	}
	return r.find(ctx, filter)
}

// UpdateByOwner は_idとuserIdの両方を条件にしたFindOneAndUpdateで部分更新する。
// 対象ドキュメントがない場合はnilを返す。
func (r *MongoNoteRepo) UpdateByOwner(ctx context.Context, ownerID, noteID string, update model.NoteUpdate) (*model.Note, error) {
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Tags != nil {
		set["tags"] = nonNilTags(*update.Tags)
	}
	if update.IsPinned != nil {
		set["isPinned"] = *update.IsPinned
	}
	if update.UpdatedAt != nil {
		set["updatedOn"] = *update.UpdatedAt
	}
	if len(set) == 0 {
		return nil, errors.New("update has no fields")
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc noteDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": noteID, "userId": ownerID},
		bson.M{"$set": set},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return doc.toModel(), nil
}

// DeleteByOwner は所有者条件付きでノートを削除する。
func (r *MongoNoteRepo) DeleteByOwner(ctx context.Context, ownerID, noteID string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": noteID, "userId": ownerID})
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (r *MongoNoteRepo) find(ctx context.Context, filter bson.M) ([]*model.Note, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(noteSort))
	if err != nil {
		return nil, fmt.Errorf("failed to find notes: %w", err)
	}
	defer cursor.Close(ctx)

	notes := []*model.Note{}
	for cursor.Next(ctx) {
		var doc noteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode note: %w", err)
		}
		notes = append(notes, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// compile-time interface check
var _ NoteRepository = (*MongoNoteRepo)(nil)
