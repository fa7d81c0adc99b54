package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// mongoConnectTimeout はMongoDBへの初回接続確認のタイムアウト。
const mongoConnectTimeout = 10 * time.Second

// ConnectMongo はMongoDBクライアントを生成し、Pingで接続を確認する。
// 呼び出し側は不要になった時点でclient.Disconnectを呼ぶこと。
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureMongoIndexes はnotekeeperが必要とするインデックスを作成する。
// users.emailの一意インデックスと、notesの所有者別一覧用の複合インデックス。
// 既に存在する場合は何もしない。
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = db.Collection("notes").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "isPinned", Value: -1},
			{Key: "createdOn", Value: -1},
		},
		Options: options.Index().SetName("notes_user_order"),
	})
	if err != nil {
		return fmt.Errorf("failed to create notes index: %w", err)
	}

	return nil
}

// MongoHealthChecker はMongoDBクライアントの疎通確認を行う。
type MongoHealthChecker struct {
	client *mongo.Client
}

// NewMongoHealthChecker はMongoHealthCheckerを生成する。
func NewMongoHealthChecker(client *mongo.Client) *MongoHealthChecker {
	return &MongoHealthChecker{client: client}
}

// PingContext はプライマリに対してPingを送る。
func (h *MongoHealthChecker) PingContext(ctx context.Context) error {
	return h.client.Ping(ctx, readpref.Primary())
}
