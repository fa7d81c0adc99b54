package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/notekeeper/internal/config"
	"github.com/hitoshi/notekeeper/internal/database"
	"github.com/hitoshi/notekeeper/internal/handler"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// Store はSTORE_DRIVERに応じて構築したリポジトリ群と後始末処理をまとめたもの。
type Store struct {
	Users  repository.UserRepository
	Notes  repository.NoteRepository
	Health handler.HealthChecker // nilの場合はヘルスチェックで常に成功を返す

	close func(ctx context.Context) error
}

// Close はストアの接続を閉じる。
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStore は設定に応じてPostgreSQL・MongoDB・インメモリのいずれかのストアを開く。
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("database connection established", slog.String("driver", cfg.StoreDriver))
		return &Store{
			Users:  repository.NewPostgresUserRepo(db),
			Notes:  repository.NewPostgresNoteRepo(db),
			Health: db,
			close:  func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		slog.Info("database connection established",
			slog.String("driver", cfg.StoreDriver),
			slog.String("database", cfg.MongoDatabase),
		)
		return &Store{
			Users:  repository.NewMongoUserRepo(db),
			Notes:  repository.NewMongoNoteRepo(db),
			Health: database.NewMongoHealthChecker(client),
			close:  client.Disconnect,
		}, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &Store{
			Users: mem.Users(),
			Notes: mem.Notes(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
