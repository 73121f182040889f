package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-interaction-service/internal/app"
	"quiz-interaction-service/internal/config"
	"quiz-interaction-service/internal/domain"
	"quiz-interaction-service/internal/infra/memory"
	"quiz-interaction-service/internal/infra/postgres"
	infraredis "quiz-interaction-service/internal/infra/redis"
)

// runtime owns the storage clients behind one InteractionService.
type runtime struct {
	service *app.InteractionService
	redis   *goredis.Client
	pool    *pgxpool.Pool
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// buildRuntime picks storage per configured backend: Postgres for durable records,
// Redis for the question cache, engagement counters and snapshots, memory for whatever
// is left unconfigured. Topics always live in process.
func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}

	if cfg.Redis.Addr != "" {
		rt.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{MaxConns: int32(cfg.Postgres.MaxConns)})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.pool = pool
	}

	seeds, err := loadSeeds(cfg.Questions.SeedFile)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(seeds)
	if rt.pool != nil {
		pgLoader := postgres.NewQuestionLoader(rt.pool)
		if cfg.Questions.SeedFile != "" {
			if err := seedPostgres(ctx, rt.pool, pgLoader, seeds); err != nil {
				rt.Close()
				return nil, err
			}
		}
		loader = pgLoader
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if rt.redis != nil {
		questions = infraredis.NewQuestionRepository(rt.redis, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var (
		answers app.AnswerStore     = memory.NewAnswerStore()
		users   app.UserDirectory   = memory.NewOpenUserDirectory()
		ledger  app.LedgerStore     = memory.NewLedgerStore()
		stats   app.StatisticsStore = memory.NewStatisticsStore()
	)
	if rt.pool != nil {
		answers = postgres.NewAnswerStore(rt.pool)
		users = postgres.NewUserDirectory(rt.pool)
		ledger = postgres.NewLedgerStore(rt.pool)
		stats = postgres.NewStatisticsStore(rt.pool)
	}
	if rt.redis != nil {
		ledger = infraredis.NewLedgerStore(rt.redis)
		stats = infraredis.NewStatisticsStore(rt.redis)
	}

	rt.service = app.NewInteractionService(app.ServiceDeps{
		Questions:   questions,
		Answers:     answers,
		Users:       users,
		Statistics:  app.NewStatisticsAggregator(stats, logger),
		Ledger:      app.NewEngagementLedger(questions, ledger, logger),
		Broadcaster: app.NewTopicBroadcaster(app.NewTopicRegistry(), cfg.Broadcast.Buffer, logger),
		Logger:      logger,
	})

	logger.Info("runtime ready",
		zap.Bool("redis", rt.redis != nil),
		zap.Bool("postgres", rt.pool != nil),
		zap.Int("seed_questions", len(seeds)),
	)
	return rt, nil
}

func loadSeeds(path string) (map[string]domain.Question, error) {
	if path == "" {
		return sampleQuestions(), nil
	}
	seeds, err := memory.LoadSeedFile(path)
	if err != nil {
		return nil, fmt.Errorf("load seeds: %w", err)
	}
	return seeds, nil
}

func seedPostgres(ctx context.Context, db postgres.DBTX, loader *postgres.QuestionLoader, seeds map[string]domain.Question) error {
	users := postgres.NewUserDirectory(db)
	for _, q := range seeds {
		if err := users.UpsertUser(ctx, q.OwnerID, ""); err != nil {
			return fmt.Errorf("seed owner %q: %w", q.OwnerID, err)
		}
		if err := loader.SaveQuestion(ctx, q); err != nil {
			return fmt.Errorf("seed question %q: %w", q.ID, err)
		}
	}
	return nil
}

// sampleQuestions is served when no seed file is configured.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"pendulum": {
			ID:                   "pendulum",
			Title:                "次に起こることを予測しよう！",
			Body:                 "振り子はなぜだんだん止まるのでしょう？",
			Difficulty:           2,
			Subject:              domain.SubjectPhysics,
			CorrectAnswerPattern: []string{"空気抵抗", "摩擦", "エネルギー", "減衰", "運動エネルギー"},
			OwnerID:              "teacher-1",
			VideoURL:             "/videos/question1.mp4",
		},
	}
}
