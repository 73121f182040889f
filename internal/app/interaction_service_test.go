package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-interaction-service/internal/app"
	"quiz-interaction-service/internal/domain"
	"quiz-interaction-service/internal/infra/memory"
)

type testEnv struct {
	service *app.InteractionService
	answers *memory.AnswerStore
	stats   app.StatisticsStore
}

func newTestEnv(t *testing.T, stats app.StatisticsStore) testEnv {
	t.Helper()
	if stats == nil {
		stats = memory.NewStatisticsStore()
	}
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	answers := memory.NewAnswerStore()
	service := app.NewInteractionService(app.ServiceDeps{
		Questions:   questions,
		Answers:     completeHistory{answers},
		Users:       memory.NewUserDirectory("u1", "u2"),
		Statistics:  app.NewStatisticsAggregator(stats, nil),
		Ledger:      app.NewEngagementLedger(questions, memory.NewLedgerStore(), nil),
		Broadcaster: app.NewTopicBroadcaster(app.NewTopicRegistry(), 16, nil),
	})
	return testEnv{service: service, answers: answers, stats: stats}
}

// completeHistory stands in for a durable answer store: the test process sees every answer.
type completeHistory struct {
	*memory.AnswerStore
}

func (completeHistory) Durable() bool { return true }

func TestPendulumAnswerIsGradedRecordedAndBroadcast(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	env.service.WithClock(func() time.Time { return at })

	sub, err := env.service.Subscribe(ctx, "pendulum", "viewer")
	require.NoError(t, err)
	defer env.service.Unsubscribe(sub)

	outcome, err := env.service.CreateAnswer(ctx, "pendulum", "u1", "  空気抵抗と摩擦でエネルギーが失われるから ")
	require.NoError(t, err)

	assert.Equal(t, domain.Verdict{Correct: true, MatchedCount: 3}, outcome.Verdict)
	assert.Equal(t, "空気抵抗と摩擦でエネルギーが失われるから", outcome.Answer.Text)
	assert.True(t, outcome.Answer.Correct)
	assert.Equal(t, at, outcome.Answer.CreatedAt)
	assert.Equal(t, 1, outcome.Delivered)

	assert.Equal(t, 1, outcome.Statistics.TotalAnswers)
	assert.Equal(t, 1, outcome.Statistics.CorrectAnswers)
	assert.Equal(t, 1, outcome.Statistics.Streak)
	assert.Equal(t, 1, outcome.Statistics.Level)
	assert.Equal(t, domain.SubjectProgress{Total: 1, Correct: 1}, outcome.Statistics.Subjects[domain.SubjectPhysics])

	evt := receive(t, sub)
	assert.Equal(t, domain.EventNewAnswer, evt.Type)
	require.NotNil(t, evt.Answer)
	assert.Equal(t, outcome.Answer.ID, evt.Answer.ID)
	assert.Equal(t, "u1", evt.Answer.Author.ID)

	stored, err := env.answers.ListAnswersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, outcome.Answer, stored[0])
}

func TestIncorrectAnswerResetsStreak(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.service.CreateAnswer(ctx, "pendulum", "u1", "運動エネルギーが減衰する")
	require.NoError(t, err)
	outcome, err := env.service.CreateAnswer(ctx, "pendulum", "u1", "わからない")
	require.NoError(t, err)

	assert.False(t, outcome.Verdict.Correct)
	assert.Equal(t, 2, outcome.Statistics.TotalAnswers)
	assert.Equal(t, 1, outcome.Statistics.CorrectAnswers)
	assert.Equal(t, 0, outcome.Statistics.Streak)
	assert.Equal(t, 1, outcome.Statistics.BestStreak)
}

func TestCreateAnswerValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		question string
		user     string
		text     string
		want     error
	}{
		{name: "blank text", question: "pendulum", user: "u1", text: " \n\t", want: domain.ErrValidation},
		{name: "blank user", question: "pendulum", user: "", text: "摩擦", want: domain.ErrValidation},
		{name: "unknown user", question: "pendulum", user: "ghost", text: "摩擦", want: domain.ErrUserNotFound},
		{name: "unknown question", question: "missing", user: "u1", text: "摩擦", want: domain.ErrQuestionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.CreateAnswer(ctx, tt.question, tt.user, tt.text)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var validation *domain.ValidationError
	_, err := env.service.CreateAnswer(ctx, "pendulum", "u1", "")
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "content", validation.Field)

	stored, err := env.answers.ListAnswersByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLikesAreBroadcastButViewsAreNot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	sub, err := env.service.Subscribe(ctx, "pendulum", "viewer")
	require.NoError(t, err)
	defer env.service.Unsubscribe(sub)

	view, err := env.service.RecordView(ctx, "pendulum", "u1")
	require.NoError(t, err)
	assert.True(t, view.FirstView)
	assertNoEvent(t, sub)

	_, err = env.service.ToggleLike(ctx, "pendulum", "u1")
	require.NoError(t, err)
	_, err = env.service.ToggleLike(ctx, "pendulum", "u2")
	require.NoError(t, err)
	_, err = env.service.ToggleLike(ctx, "pendulum", "u1")
	require.NoError(t, err)

	added := receive(t, sub)
	assert.Equal(t, domain.EventLikeAdded, added.Type)
	assert.Equal(t, 1, added.Count)
	assert.Equal(t, 2, receive(t, sub).Count)
	removed := receive(t, sub)
	assert.Equal(t, domain.EventLikeRemoved, removed.Type)
	assert.Equal(t, 1, removed.Count)

	question, engagement, err := env.service.Question(ctx, "pendulum")
	require.NoError(t, err)
	assert.Equal(t, "pendulum", question.ID)
	assert.Equal(t, domain.Engagement{QuestionID: "pendulum", Likes: 1, Views: 1}, engagement)
}

func TestSubscribeUnknownQuestion(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.service.Subscribe(context.Background(), "missing", "viewer")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingStatisticsStore struct {
	*memory.StatisticsStore
}

func (failingStatisticsStore) SaveStatistics(context.Context, domain.UserStatistics) error {
	return errors.New("disk full")
}

func TestStatisticsFailureDoesNotLoseAnswerAndReplayRepairs(t *testing.T) {
	ctx := context.Background()
	failing := failingStatisticsStore{StatisticsStore: memory.NewStatisticsStore()}
	env := newTestEnv(t, failing)

	sub, err := env.service.Subscribe(ctx, "rust", "viewer")
	require.NoError(t, err)
	defer env.service.Unsubscribe(sub)

	outcome, err := env.service.CreateAnswer(ctx, "rust", "u2", "oxygen and water cause oxidation")
	require.NoError(t, err)
	assert.True(t, outcome.Verdict.Correct)
	assert.Equal(t, domain.NewUserStatistics("u2"), outcome.Statistics)
	assert.Equal(t, domain.EventNewAnswer, receive(t, sub).Type)

	stats, err := env.service.Statistics(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAnswers)

	_, err = env.service.ReplayStatistics(ctx, "u2")
	assert.Error(t, err)
}

func TestReplayStatisticsRebuildsFromAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	clock := time.Date(2024, 11, 22, 8, 0, 0, 0, time.UTC)
	env.service.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	texts := []struct {
		question string
		text     string
	}{
		{"pendulum", "空気抵抗と摩擦"},
		{"rust", "water"},
		{"rust", "water and oxygen"},
		{"pendulum", "エネルギーの減衰"},
	}
	var last app.AnswerOutcome
	for _, step := range texts {
		var err error
		last, err = env.service.CreateAnswer(ctx, step.question, "u1", step.text)
		require.NoError(t, err)
	}

	require.NoError(t, env.stats.SaveStatistics(ctx, domain.NewUserStatistics("u1")))

	replayed, err := env.service.ReplayStatistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, last.Statistics, replayed)
	assert.Equal(t, 4, replayed.TotalAnswers)
	assert.Equal(t, 3, replayed.CorrectAnswers)
	assert.Equal(t, 2, replayed.Streak)
	assert.Equal(t, domain.SubjectProgress{Total: 2, Correct: 1}, replayed.Subjects[domain.SubjectChemistry])

	answers, err := env.answers.ListAnswersByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, app.HistoricalStreak(answers), replayed.Streak)
}

func TestReplayRefusesPartialHistoryAndKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	stats := memory.NewStatisticsStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewInteractionService(app.ServiceDeps{
		Questions:   questions,
		Answers:     memory.NewAnswerStore(),
		Users:       memory.NewUserDirectory("u1"),
		Statistics:  app.NewStatisticsAggregator(stats, nil),
		Ledger:      app.NewEngagementLedger(questions, memory.NewLedgerStore(), nil),
		Broadcaster: app.NewTopicBroadcaster(app.NewTopicRegistry(), 16, nil),
	})

	outcome, err := service.CreateAnswer(ctx, "pendulum", "u1", "空気抵抗と摩擦")
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Statistics.CorrectAnswers)

	_, err = service.ReplayStatistics(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)

	snapshot, err := service.Statistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, outcome.Statistics, snapshot)
}

func TestLikeCountsAreBroadcastInOrder(t *testing.T) {
	ctx := context.Background()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	users := memory.NewOpenUserDirectory()
	service := app.NewInteractionService(app.ServiceDeps{
		Questions:   questions,
		Answers:     memory.NewAnswerStore(),
		Users:       users,
		Statistics:  app.NewStatisticsAggregator(memory.NewStatisticsStore(), nil),
		Ledger:      app.NewEngagementLedger(questions, memory.NewLedgerStore(), nil),
		Broadcaster: app.NewTopicBroadcaster(app.NewTopicRegistry(), 64, nil),
	})

	sub, err := service.Subscribe(ctx, "pendulum", "viewer")
	require.NoError(t, err)
	defer service.Unsubscribe(sub)

	const likers = 20
	var wg sync.WaitGroup
	for i := 0; i < likers; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := service.ToggleLike(ctx, "pendulum", userID)
			assert.NoError(t, err)
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	for want := 1; want <= likers; want++ {
		evt := receive(t, sub)
		assert.Equal(t, domain.EventLikeAdded, evt.Type)
		assert.Equal(t, want, evt.Count)
	}
}

func TestPopularAndStatisticsRequireKnownUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.service.Statistics(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = env.service.ToggleLike(ctx, "pendulum", "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	top, err := env.service.Popular(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}

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
		"rust": {
			ID:                   "rust",
			Title:                "Why does iron rust?",
			Body:                 "Explain what happens to the nail left outside.",
			Difficulty:           2,
			Subject:              domain.SubjectChemistry,
			CorrectAnswerPattern: []string{"oxygen", "water", "oxidation"},
			OwnerID:              "teacher-2",
		},
	}
}
