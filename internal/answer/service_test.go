package answer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/chukwukap/waffles/internal/models"
)

type memGameRepo struct {
	cfg *models.GameConfig
}

func (r *memGameRepo) GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error) {
	return r.cfg, nil
}

type memAnswerRepo struct {
	mu     sync.Mutex
	saved  []*models.ScoredAnswer
	failOn int // fail the nth save (1-based), 0 disables
}

func (r *memAnswerRepo) SaveScoredAnswer(ctx context.Context, scored *models.ScoredAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn > 0 && len(r.saved)+1 == r.failOn {
		r.failOn = 0
		return errors.New("database unavailable")
	}
	r.saved = append(r.saved, scored)
	return nil
}

type AnswerServiceTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	clock   *clockwork.FakeClock
	games   *memGameRepo
	answers *memAnswerRepo
	service *Service

	startsAt time.Time
	playerID uuid.UUID
}

func (s *AnswerServiceTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	guard, err := NewRedisGuard(&RedisGuardConfig{RedisClient: s.client})
	s.Require().NoError(err)

	s.startsAt = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	s.clock = clockwork.NewFakeClockAt(s.startsAt)
	s.playerID = uuid.New()

	gameID := uuid.New()
	cfg := &models.GameConfig{ID: gameID, StartsAt: s.startsAt}
	for i := 0; i < 4; i++ {
		cfg.Questions = append(cfg.Questions, models.Question{
			ID:            uuid.New(),
			GameID:        gameID,
			Index:         i,
			DurationSec:   10,
			CorrectOption: 2,
			BasePoints:    1000,
		})
	}
	s.games = &memGameRepo{cfg: cfg}
	s.answers = &memAnswerRepo{}

	service, err := NewService(s.games, s.answers, guard, s.clock)
	s.Require().NoError(err)
	s.service = service
}

func (s *AnswerServiceTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestAnswerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AnswerServiceTestSuite))
}

func (s *AnswerServiceTestSuite) submitAt(offset time.Duration, playerID uuid.UUID, questionIdx int, option *int) (*SubmitOutput, error) {
	s.clock.Advance(s.startsAt.Add(offset).Sub(s.clock.Now()))
	return s.service.Submit(context.Background(), &SubmitInput{
		GameID:         s.games.cfg.ID,
		PlayerID:       playerID,
		QuestionID:     s.games.cfg.Questions[questionIdx].ID,
		SelectedOption: option,
	})
}

func intPtr(v int) *int { return &v }

func (s *AnswerServiceTestSuite) TestCorrectAnswerScoresBySpeed() {
	fast, err := s.submitAt(1*time.Second, s.playerID, 0, intPtr(2))
	s.Require().NoError(err)
	s.True(fast.Scored.IsCorrect)
	s.Equal(int64(1000), fast.Scored.ServerElapsedMs)

	slow, err := s.submitAt(19*time.Second, uuid.New(), 1, intPtr(2))
	s.Require().NoError(err)
	s.True(slow.Scored.IsCorrect)

	s.Greater(fast.Scored.PointsAwarded, slow.Scored.PointsAwarded)
	s.Greater(slow.Scored.PointsAwarded, int64(0))
}

func (s *AnswerServiceTestSuite) TestWrongAndTimeoutAnswersScoreZero() {
	wrong, err := s.submitAt(2*time.Second, s.playerID, 0, intPtr(1))
	s.Require().NoError(err)
	s.False(wrong.Scored.IsCorrect)
	s.Equal(int64(0), wrong.Scored.PointsAwarded)

	timeout, err := s.submitAt(3*time.Second, uuid.New(), 0, nil)
	s.Require().NoError(err)
	s.False(timeout.Scored.IsCorrect)
	s.Equal(int64(0), timeout.Scored.PointsAwarded)
}

func (s *AnswerServiceTestSuite) TestStaleQuestionRejected() {
	// Question 3 is current at T+35s; a submission for question 1, whose
	// window closed at T+20s, is stale.
	_, err := s.submitAt(35*time.Second, s.playerID, 1, intPtr(2))
	s.Require().ErrorIs(err, ErrStaleQuestion)

	// A submission for a future question is stale in the same way.
	_, err = s.submitAt(36*time.Second, s.playerID, 3, intPtr(2))
	s.Require().NoError(err) // index 3 is the current one

	_, err = s.submitAt(37*time.Second, uuid.New(), 2, intPtr(2))
	s.Require().ErrorIs(err, ErrStaleQuestion)
}

func (s *AnswerServiceTestSuite) TestUnknownQuestionRejectedAsStale() {
	s.clock.Advance(2 * time.Second)
	_, err := s.service.Submit(context.Background(), &SubmitInput{
		GameID:         s.games.cfg.ID,
		PlayerID:       s.playerID,
		QuestionID:     uuid.New(),
		SelectedOption: intPtr(2),
	})
	s.Require().ErrorIs(err, ErrStaleQuestion)
}

func (s *AnswerServiceTestSuite) TestWindowClosedAfterGameEnds() {
	_, err := s.submitAt(45*time.Second, s.playerID, 3, intPtr(2))
	s.Require().ErrorIs(err, ErrWindowClosed)
}

func (s *AnswerServiceTestSuite) TestScheduledGameRejectsSubmissions() {
	cfg := s.games.cfg
	cfg.StartsAt = s.startsAt.Add(time.Hour)
	_, err := s.service.Submit(context.Background(), &SubmitInput{
		GameID:         cfg.ID,
		PlayerID:       s.playerID,
		QuestionID:     cfg.Questions[0].ID,
		SelectedOption: intPtr(2),
	})
	s.Require().ErrorIs(err, ErrWindowClosed)
}

func (s *AnswerServiceTestSuite) TestConcurrentSubmissionsAcceptExactlyOne() {
	s.clock.Advance(2 * time.Second)

	const attempts = 50
	var wg sync.WaitGroup
	errCh := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Submit(context.Background(), &SubmitInput{
				GameID:         s.games.cfg.ID,
				PlayerID:       s.playerID,
				QuestionID:     s.games.cfg.Questions[0].ID,
				SelectedOption: intPtr(2),
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var accepted, duplicates int
	for err := range errCh {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrDuplicateSubmission):
			duplicates++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, accepted)
	s.Equal(attempts-1, duplicates)
	s.Len(s.answers.saved, 1)
}

func (s *AnswerServiceTestSuite) TestSaveFailureReleasesSlot() {
	s.clock.Advance(time.Second)
	s.answers.failOn = 1

	_, err := s.service.Submit(context.Background(), &SubmitInput{
		GameID:         s.games.cfg.ID,
		PlayerID:       s.playerID,
		QuestionID:     s.games.cfg.Questions[0].ID,
		SelectedOption: intPtr(2),
	})
	s.Require().Error(err)
	s.Require().NotErrorIs(err, ErrDuplicateSubmission)

	// The retry must not be rejected as a duplicate.
	out, err := s.service.Submit(context.Background(), &SubmitInput{
		GameID:         s.games.cfg.ID,
		PlayerID:       s.playerID,
		QuestionID:     s.games.cfg.Questions[0].ID,
		SelectedOption: intPtr(2),
	})
	s.Require().NoError(err)
	s.True(out.Scored.IsCorrect)
}

func TestSpeedScoreMonotone(t *testing.T) {
	const base, window = 1000, 10_000
	last := int64(base + 1)
	for elapsed := int64(0); elapsed <= window; elapsed += 250 {
		got := speedScore(base, elapsed, window)
		if got > last {
			t.Fatalf("score increased with elapsed time: %d at %dms after %d", got, elapsed, last)
		}
		if got <= 0 {
			t.Fatalf("correct answer scored %d at %dms, must stay above 0", got, elapsed)
		}
		last = got
	}
	if speedScore(base, 0, window) != base {
		t.Fatalf("instant answer must earn full base points")
	}
}
