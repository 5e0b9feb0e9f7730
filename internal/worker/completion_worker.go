package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/service"
)

const (
	// MaxCompletionAttempts counts the original attempt made at submission time.
	MaxCompletionAttempts = 5
	CompletionPollTimeout = 1 * time.Second
	CompletionRetryDelay  = 5 * time.Second
)

// promoteScript atomically moves members of KEYS[1] scored at most ARGV[1]
// onto the tail of list KEYS[2].
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('RPUSH', KEYS[2], job)
end
return #due
`)

// Completer performs the enrollment completion transition.
type Completer interface {
	Complete(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error)
}

// CompletionWorker consumes retry_completion_queue and retries course
// completions that failed after a passing submission.
type CompletionWorker struct {
	completer  Completer
	rdb        *redis.Client
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewCompletionWorker creates a new CompletionWorker.
func NewCompletionWorker(completer Completer, rdb *redis.Client, log zerolog.Logger) *CompletionWorker {
	return &CompletionWorker{
		completer:  completer,
		rdb:        rdb,
		log:        log.With().Str("component", "completion_worker").Logger(),
		retryDelay: CompletionRetryDelay,
	}
}

// Start begins the worker loop and returns when ctx is cancelled. Call in a
// goroutine. Jobs still queued or delayed at shutdown stay in Redis for the
// next start.
func (w *CompletionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *CompletionWorker) processNext(ctx context.Context) {
	w.promoteDue(ctx)

	result, err := w.rdb.BLPop(ctx, CompletionPollTimeout, config.WorkerKey.RetryCompletionQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			// Back off so an unreachable Redis does not spin the loop.
			sleepCtx(ctx, CompletionPollTimeout)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var job model.CompletionRetry
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Str("payload", result[1]).Msg("Dropping malformed job")
		return
	}

	w.handle(ctx, job)
}

func (w *CompletionWorker) handle(ctx context.Context, job model.CompletionRetry) {
	jobLog := w.log.With().
		Int("student_id", job.StudentID).
		Int("course_id", job.CourseID).
		Int("attempt", job.Attempt).
		Logger()

	_, err := w.completer.Complete(ctx, job.StudentID, job.CourseID)
	switch {
	case err == nil:
		jobLog.Info().Msg("Course completed on retry")
	case errors.Is(err, service.ErrAlreadyCompleted), errors.Is(err, service.ErrNotEnrolled):
		jobLog.Info().Err(err).Msg("Completion no longer applicable")
	case job.Attempt+1 >= MaxCompletionAttempts:
		jobLog.Error().Err(err).Msg("Completion retries exhausted")
	default:
		jobLog.Warn().Err(err).Dur("delay", w.retryDelay).Msg("Completion failed, requeueing")
		job.Attempt++
		w.requeue(ctx, job, time.Now().Add(w.retryDelay))
	}
}

// requeue parks job in the delayed set until due. The loop keeps draining
// the queue in the meantime.
func (w *CompletionWorker) requeue(ctx context.Context, job model.CompletionRetry, due time.Time) {
	raw, err := json.Marshal(job)
	if err != nil {
		w.log.Error().Err(err).Msg("Encode job failed")
		return
	}
	// A shutdown in progress must not lose the job.
	err = w.rdb.ZAdd(context.WithoutCancel(ctx), config.WorkerKey.RetryCompletionDelayed, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: raw,
	}).Err()
	if err != nil {
		w.log.Error().Err(err).
			Int("student_id", job.StudentID).
			Int("course_id", job.CourseID).
			Msg("Requeue failed, job lost")
	}
}

// promoteDue moves delayed jobs whose time has come onto the queue.
func (w *CompletionWorker) promoteDue(ctx context.Context) {
	keys := []string{config.WorkerKey.RetryCompletionDelayed, config.WorkerKey.RetryCompletionQueue}
	moved, err := promoteScript.Run(ctx, w.rdb, keys, time.Now().UnixMilli()).Int()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Promote delayed jobs failed")
		}
		return
	}
	if moved > 0 {
		w.log.Debug().Int("jobs", moved).Msg("Delayed jobs promoted")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
