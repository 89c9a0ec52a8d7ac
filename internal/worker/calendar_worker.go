package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/google"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CalendarClient is the calendar backend the worker writes to.
type CalendarClient interface {
	UpsertEvent(ctx context.Context, res *models.Reservation, owner *models.Owner) (string, error)
	DeleteEvent(ctx context.Context, eventID string, owner *models.Owner) error
}

// calendarTaskPayload is persisted in SyncTask.Payload as JSON.
type calendarTaskPayload struct {
	ReservationID string `json:"reservation_id"`
	OwnerID       string `json:"owner_id"`
	EventID       string `json:"event_id,omitempty"`
}

// CalendarWorker consumes sync_queue tasks and mirrors reservations into
// owners' calendars. It implements domain.CalendarSync: callers only enqueue.
type CalendarWorker struct {
	db            *database.DB
	calendar      CalendarClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
	now           func() time.Time
}

func NewCalendarWorker(db *database.DB, calendar CalendarClient, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger zerolog.Logger) *CalendarWorker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &CalendarWorker{
		db:            db,
		calendar:      calendar,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "courtbook:calendar:queue",
		deadLetterKey: "courtbook:calendar:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		logger:        logger,
		now:           time.Now,
	}
}

func (w *CalendarWorker) SyncReservation(ctx context.Context, res *models.Reservation) error {
	return w.EnqueueTask(ctx, models.SyncTaskUpsert, res)
}

func (w *CalendarWorker) RemoveReservation(ctx context.Context, res *models.Reservation) error {
	return w.EnqueueTask(ctx, models.SyncTaskDelete, res)
}

// EnqueueTask persists a task and schedules it via redis or the in-memory queue.
func (w *CalendarWorker) EnqueueTask(ctx context.Context, taskType string, res *models.Reservation) error {
	if taskType != models.SyncTaskUpsert && taskType != models.SyncTaskDelete {
		return fmt.Errorf("unknown task type: %q", taskType)
	}
	if res == nil || res.ID == "" {
		return errors.New("reservation id is required")
	}

	payloadBytes, err := json.Marshal(calendarTaskPayload{
		ReservationID: res.ID,
		OwnerID:       res.OwnerID,
		EventID:       res.CalendarEventID,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:      taskType,
		ReservationID: res.ID,
		Payload:       string(payloadBytes),
		Status:        models.SyncStatusPending,
	}
	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *CalendarWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("calendar worker started")
	defer w.logger.Info().Msg("calendar worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.ProcessPending(ctx); n == 0 {
			w.sleep(ctx)
		}
	}
}

// ProcessPending handles one batch of due tasks from the durable queue and
// returns how many it processed.
func (w *CalendarWorker) ProcessPending(ctx context.Context) int {
	tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *CalendarWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *CalendarWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *CalendarWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *CalendarWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload calendarTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	skipped, err := w.handleTask(ctx, task.TaskType, payload)
	switch {
	case err != nil:
		w.retryOrFail(ctx, task, err)
		return
	case skipped:
		metrics.IncCalendarSync("skipped")
	default:
		metrics.IncCalendarSync("completed")
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

// handleTask applies one task. It reloads the reservation so a stale task
// never resurrects a cancelled booking.
func (w *CalendarWorker) handleTask(ctx context.Context, taskType string, payload calendarTaskPayload) (skipped bool, err error) {
	if payload.ReservationID == "" {
		return false, errors.New("reservation id missing")
	}

	res, err := w.db.GetReservation(ctx, payload.ReservationID)
	if err != nil {
		return false, err
	}
	owner, err := w.db.GetOwner(ctx, res.OwnerID)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !owner.CalendarSynced {
		return true, nil
	}

	switch taskType {
	case models.SyncTaskUpsert:
		if res.Status != models.ReservationConfirmed {
			return true, nil
		}
		eventID, err := w.calendar.UpsertEvent(ctx, res, owner)
		if errors.Is(err, google.ErrNotLinked) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if eventID != res.CalendarEventID {
			return false, w.db.SetCalendarEventID(ctx, res.ID, eventID)
		}
		return false, nil
	case models.SyncTaskDelete:
		eventID := res.CalendarEventID
		if eventID == "" {
			eventID = payload.EventID
		}
		if eventID == "" {
			return true, nil
		}
		err := w.calendar.DeleteEvent(ctx, eventID, owner)
		if errors.Is(err, google.ErrNotLinked) {
			return true, nil
		}
		return false, err
	default:
		return false, fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *CalendarWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	metrics.IncCalendarSync("retry")
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("calendar sync failed, will retry")
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *CalendarWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncCalendarSync("failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("reservation_id", task.ReservationID).Msg("calendar sync failed permanently")
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *CalendarWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *CalendarWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
