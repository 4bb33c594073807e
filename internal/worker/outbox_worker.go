package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"reservo/internal/domain"
	"reservo/internal/metrics"
	"reservo/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Handler performs one outbox task. A returned error schedules a retry.
type Handler func(ctx context.Context, task *models.OutboxTask) error

type taskLoader interface {
	GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error)
}

// OutboxWorker delivers the side effects of committed booking changes.
// Tasks are persisted first, then pushed to Redis (or a local channel when Redis is absent);
// the store is polled for due retries and for anything the queues lost.
type OutboxWorker struct {
	store         domain.OutboxStore
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewOutboxWorker(store domain.OutboxStore, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *OutboxWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		store:         store,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.OutboxTask, models.WorkerQueueSize),
		redisQueueKey: "reservo:outbox:queue",
		deadLetterKey: "reservo:outbox:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
		handlers:      make(map[string]Handler),
	}
}

// Handle registers the handler for a task type.
func (w *OutboxWorker) Handle(taskType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = h
}

func (w *OutboxWorker) handler(taskType string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[taskType]
	return h, ok
}

// DeadLetterKey is the Redis list holding tasks that ran out of attempts.
func (w *OutboxWorker) DeadLetterKey() string {
	return w.deadLetterKey
}

// EnqueueTask persists a task and schedules it. Types without a handler are skipped,
// so optional integrations can stay unconfigured.
func (w *OutboxWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if bookingID == "" {
		return errors.New("booking id is required")
	}
	if _, ok := w.handler(taskType); !ok {
		w.logger.Debug().Str("task_type", taskType).Str("booking_id", bookingID).Msg("no handler, task skipped")
		return nil
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(payloadBytes),
		Status:    models.TaskPending,
	}
	if err := w.store.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to local queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("local queue full, task left to polling")
	}
	return nil
}

// Start runs the worker loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		processed, err := w.ProcessDue(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
		}
		if processed == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessDue runs one batch of due tasks from the store.
func (w *OutboxWorker) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

// RequeueFailed gives every failed task one more attempt.
func (w *OutboxWorker) RequeueFailed(ctx context.Context) (int, error) {
	tasks, err := w.store.GetFailedOutboxTasks(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		if err := w.store.UpdateOutboxTaskStatus(ctx, t.ID, models.TaskPending, "", nil); err != nil {
			return 0, err
		}
	}
	return len(tasks), nil
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.OutboxTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP failed")
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.OutboxTask{}, false
	}
	return task, true
}

// refresh reloads a queued task so a copy already handled by polling is not run twice.
func (w *OutboxWorker) refresh(ctx context.Context, task *models.OutboxTask) bool {
	loader, ok := w.store.(taskLoader)
	if !ok || task.ID == 0 {
		return true
	}
	current, err := loader.GetOutboxTask(ctx, task.ID)
	if err != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("reload outbox task")
		return true
	}
	if current.Status == models.TaskCompleted || current.Status == models.TaskFailed {
		return false
	}
	*task = *current
	return true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	if !w.refresh(ctx, task) {
		return
	}

	h, ok := w.handler(task.TaskType)
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := h(ctx, task); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutboxTask(task.TaskType, "success")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if !w.retryPolicy.ShouldRetry(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncOutboxTask(task.TaskType, "retry")
	nextTime := w.retryPolicy.NextAttemptAt(time.Now(), attempt)
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Str("task_type", task.TaskType).
		Int("attempt", attempt).
		Time("next_retry_at", nextTime).
		Msg("outbox task failed, will retry")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncOutboxTask(task.TaskType, "failed")
	w.logger.Error().Err(cause).
		Int64("task_id", task.ID).
		Str("task_type", task.TaskType).
		Str("booking_id", task.BookingID).
		Msg("outbox task failed permanently")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *OutboxWorker) pushRedis(ctx context.Context, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}
