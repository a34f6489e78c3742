package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskGenerate is the asynq task type for media generation.
const TaskGenerate = "media:generate"

// Queue is the Redis-backed Dispatcher. Tasks survive restarts and can be
// processed by any server sharing the Redis instance.
type Queue struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler Handler
	logger  *slog.Logger
	timeout time.Duration
}

// NewQueue connects to Redis at redisAddr. Call Start to begin consuming.
func NewQueue(redisAddr string, concurrency int, timeout time.Duration, handler Handler, logger *slog.Logger) *Queue {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	q := &Queue{
		client: asynq.NewClient(redisOpt),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{"media": 1},
			Logger:      &asynqLogger{logger: logger},
		}),
		mux:     asynq.NewServeMux(),
		handler: handler,
		logger:  logger,
		timeout: timeout,
	}
	q.mux.HandleFunc(TaskGenerate, q.process)
	return q
}

// Start runs the consumer in the background.
func (q *Queue) Start() error {
	q.logger.Info("starting media queue worker")
	if err := q.server.Start(q.mux); err != nil {
		return fmt.Errorf("media: starting queue worker: %w", err)
	}
	return nil
}

func (q *Queue) Dispatch(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("media: encoding task: %w", err)
	}

	opts := []asynq.Option{asynq.Queue("media"), asynq.MaxRetry(2)}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskGenerate, payload), opts...)
	if err != nil {
		return fmt.Errorf("media: enqueueing video %s: %w", t.VideoID, err)
	}
	q.logger.Debug("media task enqueued", slog.String("videoID", t.VideoID), slog.String("taskID", info.ID))
	return nil
}

// process is the asynq handler. A failed generation has already been
// recorded on the video, so it is not retried.
func (q *Queue) process(ctx context.Context, task *asynq.Task) error {
	var t Task
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("media: decoding task: %v: %w", err, asynq.SkipRetry)
	}
	if err := q.handler.Handle(ctx, t); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (q *Queue) Close() error {
	q.server.Shutdown()
	return q.client.Close()
}

// asynqLogger routes asynq's own logging into slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...), slog.String("component", "asynq"))
}
