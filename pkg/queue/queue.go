// Package queue distributes orchestration runs to workers over Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

const (
	jobsKey          = "growthdesk:gap:jobs"
	resultsKeyPrefix = "growthdesk:gap:results"
	notifyKeyPrefix  = "growthdesk:gap:notifications:job"

	resultTTL = 1 * time.Hour
)

// Job is one queued orchestration request.
type Job struct {
	ID        string                   `json:"id"`
	Input     models.OrchestratorInput `json:"input"`
	CreatedAt time.Time                `json:"created_at"`
}

// JobInfo is the enqueue acknowledgment.
type JobInfo struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// JobResult wraps the orchestrator output with worker metadata.
type JobResult struct {
	ID         string                     `json:"id"`
	Success    bool                       `json:"success"`
	Error      string                     `json:"error,omitempty"`
	Output     *models.OrchestratorOutput `json:"output,omitempty"`
	ExecutedAt string                     `json:"executed_at"`
	WorkerID   string                     `json:"worker_id"`
}

// RunQueue manages orchestration job distribution via Redis.
type RunQueue struct {
	redis *redis.Client
}

// NewRunQueue connects to Redis and verifies the connection.
func NewRunQueue(redisURL string) (*RunQueue, error) {
	opt, err := redis.ParseURL(fmt.Sprintf("redis://%s", redisURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RunQueue{redis: client}, nil
}

// Enqueue pushes an orchestration request onto the queue.
func (q *RunQueue) Enqueue(ctx context.Context, input models.OrchestratorInput) (*JobInfo, error) {
	if input.CompanyID == "" {
		return nil, fmt.Errorf("company_id is required")
	}
	job := Job{
		ID:        uuid.NewString(),
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.redis.RPush(ctx, jobsKey, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return &JobInfo{
		ID:        job.ID,
		CompanyID: input.CompanyID,
		Status:    "queued",
		CreatedAt: job.CreatedAt,
	}, nil
}

// Dequeue blocks up to timeout for the next job. Returns nil when the wait
// times out.
func (q *RunQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.redis.BLPop(ctx, timeout, jobsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return &job, nil
}

// StoreResult persists a job result with a TTL and publishes a completion
// notification.
func (q *RunQueue) StoreResult(ctx context.Context, result *JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := fmt.Sprintf("%s:%s", resultsKeyPrefix, result.ID)
	if err := q.redis.Set(ctx, key, data, resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	notifyKey := fmt.Sprintf("%s:%s", notifyKeyPrefix, result.ID)
	if err := q.redis.Publish(ctx, notifyKey, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// GetResult fetches the result for a job, or an error when none exists yet.
func (q *RunQueue) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	key := fmt.Sprintf("%s:%s", resultsKeyPrefix, jobID)
	data, err := q.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job result not found")
		}
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}
	var result JobResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// WaitForResult waits for a job result up to timeout, via pubsub with a
// periodic fallback poll.
func (q *RunQueue) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*JobResult, error) {
	notifyKey := fmt.Sprintf("%s:%s", notifyKeyPrefix, jobID)
	pubsub := q.redis.Subscribe(ctx, notifyKey)
	defer pubsub.Close()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return q.GetResult(ctx, jobID)
		case <-ticker.C:
			if result, err := q.GetResult(ctx, jobID); err == nil {
				return result, nil
			}
		case msg := <-pubsub.Channel():
			var result JobResult
			if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
				continue
			}
			return &result, nil
		}
	}
}

// Length returns the current queue depth.
func (q *RunQueue) Length(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, jobsKey).Result()
}

// Close closes the Redis connection.
func (q *RunQueue) Close() error {
	if q.redis != nil {
		return q.redis.Close()
	}
	return nil
}
