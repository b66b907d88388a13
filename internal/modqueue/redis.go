// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package modqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix     = "modq:job:"
	currentKeyPrefix = "modq:current:"
	readyKey         = "modq:ready"
)

// claimScript 原子弹出一条到期任务：ZRANGEBYSCORE 取最早到期成员并 ZREM。
// 原子性保证同一任务只会被一个 Worker 认领。
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
    return false
end
redis.call('ZREM', KEYS[1], ids[1])
return ids[1]
`)

// redisQueue Redis 实现：任务 JSON + 按 subject 的在途指针 + 按到期时间排序的
// ready zset。API 与 Worker 两个进程共享同一队列。
type redisQueue struct {
	client      *redis.Client
	maxAttempts int
}

// NewRedisQueue 创建 Redis 任务队列；maxAttempts 为新任务的最大执行次数（含首次），<=0 默认 3
func NewRedisQueue(client *redis.Client, maxAttempts int) Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &redisQueue{client: client, maxAttempts: maxAttempts}
}

func jobKey(jobID string) string         { return jobKeyPrefix + jobID }
func currentKey(subjectID string) string { return currentKeyPrefix + subjectID }

func (q *redisQueue) loadJob(ctx context.Context, c redis.Cmdable, jobID string) (*Job, error) {
	data, err := c.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("解析任务 %s 失败: %w", jobID, err)
	}
	return &job, nil
}

func saveJob(ctx context.Context, c redis.Cmdable, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.Set(ctx, jobKey(job.ID), data, 0).Err()
}

// Enqueue 实现 Queue；在途指针上的 WATCH 保证取代旧任务与写入新任务的原子性
func (q *redisQueue) Enqueue(ctx context.Context, subjectID, ownerID string, revision int64, payload Payload) (string, error) {
	now := time.Now()
	job := &Job{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		OwnerID:     ownerID,
		Payload:     payload,
		Revision:    revision,
		MaxAttempts: q.maxAttempts,
		NextRetryAt: now,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := q.client.Watch(ctx, func(tx *redis.Tx) error {
		oldID, err := tx.Get(ctx, currentKey(subjectID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		var superseded *Job
		if oldID != "" {
			old, loadErr := q.loadJob(ctx, tx, oldID)
			if loadErr != nil && !errors.Is(loadErr, ErrJobNotFound) {
				return loadErr
			}
			if old != nil && !old.Status.Terminal() {
				old.Status = StatusSuperseded
				old.UpdatedAt = now
				superseded = old
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if superseded != nil {
				data, mErr := json.Marshal(superseded)
				if mErr != nil {
					return mErr
				}
				pipe.Set(ctx, jobKey(superseded.ID), data, 0)
				pipe.ZRem(ctx, readyKey, superseded.ID)
			}
			data, mErr := json.Marshal(job)
			if mErr != nil {
				return mErr
			}
			pipe.Set(ctx, jobKey(job.ID), data, 0)
			pipe.ZAdd(ctx, readyKey, redis.Z{Score: float64(now.Unix()), Member: job.ID})
			pipe.Set(ctx, currentKey(subjectID), job.ID, 0)
			return nil
		})
		return err
	}, currentKey(subjectID))
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// ClaimOne 实现 Queue
func (q *redisQueue) ClaimOne(ctx context.Context, workerID string) (*Job, error) {
	res, err := claimScript.Run(ctx, q.client, []string{readyKey}, time.Now().Unix()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	jobID, _ := res.(string)
	if jobID == "" {
		return nil, nil
	}

	job, err := q.loadJob(ctx, q.client, jobID)
	if err != nil {
		return nil, err
	}
	// 被取代后残留在 zset 里的任务直接跳过
	if job.Status.Terminal() {
		return nil, nil
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	if err := saveJob(ctx, q.client, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Reschedule 实现 Queue
func (q *redisQueue) Reschedule(ctx context.Context, jobID string, attempt int, nextRetryAt time.Time) error {
	return q.client.Watch(ctx, func(tx *redis.Tx) error {
		job, err := q.loadJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return ErrJobTerminal
		}
		job.Status = StatusQueued
		job.Attempt = attempt
		job.NextRetryAt = nextRetryAt
		job.UpdatedAt = time.Now()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			data, mErr := json.Marshal(job)
			if mErr != nil {
				return mErr
			}
			pipe.Set(ctx, jobKey(job.ID), data, 0)
			pipe.ZAdd(ctx, readyKey, redis.Z{Score: float64(nextRetryAt.Unix()), Member: job.ID})
			return nil
		})
		return err
	}, jobKey(jobID))
}

// MarkSucceeded 实现 Queue
func (q *redisQueue) MarkSucceeded(ctx context.Context, jobID string) error {
	return q.markTerminal(ctx, jobID, StatusSucceeded, "")
}

// MarkFailed 实现 Queue
func (q *redisQueue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return q.markTerminal(ctx, jobID, StatusFailed, reason)
}

func (q *redisQueue) markTerminal(ctx context.Context, jobID string, status Status, reason string) error {
	return q.client.Watch(ctx, func(tx *redis.Tx) error {
		job, err := q.loadJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return ErrJobTerminal
		}
		job.Status = status
		job.FailReason = reason
		job.UpdatedAt = time.Now()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			data, mErr := json.Marshal(job)
			if mErr != nil {
				return mErr
			}
			pipe.Set(ctx, jobKey(job.ID), data, 0)
			pipe.ZRem(ctx, readyKey, job.ID)
			return nil
		})
		if err != nil {
			return err
		}
		// 仅当在途指针仍指向本任务时清除（可能已被新任务覆盖）
		cur, err := q.client.Get(ctx, currentKey(job.SubjectID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur == job.ID {
			return q.client.Del(ctx, currentKey(job.SubjectID)).Err()
		}
		return nil
	}, jobKey(jobID))
}

// GetStatus 实现 Queue
func (q *redisQueue) GetStatus(ctx context.Context, jobID string) (*Job, error) {
	return q.loadJob(ctx, q.client, jobID)
}
