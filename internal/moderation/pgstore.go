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

package moderation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore PostgreSQL 实现，使用 subjects 表。
// 建表参考：
//
//	CREATE TABLE subjects (
//	    id          TEXT PRIMARY KEY,
//	    owner_id    TEXT NOT NULL,
//	    name        TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    state       TEXT NOT NULL,
//	    notes       TEXT NOT NULL DEFAULT '',
//	    revision    BIGINT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 PostgreSQL 的审核对象存储
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const subjectColumns = `id, owner_id, name, description, state, notes, revision, created_at, updated_at`

func scanSubject(row pgx.Row) (*Subject, error) {
	var sub Subject
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &sub.Description,
		&sub.State, &sub.Notes, &sub.Revision, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *pgStore) Create(ctx context.Context, sub *Subject) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subjects (id, owner_id, name, description, state, notes, revision)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.OwnerID, sub.Name, sub.Description, sub.State, sub.Notes, sub.Revision,
	)
	return err
}

func (s *pgStore) Get(ctx context.Context, id string) (*Subject, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	return scanSubject(row)
}

func (s *pgStore) Revise(ctx context.Context, id, name, description string) (*Subject, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE subjects
		 SET name = $1, description = $2, revision = revision + 1,
		     state = $3, notes = '', updated_at = now()
		 WHERE id = $4
		 RETURNING `+subjectColumns,
		name, description, StatePendingReview, id)
	return scanSubject(row)
}

func (s *pgStore) Transition(ctx context.Context, id string, revision int64, newState State, notes string) (*Subject, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE subjects
		 SET state = $1, notes = $2, updated_at = now()
		 WHERE id = $3 AND revision = $4 AND state = $5
		 RETURNING `+subjectColumns,
		newState, notes, id, revision, StatePendingReview)
	sub, err := scanSubject(row)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubjectNotFound) {
		return nil, err
	}
	// 条件未命中：区分不存在 / revision 过期 / 状态不符
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Revision != revision {
		return nil, ErrStaleDecision
	}
	return nil, ErrIllegalTransition
}
