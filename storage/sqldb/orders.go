// Copyright 2025 Poiesic Systems
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

package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/storage"
)

const orderColumns = `id, batch_id, original_text, content_hash, order_number, address, subject,
	schedule, requirements, price, teacher_gender, student_info, created_at, updated_at`

// OrderRepository implements storage.OrderRepository on a Store.
type OrderRepository struct {
	store *Store
}

var _ storage.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a repository backed by store.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// WithTransaction delegates to the store.
func (r *OrderRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.WithTransaction(ctx, fn)
}

// Insert adds records in one transaction and writes the assigned IDs back.
func (r *OrderRepository) Insert(ctx context.Context, records ...*core.OrderRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	for _, record := range records {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		if err := core.ValidateOrderRecord(record); err != nil {
			return err
		}
		record.ContentHash = core.ContentHash(record.OriginalText)
	}

	query := r.store.rebind(`INSERT INTO orders (batch_id, original_text, content_hash, order_number, address,
		subject, schedule, requirements, price, teacher_gender, student_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	return r.withTx(ctx, "insert orders", func(ctx context.Context, conn DBExecutor) error {
		for _, record := range records {
			row := conn.QueryRowContext(ctx, query,
				record.BatchID, record.OriginalText, record.ContentHash,
				record.OrderNumber, record.Address, record.Subject, record.Schedule,
				record.Requirements, record.Price, record.TeacherGender, record.StudentInfo,
				toUnix(record.CreatedAt), toUnix(record.UpdatedAt))
			if err := row.Scan(&record.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryUnparsed returns records with an empty address, ordered by ID.
func (r *OrderRepository) QueryUnparsed(ctx context.Context) ([]*core.OrderRecord, error) {
	return r.query(ctx, "query unparsed",
		"SELECT "+orderColumns+" FROM orders WHERE address = '' ORDER BY id")
}

// QueryUnparsedByBatch returns unparsed records of one batch, ordered by ID.
func (r *OrderRepository) QueryUnparsedByBatch(ctx context.Context, batchID string) ([]*core.OrderRecord, error) {
	return r.query(ctx, "query unparsed by batch",
		"SELECT "+orderColumns+" FROM orders WHERE address = '' AND batch_id = ? ORDER BY id", batchID)
}

// QueryAll returns every record ordered by ID.
func (r *OrderRepository) QueryAll(ctx context.Context) ([]*core.OrderRecord, error) {
	return r.query(ctx, "query all", "SELECT "+orderColumns+" FROM orders ORDER BY id")
}

// Get returns one record by ID.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*core.OrderRecord, error) {
	records, err := r.query(ctx, "get order", "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: order %d", storage.ErrNotFound, id)
	}
	return records[0], nil
}

// CountByBatch summarizes records per batch, newest batch first.
func (r *OrderRepository) CountByBatch(ctx context.Context) ([]core.BatchCount, error) {
	if r.store.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, `SELECT batch_id, COUNT(*), MIN(created_at)
		FROM orders GROUP BY batch_id ORDER BY MIN(created_at) DESC, batch_id DESC`)
	if err != nil {
		return nil, wrap("count by batch", err)
	}
	defer rows.Close()

	var counts []core.BatchCount
	for rows.Next() {
		var bc core.BatchCount
		var created int64
		if err := rows.Scan(&bc.BatchID, &bc.Count, &created); err != nil {
			return nil, wrap("count by batch", err)
		}
		bc.CreatedAt = fromUnix(created)
		counts = append(counts, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("count by batch", err)
	}
	return counts, nil
}

// Update writes structured fields of existing records in one transaction.
func (r *OrderRepository) Update(ctx context.Context, records ...*core.OrderRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := r.store.rebind(`UPDATE orders SET order_number = ?, address = ?, subject = ?, schedule = ?,
		requirements = ?, price = ?, teacher_gender = ?, student_info = ?, updated_at = ? WHERE id = ?`)

	now := time.Now()
	return r.withTx(ctx, "update orders", func(ctx context.Context, conn DBExecutor) error {
		for _, record := range records {
			res, err := conn.ExecContext(ctx, query,
				record.OrderNumber, record.Address, record.Subject, record.Schedule,
				record.Requirements, record.Price, record.TeacherGender, record.StudentInfo,
				toUnix(now), record.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: order %d", storage.ErrNotFound, record.ID)
			}
			record.UpdatedAt = now
		}
		return nil
	})
}

// DeleteWhere removes records matching originalText except excludingID.
func (r *OrderRepository) DeleteWhere(ctx context.Context, originalText string, excludingID int64) (int64, error) {
	if r.store.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	res, err := r.store.conn(ctx).ExecContext(ctx,
		r.store.rebind("DELETE FROM orders WHERE content_hash = ? AND original_text = ? AND id <> ?"),
		core.ContentHash(originalText), originalText, excludingID)
	if err != nil {
		return 0, wrap("delete duplicates", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete duplicates", err)
	}
	return n, nil
}

// DuplicateGroups returns original texts held by more than one record.
func (r *OrderRepository) DuplicateGroups(ctx context.Context) ([]core.DuplicateGroup, error) {
	if r.store.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, `SELECT original_text, MAX(id), COUNT(*)
		FROM orders GROUP BY content_hash, original_text HAVING COUNT(*) > 1 ORDER BY MAX(id)`)
	if err != nil {
		return nil, wrap("find duplicates", err)
	}
	defer rows.Close()

	var groups []core.DuplicateGroup
	for rows.Next() {
		var g core.DuplicateGroup
		if err := rows.Scan(&g.OriginalText, &g.SurvivorID, &g.Count); err != nil {
			return nil, wrap("find duplicates", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("find duplicates", err)
	}
	return groups, nil
}

func (r *OrderRepository) withTx(ctx context.Context, op string, fn func(ctx context.Context, conn DBExecutor) error) error {
	err := r.store.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, r.store.conn(ctx))
	})
	if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStorageClosed) {
		return err
	}
	return wrap(op, err)
}

func (r *OrderRepository) query(ctx context.Context, op, query string, args ...any) ([]*core.OrderRecord, error) {
	if r.store.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var records []*core.OrderRecord
	for rows.Next() {
		record, err := scanOrder(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return records, nil
}

func scanOrder(rows *sql.Rows) (*core.OrderRecord, error) {
	var record core.OrderRecord
	var created, updated int64
	err := rows.Scan(&record.ID, &record.BatchID, &record.OriginalText, &record.ContentHash,
		&record.OrderNumber, &record.Address, &record.Subject, &record.Schedule,
		&record.Requirements, &record.Price, &record.TeacherGender, &record.StudentInfo,
		&created, &updated)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = fromUnix(created)
	record.UpdatedAt = fromUnix(updated)
	return &record, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, storage.ErrTransactionFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrTransactionFailed, op, err)
}

// Timestamps are stored as Unix nanoseconds; zero means unset.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
