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

package storage

import (
	"context"

	"github.com/poiesic/tutorder/core"
)

// TransactionManager runs a function inside one store transaction.
type TransactionManager interface {
	// WithTransaction executes fn within a transaction.
	// If fn returns an error or panics, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Repository calls made with the context passed to fn join the
	// transaction; a nested WithTransaction joins it too.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository provides operations for managing order records.
type OrderRepository interface {
	TransactionManager

	// Insert adds records in one transaction. IDs are assigned by the store
	// in insertion order and written back to the records; a zero CreatedAt
	// is set to the current time.
	Insert(ctx context.Context, records ...*core.OrderRecord) error

	// QueryUnparsed returns records with an empty address, ordered by ID.
	QueryUnparsed(ctx context.Context) ([]*core.OrderRecord, error)

	// QueryUnparsedByBatch is QueryUnparsed limited to one batch.
	QueryUnparsedByBatch(ctx context.Context, batchID string) ([]*core.OrderRecord, error)

	// QueryAll returns every record ordered by ID.
	QueryAll(ctx context.Context) ([]*core.OrderRecord, error)

	// Get returns one record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id int64) (*core.OrderRecord, error)

	// CountByBatch summarizes records per batch, newest batch first.
	CountByBatch(ctx context.Context) ([]core.BatchCount, error)

	// Update writes the structured fields of existing records in one
	// transaction. The original text is never changed.
	// Returns ErrNotFound if any record doesn't exist.
	Update(ctx context.Context, records ...*core.OrderRecord) error

	// DeleteWhere removes records whose original text equals originalText,
	// except the record with ID excludingID, and returns how many were removed.
	DeleteWhere(ctx context.Context, originalText string, excludingID int64) (int64, error)

	// DuplicateGroups returns one group per original text held by more than
	// one record, ordered by ascending survivor ID.
	DuplicateGroups(ctx context.Context) ([]core.DuplicateGroup, error)
}
