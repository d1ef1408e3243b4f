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

// Package storage provides the storage abstraction layer for tutorder.
//
// This package defines repository interfaces that decouple the pipelines from
// the database. The storage/sqldb package implements them on top of
// database/sql for SQLite and PostgreSQL.
//
// # Architecture
//
//   - OrderRepository: Operations for order records
//   - TransactionManager: Transaction support
//
// # Usage
//
//	store, err := sqldb.Open(ctx, "file:tutorder.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	orders := sqldb.NewOrderRepository(store)
//
// Use in tests with in-memory storage:
//
//	store, err := sqldb.OpenMemory(ctx)
//
// # Transactions
//
// WithTransaction places the transaction in the context it passes to its
// callback. Repository methods look for it there, so a stage can group
// several calls into one unit of work:
//
//	err := orders.WithTransaction(ctx, func(ctx context.Context) error {
//	    for _, g := range groups {
//	        if _, err := orders.DeleteWhere(ctx, g.OriginalText, g.SurvivorID); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
