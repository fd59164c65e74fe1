// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

import "context"

// ErrTxReadOnly is a programmer-error fault (spec §4.A/§7): writing through a read-only
// transaction must not be silently ignored.
type ErrTxReadOnly struct{}

func (ErrTxReadOnly) Error() string { return "kv: write attempted on a read-only transaction" }

// Getter is the read-only surface of a transaction over a single table namespace.
type Getter interface {
	// GetOne returns (nil, false, nil) when the key is absent — NotFound is a non-error
	// sentinel per spec §4.A, never wrapped in an error.
	GetOne(table Table, key []byte) (val []byte, found bool, err error)
	Has(table Table, key []byte) (bool, error)
	Cursor(table Table) (Cursor, error)
}

// Putter is the write surface of a read-write transaction.
type Putter interface {
	Put(table Table, key, val []byte) error
	Delete(table Table, key []byte) error
}

// Tx is a read-only MVCC snapshot: readers never block writers and vice versa.
type Tx interface {
	Getter
	Rollback()
}

// RwTx is the single concurrent writer transaction for a store.
type RwTx interface {
	Tx
	Putter
	RwCursor(table Table) (RwCursor, error)
	Commit() error
}

// Cursor iterates a table in ascending key order.
type Cursor interface {
	First() (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Close()
}

// RwCursor additionally allows mutation at the cursor's current position.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
}

// RoDB opens read-only transactions against a store.
type RoDB interface {
	BeginRo(ctx context.Context) (Tx, error)
	Close()
}

// RwDB additionally allows a single concurrent writer.
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
	// Update runs f inside a write transaction, committing on success and rolling back
	// (and propagating the error) otherwise.
	Update(ctx context.Context, f func(tx RwTx) error) error
	// View runs f inside a read-only transaction.
	View(ctx context.Context, f func(tx Tx) error) error
}
