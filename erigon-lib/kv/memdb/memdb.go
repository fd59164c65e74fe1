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

// Package memdb is an in-memory kv.RwDB backed by google/btree, used by tests and by the
// Recon scratch tables (spec §9: ephemeral per-run indexes that never hit disk). It
// satisfies the exact same kv.RwDB/Tx/Cursor surface as erigon-lib/kv/mdbx, so stage and
// state-package code is storage-engine agnostic.
package memdb

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
)

type item struct {
	k, v []byte
}

func less(a, b item) bool { return bytes.Compare(a.k, b.k) < 0 }

// DB is a single in-memory store, one *btree.BTreeG[item] per table, guarded by a single
// RWMutex standing in for MDBX's single-writer/many-readers discipline. A read transaction
// holds the read lock and a write transaction the write lock until Commit/Rollback, so an
// open reader blocks the writer and an open writer blocks readers; there is no MVCC here.
type DB struct {
	mu     sync.RWMutex
	tables map[kv.Table]*btree.BTreeG[item]
}

func New() *DB {
	db := &DB{tables: make(map[kv.Table]*btree.BTreeG[item])}
	for _, t := range kv.AllTables {
		db.tables[t] = btree.NewG(32, less)
	}
	return db
}

func (db *DB) Close() {}

func (db *DB) BeginRo(_ context.Context) (kv.Tx, error) {
	db.mu.RLock()
	return &tx{db: db, writable: false}, nil
}

func (db *DB) BeginRw(_ context.Context) (kv.RwTx, error) {
	db.mu.Lock()
	return &tx{db: db, writable: true}, nil
}

func (db *DB) Update(ctx context.Context, f func(kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) View(ctx context.Context, f func(kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

// tx is a snapshot-by-copy transaction: a read-write tx clones the affected table's tree on
// first write (btree.Clone is O(1), copy-on-write internally) so Rollback is simply
// discarding the clone.
type tx struct {
	db       *DB
	writable bool
	done     bool
	clones   map[kv.Table]*btree.BTreeG[item]
}

func (t *tx) treeFor(table kv.Table) *btree.BTreeG[item] {
	if t.clones != nil {
		if c, ok := t.clones[table]; ok {
			return c
		}
	}
	return t.db.tables[table]
}

func (t *tx) GetOne(table kv.Table, key []byte) ([]byte, bool, error) {
	it, ok := t.treeFor(table).Get(item{k: key})
	if !ok {
		return nil, false, nil
	}
	return it.v, true, nil
}

func (t *tx) Has(table kv.Table, key []byte) (bool, error) {
	_, ok := t.treeFor(table).Get(item{k: key})
	return ok, nil
}

func (t *tx) Cursor(table kv.Table) (kv.Cursor, error) {
	return &cursor{tree: t.treeFor(table)}, nil
}

func (t *tx) RwCursor(table kv.Table) (kv.RwCursor, error) {
	if !t.writable {
		return nil, kv.ErrTxReadOnly{}
	}
	return &cursor{tree: t.treeFor(table), tx: t, table: table}, nil
}

func (t *tx) Put(table kv.Table, key, val []byte) error {
	if !t.writable {
		return kv.ErrTxReadOnly{}
	}
	t.mutate(table).ReplaceOrInsert(item{k: append([]byte(nil), key...), v: append([]byte(nil), val...)})
	return nil
}

func (t *tx) Delete(table kv.Table, key []byte) error {
	if !t.writable {
		return kv.ErrTxReadOnly{}
	}
	t.mutate(table).Delete(item{k: key})
	return nil
}

// mutate lazily clones a table's tree into this transaction on first write, so the
// committed tree stays untouched until Commit swaps the clone in.
func (t *tx) mutate(table kv.Table) *btree.BTreeG[item] {
	if t.clones == nil {
		t.clones = make(map[kv.Table]*btree.BTreeG[item])
	}
	if c, ok := t.clones[table]; ok {
		return c
	}
	c := t.db.tables[table].Clone()
	t.clones[table] = c
	return c
}

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	for table, c := range t.clones {
		t.db.tables[table] = c
	}
	t.db.mu.Unlock()
	return nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	if t.writable {
		t.db.mu.Unlock()
	} else {
		t.db.mu.RUnlock()
	}
}

// cursor walks a snapshot of the tree's keys taken on its first positioning call (and
// retaken after a Put/Delete through the cursor) — sufficient for the
// sequential-scan access patterns stages use, without exposing btree's internal iteration
// node layout.
type cursor struct {
	tree  *btree.BTreeG[item]
	tx    *tx
	table kv.Table
	keys  [][]byte
	pos   int
	ready bool
}

func (c *cursor) ensure() {
	if c.ready {
		return
	}
	c.ready = true
	c.keys = make([][]byte, 0, c.tree.Len())
	c.tree.Ascend(func(it item) bool {
		c.keys = append(c.keys, it.k)
		return true
	})
}

func (c *cursor) at(i int) ([]byte, []byte, error) {
	if i < 0 || i >= len(c.keys) {
		c.pos = i
		return nil, nil, nil
	}
	c.pos = i
	it, ok := c.tree.Get(item{k: c.keys[i]})
	if !ok {
		return nil, nil, nil
	}
	return it.k, it.v, nil
}

func (c *cursor) First() ([]byte, []byte, error) {
	c.ensure()
	return c.at(0)
}

func (c *cursor) Next() ([]byte, []byte, error) {
	c.ensure()
	return c.at(c.pos + 1)
}

func (c *cursor) Prev() ([]byte, []byte, error) {
	c.ensure()
	return c.at(c.pos - 1)
}

func (c *cursor) Last() ([]byte, []byte, error) {
	c.ensure()
	return c.at(len(c.keys) - 1)
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	c.ensure()
	i := sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], seek) >= 0 })
	return c.at(i)
}

func (c *cursor) Current() ([]byte, []byte, error) {
	c.ensure()
	return c.at(c.pos)
}

func (c *cursor) Close() {}

func (c *cursor) Put(k, v []byte) error {
	if c.tx == nil || !c.tx.writable {
		return kv.ErrTxReadOnly{}
	}
	if err := c.tx.Put(c.table, k, v); err != nil {
		return err
	}
	c.ready = false
	return nil
}

func (c *cursor) Delete(k []byte) error {
	if c.tx == nil || !c.tx.writable {
		return kv.ErrTxReadOnly{}
	}
	if err := c.tx.Delete(c.table, k); err != nil {
		return err
	}
	c.ready = false
	return nil
}
