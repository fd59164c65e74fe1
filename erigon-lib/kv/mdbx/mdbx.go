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

// Package mdbx is the durable kv.RwDB implementation: a single MDBX environment, one DBI
// per kv.Table, opened with the flags from kv.ChaindataTablesCfg. This is the storage layer
// spec §4.A/§5 describes (MVCC, single writer, many concurrent readers, no reader blocking
// the writer) — MDBX provides exactly that transaction model natively, which is why erigon
// picked it and why this module keeps it rather than reimplementing MVCC by hand.
package mdbx

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
)

// DB wraps an open MDBX environment and the kv.Table -> DBI mapping resolved at open time.
type DB struct {
	env  *mdbx.Env
	dbis map[kv.Table]mdbx.DBI
}

// Open creates (if needed) and opens an MDBX environment at path, one DBI per kv.Table.
func Open(path string, readOnly bool) (*DB, error) {
	if err := os.MkdirAll(path, 0o744); err != nil {
		return nil, errors.Wrapf(err, "mdbx: create %s", path)
	}
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, err
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(kv.AllTables))); err != nil {
		return nil, err
	}
	if err := env.SetGeometry(-1, -1, 4*1024*1024*1024*1024, 2*1024*1024*1024, -1, 4096); err != nil {
		return nil, err
	}

	flags := uint(mdbx.NoReadahead | mdbx.Coalesce | mdbx.LifoReclaim)
	if readOnly {
		flags |= mdbx.Readonly
	}
	if err := env.Open(path, flags, 0o644); err != nil {
		return nil, errors.Wrapf(err, "mdbx: open %s", path)
	}

	db := &DB{env: env, dbis: make(map[kv.Table]mdbx.DBI, len(kv.AllTables))}
	err = env.Update(func(txn *mdbx.Txn) error {
		for _, t := range kv.AllTables {
			cfg := kv.ChaindataTablesCfg[t]
			dbiFlags := uint(mdbx.Create)
			if cfg.Flags&kv.DupSort != 0 {
				dbiFlags |= mdbx.DupSort
			}
			if cfg.Flags&kv.IntegerKey != 0 {
				dbiFlags |= mdbx.IntegerKey
			}
			dbi, err := txn.OpenDBI(string(t), dbiFlags, nil, nil)
			if err != nil {
				return errors.Wrapf(err, "mdbx: open table %s", t)
			}
			db.dbis[t] = dbi
		}
		return nil
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() { db.env.Close() }

func (db *DB) BeginRo(_ context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, err
	}
	return &tx{db: db, txn: txn}, nil
}

func (db *DB) BeginRw(_ context.Context) (kv.RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, err
	}
	return &tx{db: db, txn: txn, writable: true}, nil
}

func (db *DB) Update(ctx context.Context, f func(kv.RwTx) error) error {
	rwTx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := f(rwTx); err != nil {
		rwTx.Rollback()
		return err
	}
	return rwTx.Commit()
}

func (db *DB) View(ctx context.Context, f func(kv.Tx) error) error {
	roTx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer roTx.Rollback()
	return f(roTx)
}

// PathSize reports the on-disk footprint of the environment's data file (mdbx.dat).
func PathSize(path string) (int64, error) {
	fi, err := os.Stat(filepath.Join(path, "mdbx.dat"))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

type tx struct {
	db       *DB
	txn      *mdbx.Txn
	writable bool
	done     bool
}

func (t *tx) dbi(table kv.Table) mdbx.DBI { return t.db.dbis[table] }

func (t *tx) GetOne(table kv.Table, key []byte) ([]byte, bool, error) {
	v, err := t.txn.Get(t.dbi(table), key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (t *tx) Has(table kv.Table, key []byte) (bool, error) {
	_, found, err := t.GetOne(table, key)
	return found, err
}

func (t *tx) Cursor(table kv.Table) (kv.Cursor, error) {
	c, err := t.txn.OpenCursor(t.dbi(table))
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *tx) RwCursor(table kv.Table) (kv.RwCursor, error) {
	if !t.writable {
		return nil, kv.ErrTxReadOnly{}
	}
	c, err := t.txn.OpenCursor(t.dbi(table))
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *tx) Put(table kv.Table, key, val []byte) error {
	if !t.writable {
		return kv.ErrTxReadOnly{}
	}
	return t.txn.Put(t.dbi(table), key, val, 0)
}

func (t *tx) Delete(table kv.Table, key []byte) error {
	if !t.writable {
		return kv.ErrTxReadOnly{}
	}
	err := t.txn.Del(t.dbi(table), key, nil)
	if err != nil && mdbx.IsNotFound(err) {
		return nil
	}
	return err
}

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.txn.Commit()
	return err
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Abort()
}

// cursor adapts mdbx.Cursor's (key, val, op) API to the ordered-scan kv.Cursor surface.
type cursor struct{ c *mdbx.Cursor }

func (c *cursor) get(op mdbx.CursorOp) ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, op)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return k, v, nil
}

func (c *cursor) First() ([]byte, []byte, error) { return c.get(mdbx.First) }
func (c *cursor) Next() ([]byte, []byte, error)  { return c.get(mdbx.Next) }
func (c *cursor) Prev() ([]byte, []byte, error)  { return c.get(mdbx.Prev) }
func (c *cursor) Last() ([]byte, []byte, error)  { return c.get(mdbx.Last) }
func (c *cursor) Current() ([]byte, []byte, error) { return c.get(mdbx.GetCurrent) }

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(seek, nil, mdbx.SetRange)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return k, v, nil
}

func (c *cursor) Close() { c.c.Close() }

func (c *cursor) Put(k, v []byte) error {
	return c.c.Put(k, v, 0)
}

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.c.Get(k, nil, mdbx.Set); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return err
	}
	return c.c.Del(0)
}
