// Package sqlite persists a block device in a SQLite database, one row per
// written block. Blocks that were never written read back as zeroes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type BlockDevice struct {
	mu sync.RWMutex
	db *sql.DB

	name      string
	blockSize int
	numBlocks int64
	opened    bool
}

var _ blockdev.BlockDevice = (*BlockDevice)(nil)

// New opens (or creates) the database at dsn. ":memory:" keeps the device in
// memory. An existing database must have been created with the same geometry.
func New(name, dsn string, blockSize int, numBlocks int64) (*BlockDevice, error) {
	if blockSize <= 0 || numBlocks <= 0 {
		return nil, fmt.Errorf("sqlite: invalid geometry %dx%d", blockSize, numBlocks)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	bd := &BlockDevice{
		db:        db,
		name:      name,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}

	if err := bd.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return bd, nil
}

func (bd *BlockDevice) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pio_geometry (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		block_size INTEGER NOT NULL,
		num_blocks INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pio_blocks (
		lba INTEGER PRIMARY KEY,
		content BLOB NOT NULL
	);
	`
	if _, err := bd.db.Exec(schema); err != nil {
		return err
	}

	var blockSize int
	var numBlocks int64
	err := bd.db.QueryRow("SELECT block_size, num_blocks FROM pio_geometry WHERE id = 1").Scan(&blockSize, &numBlocks)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = bd.db.Exec("INSERT INTO pio_geometry (id, block_size, num_blocks) VALUES (1, ?, ?)", bd.blockSize, bd.numBlocks)
		return err
	case err != nil:
		return err
	}

	if blockSize != bd.blockSize || numBlocks != bd.numBlocks {
		return fmt.Errorf("sqlite: database geometry %dx%d does not match %dx%d", blockSize, numBlocks, bd.blockSize, bd.numBlocks)
	}
	return nil
}

func (bd *BlockDevice) Name() string {
	return bd.name
}

func (bd *BlockDevice) Open() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if err := bd.db.PingContext(context.Background()); err != nil {
		return data.EIO
	}
	bd.opened = true
	return nil
}

func (bd *BlockDevice) Close() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	bd.opened = false
	return nil
}

func (bd *BlockDevice) ReadBlocks(lba int64, p []byte) error {
	bd.mu.RLock()
	defer bd.mu.RUnlock()

	if !bd.opened {
		return data.EBADF
	}
	if err := blockdev.CheckRange(lba, p, bd.blockSize, bd.numBlocks); err != nil {
		return err
	}

	clear(p)
	count := int64(len(p) / bd.blockSize)
	rows, err := bd.db.Query("SELECT lba, content FROM pio_blocks WHERE lba >= ? AND lba < ?", lba, lba+count)
	if err != nil {
		return data.EIO
	}
	defer rows.Close()

	for rows.Next() {
		var at int64
		var content []byte
		if err := rows.Scan(&at, &content); err != nil {
			return data.EIO
		}
		copy(p[(at-lba)*int64(bd.blockSize):], content[:min(len(content), bd.blockSize)])
	}
	if err := rows.Err(); err != nil {
		return data.EIO
	}
	return nil
}

func (bd *BlockDevice) WriteBlocks(lba int64, p []byte) error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if !bd.opened {
		return data.EBADF
	}
	if err := blockdev.CheckRange(lba, p, bd.blockSize, bd.numBlocks); err != nil {
		return err
	}

	tx, err := bd.db.Begin()
	if err != nil {
		return data.EIO
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO pio_blocks (lba, content) VALUES (?, ?) ON CONFLICT(lba) DO UPDATE SET content = excluded.content")
	if err != nil {
		return data.EIO
	}
	defer stmt.Close()

	for i := 0; i*bd.blockSize < len(p); i++ {
		block := p[i*bd.blockSize : (i+1)*bd.blockSize]
		if _, err := stmt.Exec(lba+int64(i), block); err != nil {
			return data.EIO
		}
	}

	if err := tx.Commit(); err != nil {
		return data.EIO
	}
	return nil
}

// Sync checkpoints the write-ahead log if the database runs in WAL mode.
func (bd *BlockDevice) Sync() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if _, err := bd.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return data.EIO
	}
	return nil
}

func (bd *BlockDevice) BlockSize() int {
	return bd.blockSize
}

func (bd *BlockDevice) NumBlocks() int64 {
	return bd.numBlocks
}

// Release closes the database. The device cannot be opened again.
func (bd *BlockDevice) Release() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	bd.opened = false
	return bd.db.Close()
}
