package registry

import (
	"bytes"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// recordCacheSize bounds the LRU of decoded service records.
const recordCacheSize = 512

// Both tables live in one leveldb keyspace under distinct prefixes so that
// a register or commit can mutate them in a single atomic batch write.
var (
	servicePrefix = []byte("svc:")
	headPrefix    = []byte("head:")
)

type database struct {
	db *leveldb.DB

	// Write-through cache of decoded records for point lookups.
	// Iteration always reads from disk.
	cache *lru.Cache
}

func newDatabase(dbPath string) (*database, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dbPath, err)
	}
	cache, err := lru.New(recordCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &database{db: db, cache: cache}, nil
}

func (db *database) Close() error {
	return db.db.Close()
}

func serviceKey(name []byte) []byte {
	return append(append([]byte{}, servicePrefix...), name...)
}

func headKey(name []byte) []byte {
	return append(append([]byte{}, headPrefix...), name...)
}

func (db *database) HasService(name []byte) (bool, error) {
	if db.cache.Contains(string(name)) {
		return true, nil
	}
	return db.db.Has(serviceKey(name), nil)
}

func (db *database) GetService(name []byte) (*ServiceRecord, error) {
	if cached, ok := db.cache.Get(string(name)); ok {
		return cloneRecord(cached.(*ServiceRecord)), nil
	}

	data, err := db.db.Get(serviceKey(name), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get service %q from DB: %w", name, err)
	}
	record := &ServiceRecord{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), record); err != nil {
		return nil, fmt.Errorf("failed to deserialize service record: %w", err)
	}
	db.cacheRecord(record)
	return record, nil
}

// cacheRecord stores a copy so later mutations by callers cannot leak
// into the cache before they are written.
func (db *database) cacheRecord(record *ServiceRecord) {
	db.cache.Add(string(record.Name), cloneRecord(record))
}

// cloneRecord copies a record including the byte slices it references.
// Records cross the cache boundary only as clones.
func cloneRecord(record *ServiceRecord) *ServiceRecord {
	clone := *record
	clone.Owner = append([]byte(nil), record.Owner...)
	clone.Name = append([]byte(nil), record.Name...)
	clone.Endpoint = append([]byte(nil), record.Endpoint...)
	clone.Tags = nil
	for _, tag := range record.Tags {
		clone.Tags = append(clone.Tags, append([]byte(nil), tag...))
	}
	return &clone
}

func (db *database) GetHead(name []byte) (*CommitHead, error) {
	data, err := db.db.Get(headKey(name), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get commit head %q from DB: %w", name, err)
	}
	head := &CommitHead{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), head); err != nil {
		return nil, fmt.Errorf("failed to deserialize commit head: %w", err)
	}
	return head, nil
}

// CreateService inserts a record with its paired chain head.
// Both entries are written in one batch - either both land or neither does.
func (db *database) CreateService(record *ServiceRecord, head *CommitHead) error {
	batch, err := makePairBatch(record, head)
	if err != nil {
		return err
	}
	if err := db.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing service in DB: %w", err)
	}
	db.cacheRecord(record)
	return nil
}

// ApplyCommit overwrites a service's record and chain head in one batch.
func (db *database) ApplyCommit(record *ServiceRecord, head *CommitHead) error {
	batch, err := makePairBatch(record, head)
	if err != nil {
		return err
	}
	if err := db.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("advancing chain in DB: %w", err)
	}
	db.cacheRecord(record)
	return nil
}

func makePairBatch(record *ServiceRecord, head *CommitHead) (*leveldb.Batch, error) {
	recordData, err := serialize(record)
	if err != nil {
		return nil, fmt.Errorf("failed serializing service record: %w", err)
	}
	headData, err := serialize(head)
	if err != nil {
		return nil, fmt.Errorf("failed serializing commit head: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(serviceKey(record.Name), recordData)
	batch.Put(headKey(record.Name), headData)
	return batch, nil
}

// IterServices walks service records in storage key order.
// Iteration stops when fn returns false.
func (db *database) IterServices(fn func(*ServiceRecord) bool) error {
	iter := db.db.NewIterator(util.BytesPrefix(servicePrefix), nil)
	defer iter.Release()
	for iter.Next() {
		record := &ServiceRecord{}
		if _, err := xdr.Unmarshal(bytes.NewReader(iter.Value()), record); err != nil {
			return fmt.Errorf("failed to deserialize service record: %w", err)
		}
		if !fn(record) {
			break
		}
	}
	return iter.Error()
}

func serialize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
