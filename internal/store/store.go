// Package store keeps short-lived records of finished conversions.
package store

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Record describes one artifact in the converted directory.
type Record struct {
	Filename       string    `json:"filename"`
	Kind           string    `json:"kind"`
	Mode           string    `json:"mode,omitempty"`
	Size           int64     `json:"size"`
	Checksum       string    `json:"checksum"`
	Pages          int       `json:"pages"`
	ConversionTime float64   `json:"conversion_time_seconds"`
	S3URL          string    `json:"s3_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists records for a limited time.
type Store interface {
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, filename string) (Record, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Checksum returns the hex BLAKE2b-256 digest of the file at p.
func Checksum(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Memory is an in-process Store. Expired records are dropped lazily.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]memEntry
}

type memEntry struct {
	rec     Record
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, records: map[string]memEntry{}}
}

func (m *Memory) Put(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.records {
		if now.After(e.expires) {
			delete(m.records, k)
		}
	}
	m.records[r.Filename] = memEntry{rec: r, expires: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, filename string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[filename]
	if !ok {
		return Record{}, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.records, filename)
		return Record{}, false, nil
	}
	return e.rec, true, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
