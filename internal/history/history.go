// Package history persists one record per finished run.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type Record struct {
	RunID      string    `json:"run_id"`
	Question   string    `json:"question"`
	Query      string    `json:"query"`
	Attempts   int       `json:"attempts"`
	Executions int       `json:"executions"`
	Safety     string    `json:"safety"`
	Answer     string    `json:"answer"`
	LastError  string    `json:"last_error,omitempty"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Recorder interface {
	Record(ctx context.Context, record Record) error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) error { return nil }

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectRecorder writes each record as a single-row parquet object.
type ObjectRecorder struct {
	Store ObjectStore
}

func NewObjectRecorder(store ObjectStore) *ObjectRecorder {
	return &ObjectRecorder{Store: store}
}

func (r *ObjectRecorder) Record(ctx context.Context, record Record) error {
	if r.Store == nil {
		return fmt.Errorf("object store is required")
	}
	key, err := BuildRecordPath(record.RunID, record.FinishedAt)
	if err != nil {
		return err
	}
	data, err := EncodeParquet(record)
	if err != nil {
		return err
	}
	if _, err := r.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: "application/vnd.apache.parquet"}); err != nil {
		return fmt.Errorf("store run record %q: %w", key, err)
	}
	return nil
}

func (r *ObjectRecorder) Load(ctx context.Context, key string) (Record, error) {
	if r.Store == nil {
		return Record{}, fmt.Errorf("object store is required")
	}
	reader, err := r.Store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Record{}, fmt.Errorf("read run record %q: %w", key, err)
	}
	return DecodeParquet(data)
}

// List returns the record keys written on the given UTC day.
func (r *ObjectRecorder) List(ctx context.Context, day time.Time) ([]string, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	objects, err := r.Store.List(ctx, DayPrefix(day))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, object := range objects {
		if strings.HasSuffix(object.Key, ".parquet") {
			keys = append(keys, object.Key)
		}
	}
	return keys, nil
}
