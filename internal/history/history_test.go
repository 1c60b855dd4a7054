package history

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestBuildRecordPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildRecordPath("run-abc", ts)
	if err != nil {
		t.Fatalf("BuildRecordPath() error = %v", err)
	}
	want := "history/date=2026-02-19/hour=09/run-run-abc.parquet"
	if key != want {
		t.Fatalf("BuildRecordPath() = %q, want %q", key, want)
	}
}

func TestBuildRecordPathRejectsInvalidRunID(t *testing.T) {
	if _, err := BuildRecordPath("../oops", time.Now()); err == nil {
		t.Fatal("expected invalid run id error")
	}
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	record := sampleRecord()
	data, err := EncodeParquet(record)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}
	got, err := DecodeParquet(data)
	if err != nil {
		t.Fatalf("DecodeParquet() error = %v", err)
	}
	if !got.StartedAt.Equal(record.StartedAt) || !got.FinishedAt.Equal(record.FinishedAt) {
		t.Fatalf("times = %s/%s", got.StartedAt, got.FinishedAt)
	}
	got.StartedAt, got.FinishedAt = record.StartedAt, record.FinishedAt
	if got != record {
		t.Fatalf("DecodeParquet() = %#v, want %#v", got, record)
	}
}

func TestEncodeParquetRequiresRunID(t *testing.T) {
	if _, err := EncodeParquet(Record{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestObjectRecorderWritesPartitionedObject(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	recorder := NewObjectRecorder(store)
	record := sampleRecord()

	if err := recorder.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	key := "history/date=2026-03-01/hour=14/run-3f2a.parquet"
	if _, ok := store.objects[key]; !ok {
		t.Fatalf("missing object %q in %v", key, store.objects)
	}
	if store.contentType != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", store.contentType)
	}

	loaded, err := recorder.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Outcome != "answered" || loaded.Attempts != 2 {
		t.Fatalf("Load() = %#v", loaded)
	}
}

func TestNopRecorder(t *testing.T) {
	if err := (NopRecorder{}).Record(context.Background(), Record{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func sampleRecord() Record {
	return Record{
		RunID:      "3f2a",
		Question:   "total salary in Engineering",
		Query:      "SELECT SUM(salary) FROM employees",
		Attempts:   2,
		Executions: 2,
		Safety:     "safe",
		Answer:     "235000",
		LastError:  "",
		Outcome:    "answered",
		StartedAt:  time.Date(2026, time.March, 1, 14, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, time.March, 1, 14, 0, 2, 500_000_000, time.UTC),
	}
}

type memoryStore struct {
	objects     map[string][]byte
	contentType string
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts PutOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	m.objects[key] = data
	m.contentType = opts.ContentType
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func TestObjectRecorderListsRecordsForDay(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{
		"history/date=2026-03-01/hour=14/run-b.parquet": nil,
		"history/date=2026-03-01/hour=09/run-a.parquet": nil,
		"history/date=2026-03-01/hour=09/_SUCCESS":      nil,
		"history/date=2026-03-02/hour=00/run-c.parquet": nil,
	}}
	recorder := NewObjectRecorder(store)

	keys, err := recorder.List(context.Background(), time.Date(2026, time.March, 1, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{
		"history/date=2026-03-01/hour=09/run-a.parquet",
		"history/date=2026-03-01/hour=14/run-b.parquet",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
}

func TestDayPrefixUsesUTC(t *testing.T) {
	day := time.Date(2026, time.March, 1, 22, 0, 0, 0, time.FixedZone("x", -5*3600))
	if got := DayPrefix(day); got != "history/date=2026-03-02/" {
		t.Fatalf("DayPrefix() = %q", got)
	}
}
