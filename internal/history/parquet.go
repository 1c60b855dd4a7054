package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

type parquetRecord struct {
	RunID          string `parquet:"run_id"`
	Question       string `parquet:"question"`
	Query          string `parquet:"query"`
	Attempts       int32  `parquet:"attempts"`
	Executions     int32  `parquet:"executions"`
	Safety         string `parquet:"safety"`
	Answer         string `parquet:"answer"`
	LastError      string `parquet:"last_error"`
	Outcome        string `parquet:"outcome"`
	StartedUnixMs  int64  `parquet:"started_unix_ms"`
	FinishedUnixMs int64  `parquet:"finished_unix_ms"`
}

func EncodeParquet(record Record) ([]byte, error) {
	if record.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	row := parquetRecord{
		RunID:          record.RunID,
		Question:       record.Question,
		Query:          record.Query,
		Attempts:       int32(record.Attempts),
		Executions:     int32(record.Executions),
		Safety:         record.Safety,
		Answer:         record.Answer,
		LastError:      record.LastError,
		Outcome:        record.Outcome,
		StartedUnixMs:  record.StartedAt.UnixMilli(),
		FinishedUnixMs: record.FinishedAt.UnixMilli(),
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRecord](buf)
	if _, err := writer.Write([]parquetRecord{row}); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeParquet(data []byte) (Record, error) {
	reader := parquet.NewGenericReader[parquetRecord](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetRecord, 1)
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("read parquet rows: %w", err)
	}
	if n == 0 {
		return Record{}, fmt.Errorf("run record is empty")
	}

	row := rows[0]
	return Record{
		RunID:      row.RunID,
		Question:   row.Question,
		Query:      row.Query,
		Attempts:   int(row.Attempts),
		Executions: int(row.Executions),
		Safety:     row.Safety,
		Answer:     row.Answer,
		LastError:  row.LastError,
		Outcome:    row.Outcome,
		StartedAt:  time.UnixMilli(row.StartedUnixMs).UTC(),
		FinishedAt: time.UnixMilli(row.FinishedUnixMs).UTC(),
	}, nil
}
