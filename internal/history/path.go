package history

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildRecordPath partitions records by the UTC hour they finished in.
func BuildRecordPath(runID string, finishedAt time.Time) (string, error) {
	if !runIDPattern.MatchString(runID) {
		return "", fmt.Errorf("invalid run id: %q", runID)
	}
	ts := finishedAt.UTC()
	return path.Join(
		DayPrefix(ts),
		fmt.Sprintf("hour=%02d", ts.Hour()),
		fmt.Sprintf("run-%s.parquet", runID),
	), nil
}

// DayPrefix is the partition prefix, with trailing slash, for one UTC day.
func DayPrefix(day time.Time) string {
	ts := day.UTC()
	return fmt.Sprintf("history/date=%04d-%02d-%02d/", ts.Year(), ts.Month(), ts.Day())
}
