package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"causelist-backend/lib/portal"
	"causelist-backend/lib/timezone"
)

const DefaultBasename = "ecourts_result"

type Result struct {
	// CauseList is nil when the lookup was aborted.
	CauseList *portal.CauseListResult `json:"cause_list,omitempty"`
}

// InvocationRecord is the JSON artifact written for every invocation,
// successful or not.
type InvocationRecord struct {
	InvokedAt   time.Time     `json:"invoked_at"`
	DateChecked timezone.Date `json:"date_checked"`
	Result      Result        `json:"result"`
}

func New(invokedAt time.Time, date timezone.Date, list *portal.CauseListResult) InvocationRecord {
	return InvocationRecord{
		InvokedAt:   invokedAt.In(timezone.Location).Truncate(time.Second),
		DateChecked: date,
		Result:      Result{CauseList: list},
	}
}

func FileName(basename string, invokedAt time.Time) string {
	if basename == "" {
		basename = DefaultBasename
	}
	return fmt.Sprintf("%s_%s.json", basename, invokedAt.In(timezone.Location).Format("20060102_150405"))
}

// Save writes rec to <dir>/<basename>_<YYYYmmdd_HHMMSS>.json and returns the
// path. The file appears atomically.
func Save(dir, basename string, rec InvocationRecord) (string, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(basename, rec.InvokedAt))
	tmp, err := os.CreateTemp(dir, ".record-*.json")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	err = encoder.Encode(rec)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode record: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return "", err
	}
	// CreateTemp makes the file private, records are read by other tools
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		return "", err
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return "", err
	}
	return path, nil
}

func Load(path string) (InvocationRecord, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return InvocationRecord{}, err
	}
	var rec InvocationRecord
	err = json.Unmarshal(contents, &rec)
	if err != nil {
		return InvocationRecord{}, fmt.Errorf("decode record %s: %w", path, err)
	}
	return rec, nil
}
