package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/foreval/internal/contracts"
)

// Columns CSV 컬럼 이름 (evaluation.yaml data 섹션)
type Columns struct {
	ID     string
	Date   string
	Target string
}

// ActualsFile actuals CSV 파싱 결과
type ActualsFile struct {
	Observations []contracts.Observation
	Rows         int            // 헤더 제외 전체 행 수
	Missing      map[string]int // 컬럼별 빈 값 개수 (해당 행은 제외)
}

// timeLayouts 날짜 컬럼 허용 형식 (pandas to_datetime 출력 포함)
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a date cell in any accepted layout (UTC if no zone)
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadActualsCSV opens path and parses it with ReadActualsCSV
func LoadActualsCSV(path string, cols Columns) (*ActualsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open actuals: %w", err)
	}
	defer f.Close()

	af, err := ReadActualsCSV(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return af, nil
}

// ReadActualsCSV reads (id, date, target) rows.
// 빈 셀은 Missing 에 집계하고 건너뜀, 형식 오류는 즉시 실패
func ReadActualsCSV(r io.Reader, cols Columns) (*ActualsFile, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &ActualsFile{Missing: emptyMissing(cols)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idIdx, err := columnIndex(header, cols.ID)
	if err != nil {
		return nil, err
	}
	dateIdx, err := columnIndex(header, cols.Date)
	if err != nil {
		return nil, err
	}
	targetIdx, err := columnIndex(header, cols.Target)
	if err != nil {
		return nil, err
	}

	af := &ActualsFile{Missing: emptyMissing(cols)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		af.Rows++
		line, _ := reader.FieldPos(0)

		id := strings.TrimSpace(record[idIdx])
		dateCell := strings.TrimSpace(record[dateIdx])
		valueCell := strings.TrimSpace(record[targetIdx])

		missing := false
		if id == "" {
			af.Missing[cols.ID]++
			missing = true
		}
		if dateCell == "" {
			af.Missing[cols.Date]++
			missing = true
		}
		if valueCell == "" {
			af.Missing[cols.Target]++
			missing = true
		}
		if missing {
			continue
		}

		ts, err := ParseTimestamp(dateCell)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, cols.Date, err)
		}
		value, err := strconv.ParseFloat(valueCell, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, cols.Target, err)
		}

		af.Observations = append(af.Observations, contracts.Observation{
			EntityID:  id,
			Timestamp: ts,
			Value:     value,
		})
	}

	return af, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found in header %v", name, header)
}

func emptyMissing(cols Columns) map[string]int {
	return map[string]int{cols.ID: 0, cols.Date: 0, cols.Target: 0}
}
