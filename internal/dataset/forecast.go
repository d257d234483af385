package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wonny/foreval/internal/contracts"
)

// PredictionsFile predict 단계가 내보내는 API 형식 JSON
//
//	{"generated_at": ..., "num_products": N,
//	 "results": [{"item_name": ..., "predictions": [{"timestamp", "mean", "quantile_0.1", ...}]}]}
type PredictionsFile struct {
	GeneratedAt string            `json:"generated_at"`
	NumProducts int               `json:"num_products"`
	Results     []ItemPredictions `json:"results"`
}

// ItemPredictions 엔티티 하나의 예측 목록 (항상 배열, 길이 >= 1)
type ItemPredictions struct {
	ItemName       string          `json:"item_name"`
	Predictions    []PredictionRow `json:"predictions"`
	NumPredictions int             `json:"num_predictions"`
}

// PredictionRow timestamp/mean 외의 quantile_X 키는 Quantiles 로 수집
type PredictionRow struct {
	Timestamp string
	Mean      float64
	Quantiles map[float64]float64
}

// UnmarshalJSON accepts dynamic quantile_<level> keys
func (p *PredictionRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tsRaw, ok := raw["timestamp"]
	if !ok {
		return errors.New("prediction row without timestamp")
	}
	if err := json.Unmarshal(tsRaw, &p.Timestamp); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}

	meanRaw, ok := raw["mean"]
	if !ok {
		return fmt.Errorf("prediction row %s without mean", p.Timestamp)
	}
	if err := json.Unmarshal(meanRaw, &p.Mean); err != nil {
		return fmt.Errorf("mean: %w", err)
	}

	for key, val := range raw {
		levelStr, ok := strings.CutPrefix(key, "quantile_")
		if !ok {
			continue
		}
		level, err := strconv.ParseFloat(levelStr, 64)
		if err != nil {
			return fmt.Errorf("quantile key %q: %w", key, err)
		}
		var q float64
		if err := json.Unmarshal(val, &q); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if p.Quantiles == nil {
			p.Quantiles = make(map[float64]float64)
		}
		p.Quantiles[level] = q
	}
	return nil
}

// LoadForecasts reads a forecast file in the given format (auto = by extension)
func LoadForecasts(path, format string) ([]contracts.ForecastPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open forecasts: %w", err)
	}

	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		default:
			format = "json"
		}
	}

	var points []contracts.ForecastPoint
	switch format {
	case "json":
		points, err = ReadPredictionsJSON(bytes.NewReader(data))
	case "csv":
		points, err = ReadForecastCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported forecast format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// ReadPredictionsJSON flattens a predictions document into forecast points
func ReadPredictionsJSON(r io.Reader) ([]contracts.ForecastPoint, error) {
	var doc PredictionsFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	var points []contracts.ForecastPoint
	for _, item := range doc.Results {
		converted, err := item.Points()
		if err != nil {
			return nil, err
		}
		points = append(points, converted...)
	}
	return points, nil
}

// Points converts one item's rows into forecast points
func (ip ItemPredictions) Points() ([]contracts.ForecastPoint, error) {
	points := make([]contracts.ForecastPoint, 0, len(ip.Predictions))
	for _, row := range ip.Predictions {
		ts, err := ParseTimestamp(row.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", ip.ItemName, err)
		}
		points = append(points, contracts.ForecastPoint{
			EntityID:  ip.ItemName,
			Timestamp: ts,
			Mean:      row.Mean,
			Quantiles: row.Quantiles,
		})
	}
	return points, nil
}

// ReadForecastCSV reads a flat forecast table (predictor.predict().to_csv()).
// 헤더: item_id, timestamp, mean, 그리고 분위수 컬럼 ("0.1" 또는 "quantile_0.1")
func ReadForecastCSV(r io.Reader) ([]contracts.ForecastPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idIdx, tsIdx, meanIdx := -1, -1, -1
	quantileIdx := make(map[int]float64)
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch name {
		case "item_id", "item_name":
			idIdx = i
		case "timestamp", "date":
			tsIdx = i
		case "mean":
			meanIdx = i
		default:
			levelStr := strings.TrimPrefix(name, "quantile_")
			if level, err := strconv.ParseFloat(levelStr, 64); err == nil {
				quantileIdx[i] = level
			}
		}
	}
	if idIdx < 0 || tsIdx < 0 || meanIdx < 0 {
		return nil, fmt.Errorf("forecast header must contain item_id, timestamp and mean: %v", header)
	}

	var points []contracts.ForecastPoint
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		ts, err := ParseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		mean, err := strconv.ParseFloat(strings.TrimSpace(record[meanIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: mean: %w", line, err)
		}

		p := contracts.ForecastPoint{
			EntityID:  strings.TrimSpace(record[idIdx]),
			Timestamp: ts,
			Mean:      mean,
		}
		for idx, level := range quantileIdx {
			cell := strings.TrimSpace(record[idx])
			if cell == "" {
				continue
			}
			q, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: quantile %v: %w", line, level, err)
			}
			if p.Quantiles == nil {
				p.Quantiles = make(map[float64]float64, len(quantileIdx))
			}
			p.Quantiles[level] = q
		}
		points = append(points, p)
	}
	return points, nil
}
