package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/foreval/internal/contracts"
)

// QualityReport 입력 actuals 의 데이터 품질 요약
type QualityReport struct {
	GeneratedAt     time.Time                    `json:"generated_at"`
	Source          string                       `json:"source"`
	BasicStats      BasicStats                   `json:"basic_stats"`
	DataQuality     DataQuality                  `json:"data_quality"`
	ValueStatistics ValueStatistics              `json:"sales_statistics"`
	PerProductStats map[string]ProductStatistics `json:"per_product_stats"`
}

type BasicStats struct {
	NumRows     int       `json:"num_rows"`
	NumProducts int       `json:"num_products"`
	Products    []string  `json:"products"`
	DateRange   DateRange `json:"date_range"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

type DataQuality struct {
	MissingValues  map[string]int `json:"missing_values"`
	Duplicates     int            `json:"duplicates"`
	NegativeValues int            `json:"negative_values"`
}

// ValueStatistics StdDev 는 표본 표준편차 (÷(N-1))
type ValueStatistics struct {
	Total  float64 `json:"total_sales"`
	Mean   float64 `json:"mean_daily_sales_per_product"`
	Median float64 `json:"median_daily_sales_per_product"`
	Min    float64 `json:"min_sales"`
	Max    float64 `json:"max_sales"`
	StdDev float64 `json:"std_dev"`
}

type ProductStatistics struct {
	NumRecords int     `json:"num_records"`
	Total      float64 `json:"total_sales"`
	Mean       float64 `json:"mean_sales"`
	Median     float64 `json:"median_sales"`
	Min        float64 `json:"min_sales"`
	Max        float64 `json:"max_sales"`
}

// Clean reports whether the file had no missing values, duplicates or negatives
func (q *QualityReport) Clean() bool {
	for _, n := range q.DataQuality.MissingValues {
		if n > 0 {
			return false
		}
	}
	return q.DataQuality.Duplicates == 0 && q.DataQuality.NegativeValues == 0
}

// BuildQualityReport summarizes a parsed actuals file
func BuildQualityReport(af *ActualsFile, source string, generatedAt time.Time) *QualityReport {
	missing := make(map[string]int, len(af.Missing))
	for k, v := range af.Missing {
		missing[k] = v
	}

	report := &QualityReport{
		GeneratedAt: generatedAt,
		Source:      source,
		DataQuality: DataQuality{
			MissingValues: missing,
		},
		PerProductStats: make(map[string]ProductStatistics),
	}
	report.BasicStats.NumRows = af.Rows

	obs := af.Observations
	if len(obs) == 0 {
		report.BasicStats.Products = []string{}
		return report
	}

	byProduct := make(map[string][]float64)
	seen := make(map[string]map[int64]struct{})
	all := make([]float64, 0, len(obs))
	start, end := obs[0].Timestamp, obs[0].Timestamp

	for _, o := range obs {
		byProduct[o.EntityID] = append(byProduct[o.EntityID], o.Value)
		all = append(all, o.Value)

		if o.Value < 0 {
			report.DataQuality.NegativeValues++
		}
		if !markRow(seen, o) {
			report.DataQuality.Duplicates++
		}
		if o.Timestamp.Before(start) {
			start = o.Timestamp
		}
		if o.Timestamp.After(end) {
			end = o.Timestamp
		}
	}

	products := make([]string, 0, len(byProduct))
	for id := range byProduct {
		products = append(products, id)
	}
	sort.Strings(products)

	report.BasicStats.NumProducts = len(products)
	report.BasicStats.Products = products
	report.BasicStats.DateRange = DateRange{
		Start: start,
		End:   end,
		Days:  int(end.Sub(start).Hours() / 24),
	}

	s := describe(all)
	report.ValueStatistics = ValueStatistics{
		Total:  s.total,
		Mean:   s.mean,
		Median: s.median,
		Min:    s.min,
		Max:    s.max,
		StdDev: s.sampleStd,
	}

	for _, id := range products {
		ps := describe(byProduct[id])
		report.PerProductStats[id] = ProductStatistics{
			NumRecords: len(byProduct[id]),
			Total:      ps.total,
			Mean:       ps.mean,
			Median:     ps.median,
			Min:        ps.min,
			Max:        ps.max,
		}
	}

	return report
}

func markRow(seen map[string]map[int64]struct{}, o contracts.Observation) bool {
	byTime, ok := seen[o.EntityID]
	if !ok {
		byTime = make(map[int64]struct{})
		seen[o.EntityID] = byTime
	}
	key := o.Timestamp.UnixNano()
	if _, dup := byTime[key]; dup {
		return false
	}
	byTime[key] = struct{}{}
	return true
}

type description struct {
	total, mean, median, min, max, sampleStd float64
}

func describe(values []float64) description {
	n := len(values)
	if n == 0 {
		return description{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var d description
	d.min, d.max = sorted[0], sorted[n-1]
	for _, v := range sorted {
		d.total += v
	}
	d.mean = d.total / float64(n)

	if n%2 == 1 {
		d.median = sorted[n/2]
	} else {
		d.median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	if n > 1 {
		var sumSq float64
		for _, v := range sorted {
			diff := v - d.mean
			sumSq += diff * diff
		}
		d.sampleStd = math.Sqrt(sumSq / float64(n-1))
	}
	return d
}
