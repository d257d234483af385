package dataset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/pkg/httputil"
)

// maxConcurrentPredicts /predict 동시 요청 상한 (속도 제한은 httputil.Client 가 담당)
const maxConcurrentPredicts = 4

// ForecastService 예측 서비스 API 소스
//
//	GET /items                → {"items": [...]}
//	GET /predict/{item_name}  → {"item": ..., "predictions": [{"timestamp", "date", "mean"}], "forecast_horizon": N}
type ForecastService struct {
	client  *httputil.Client
	baseURL string
	log     zerolog.Logger
}

type itemsResponse struct {
	Items []string `json:"items"`
}

type predictResponse struct {
	Item            string          `json:"item"`
	Predictions     []PredictionRow `json:"predictions"`
	ForecastHorizon int             `json:"forecast_horizon"`
}

// NewForecastService creates a source for the service at baseURL
func NewForecastService(client *httputil.Client, baseURL string, log zerolog.Logger) *ForecastService {
	return &ForecastService{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With().Str("component", "dataset.forecast_service").Logger(),
	}
}

// Items returns the entity ids the service can forecast
func (s *ForecastService) Items(ctx context.Context) ([]string, error) {
	var resp itemsResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/items", &resp); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return resp.Items, nil
}

// Predict returns the forecast for one item; found=false on 404
func (s *ForecastService) Predict(ctx context.Context, item string) ([]contracts.ForecastPoint, bool, error) {
	var resp predictResponse
	err := s.client.GetJSON(ctx, s.baseURL+"/predict/"+url.PathEscape(item), &resp)

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("predict %s: %w", item, err)
	}

	name := resp.Item
	if name == "" {
		name = item
	}
	points, err := ItemPredictions{ItemName: name, Predictions: resp.Predictions}.Points()
	if err != nil {
		return nil, false, err
	}
	return points, true, nil
}

// FetchForecasts fetches forecasts for items (nil = every item the service lists).
// 404 인 항목은 건너뜀 → 평가 단계에서 MISSING_FORECAST 로 기록
func (s *ForecastService) FetchForecasts(ctx context.Context, items []string) ([]contracts.ForecastPoint, error) {
	if items == nil {
		listed, err := s.Items(ctx)
		if err != nil {
			return nil, err
		}
		items = listed
	}

	sorted := append([]string(nil), items...)
	sort.Strings(sorted)

	perItem := make([][]contracts.ForecastPoint, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPredicts)
	for i, item := range sorted {
		g.Go(func() error {
			points, found, err := s.Predict(gctx, item)
			if err != nil {
				return err
			}
			if !found {
				s.log.Warn().Str("item", item).Msg("forecast service has no prediction for item")
				return nil
			}
			perItem[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []contracts.ForecastPoint
	for _, points := range perItem {
		all = append(all, points...)
	}

	s.log.Info().
		Int("items", len(sorted)).
		Int("points", len(all)).
		Msg("forecasts fetched from service")

	return all, nil
}
