package evalconfig

// Config 예측 평가 파이프라인 전체 설정 (config/evaluation.yaml)
type Config struct {
	Data            Data            `yaml:"data" json:"data"`
	Training        Training        `yaml:"training" json:"training"`
	Evaluation      Evaluation      `yaml:"evaluation" json:"evaluation"`
	Output          Output          `yaml:"output" json:"output"`
	Schedule        Schedule        `yaml:"schedule" json:"schedule"`
	ForecastService ForecastService `yaml:"forecast_service" json:"forecast_service"`
}

// Data 입력 파일과 컬럼 이름
type Data struct {
	InputFile      string `yaml:"input_file" json:"input_file"`           // actuals CSV
	ForecastFile   string `yaml:"forecast_file" json:"forecast_file"`     // predictions JSON 또는 CSV
	ForecastFormat string `yaml:"forecast_format" json:"forecast_format"` // auto | json | csv
	IDColumn       string `yaml:"id_column" json:"id_column"`
	DateColumn     string `yaml:"date_column" json:"date_column"`
	TargetColumn   string `yaml:"target_column" json:"target_column"`
	QualityReport  string `yaml:"quality_report" json:"quality_report"` // 비어 있으면 생략
}

// Training holdout 구간
type Training struct {
	TestSizeDays int `yaml:"test_size_days" json:"test_size_days"` // 마지막 N 개 날짜
}

// Evaluation 지표와 실행 옵션
type Evaluation struct {
	Metrics       []string `yaml:"metrics" json:"metrics"`
	GeneratePlots *bool    `yaml:"generate_plots" json:"generate_plots"` // 미지정 = true
	Workers       int      `yaml:"workers" json:"workers"`               // 0 = GOMAXPROCS
}

// PlotsEnabled generate_plots 값 (미지정 시 true)
func (e Evaluation) PlotsEnabled() bool {
	return e.GeneratePlots == nil || *e.GeneratePlots
}

// Output 리포트 저장 위치
type Output struct {
	EvaluationReport string   `yaml:"evaluation_report" json:"evaluation_report"` // file sink 경로
	Sinks            []string `yaml:"sinks" json:"sinks"`                         // file, postgres, sqlite, redis
	ReportKey        string   `yaml:"report_key" json:"report_key"`               // DB/Redis 문서 키
}

// Schedule 주기 재평가 (cron, 초 단위 필드 포함)
type Schedule struct {
	Cron     string `yaml:"cron" json:"cron"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// ForecastService 예측 서비스 API (/items, /predict/{item})
// base_url 지정 시 forecast_file 대신 사용
type ForecastService struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Enabled reports whether forecasts come from the service
func (f ForecastService) Enabled() bool {
	return f.BaseURL != ""
}

// Sink names
const (
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkRedis    = "redis"
)

// Forecast file formats
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// HasSink reports whether name is configured
func (o Output) HasSink(name string) bool {
	for _, s := range o.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
