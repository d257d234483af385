package evaluation

import "fmt"

// ConfigurationError 잘못된 평가 설정 (채점 시작 전 실패)
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// MissingInputError actual 또는 forecast 입력이 통째로 비어 있음 (실행 전체 실패)
type MissingInputError struct {
	Input string // "actuals" | "forecasts"
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %s provider returned no data", e.Input)
}

// InputError 입력 계약 위반 (중복 키, 음수 실제값, 잘못된 분위수)
type InputError struct {
	Input   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Input, e.Message)
}
