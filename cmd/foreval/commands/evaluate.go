package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "평가 1회 실행",
	Long: `설정 파일 기준으로 평가를 한 번 실행하고 리포트를 모든 sink 에 기록합니다.

단계:
- 실제값 CSV 로드 (+ 데이터 품질 리포트)
- 마지막 test_size_days 일을 holdout 으로 분리
- 예측값 로드 (파일 또는 예측 서비스)
- 항목별 지표 계산 및 전체 요약

Example:
  go run ./cmd/foreval evaluate
  go run ./cmd/foreval evaluate --json
  go run ./cmd/foreval evaluate --config config/evaluation.yaml`,
	RunE: runEvaluate,
}

var evaluateJSON bool

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "리포트 JSON 을 stdout 으로 출력")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.runner.Run(ctx)
	if rep != nil {
		if evaluateJSON {
			data, mErr := evaluation.MarshalReport(rep)
			if mErr != nil {
				return mErr
			}
			os.Stdout.Write(data)
		} else {
			printSummary(rep)
		}
	}
	if err != nil {
		a.log.WithError(err).Error("Evaluation failed")
		return err
	}
	return nil
}

// printSummary 전체 요약 + 진단 건수
func printSummary(rep *contracts.EvaluationReport) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Forecast Evaluation")
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Evaluated : %s\n", rep.EvaluatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Test days : %d\n", rep.TestSizeDays)
	fmt.Printf("  Entities  : %d\n", rep.EntityCount)
	fmt.Println("───────────────────────────────────────────────────────────")

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  METRIC\tMEAN\tSTD\tMIN\tMAX\tN")
	for _, m := range rep.MetricsCalculated {
		s, ok := rep.OverallMetrics[m]
		if !ok {
			fmt.Fprintf(tw, "  %s\t-\t-\t-\t-\t0\n", m)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\n", m, s.Mean, s.Std, s.Min, s.Max, s.N)
	}
	tw.Flush()

	if len(rep.Diagnostics) > 0 {
		counts := make(map[contracts.DiagnosticKind]int)
		for _, d := range rep.Diagnostics {
			counts[d.Kind]++
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		fmt.Println("───────────────────────────────────────────────────────────")
		for _, k := range kinds {
			fmt.Printf("  ⚠️  %-18s %d\n", k, counts[contracts.DiagnosticKind(k)])
		}
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}
