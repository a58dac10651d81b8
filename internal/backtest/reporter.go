package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter writes backtest results to disk and the console.
type Reporter struct {
	results    *Results
	outputPath string
}

func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, the per-record log and the JSON report
// into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateOutcomeLog(); err != nil {
		return err
	}
	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "backtest_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.WriteSummary(file)
	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// WriteSummary renders the human-readable summary to w.
func (r *Reporter) WriteSummary(w io.Writer) {
	res := r.results

	fmt.Fprintf(w, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n\n")
	if !res.StartTime.IsZero() {
		fmt.Fprintf(w, "Time Period: %s to %s\n",
			res.StartTime.Format("2006-01-02 15:04:05"),
			res.EndTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Replay Duration: %s\n\n", res.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "PREQUENTIAL METRICS\n")
	fmt.Fprintf(w, "-------------------\n")
	fmt.Fprintf(w, "Records: %d (%d labeled, %d rejected)\n", res.Total, res.Labeled, res.Rejected)
	fmt.Fprintf(w, "Evaluated: %d\n", res.Evaluated)
	fmt.Fprintf(w, "Correct: %d\n", res.Correct)
	fmt.Fprintf(w, "Accuracy: %.2f%%\n", res.Accuracy*100)
	fmt.Fprintf(w, "Coverage: %.2f%%\n\n", res.Coverage*100)

	fmt.Fprintf(w, "MODEL\n")
	fmt.Fprintf(w, "-----\n")
	fmt.Fprintf(w, "Leaves: %d\n", res.Model.Leaves)
	fmt.Fprintf(w, "Splits: %d\n", res.Model.Splits)
	fmt.Fprintf(w, "Depth: %d\n", res.Model.Depth)
	fmt.Fprintf(w, "Examples: %d\n", res.Model.Examples)

	classes := res.Classes()
	if len(classes) == 0 {
		return
	}

	fmt.Fprintf(w, "\nCONFUSION MATRIX (rows actual, columns predicted)\n")
	fmt.Fprintf(w, "-------------------------------------------------\n")
	fmt.Fprintf(w, "%-12s", "")
	for _, c := range classes {
		fmt.Fprintf(w, "%12s", c)
	}
	fmt.Fprintln(w)
	for _, actual := range classes {
		fmt.Fprintf(w, "%-12s", actual)
		for _, predicted := range classes {
			fmt.Fprintf(w, "%12d", res.Confusion[actual][predicted])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nPER-CLASS METRICS\n")
	fmt.Fprintf(w, "-----------------\n")
	for _, s := range r.calculateClassStats() {
		fmt.Fprintf(w, "%s: precision %.2f, recall %.2f, support %d\n",
			s.Class, s.Precision, s.Recall, s.Support)
	}
}

func (r *Reporter) generateOutcomeLog() error {
	csvPath := filepath.Join(r.outputPath, "outcomes.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create outcome log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Seq", "Timestamp", "Source", "Value", "Label", "Prediction", "Predicted", "Correct"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, o := range r.results.Outcomes {
		record := []string{
			strconv.FormatUint(o.Seq, 10),
			o.Timestamp.Format(time.RFC3339),
			o.Source,
			strconv.FormatFloat(o.Value, 'f', -1, 64),
			o.Label,
			o.Prediction,
			strconv.FormatBool(o.Predicted),
			strconv.FormatBool(o.Correct),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("Outcome log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "backtest_results.json")

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"start_time": r.results.StartTime,
			"end_time":   r.results.EndTime,
			"total":      r.results.Total,
			"labeled":    r.results.Labeled,
			"evaluated":  r.results.Evaluated,
			"correct":    r.results.Correct,
			"rejected":   r.results.Rejected,
			"accuracy":   r.results.Accuracy,
			"coverage":   r.results.Coverage,
		},
		"model":        r.results.Model,
		"confusion":    r.results.Confusion,
		"classes":      r.calculateClassStats(),
		"curve":        r.results.Curve,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// ClassStats holds per-label precision and recall.
type ClassStats struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

func (r *Reporter) calculateClassStats() []ClassStats {
	classes := r.results.Classes()
	stats := make([]ClassStats, 0, len(classes))

	for _, c := range classes {
		tp := r.results.Confusion[c][c]
		actual, predicted := 0, 0
		for _, n := range r.results.Confusion[c] {
			actual += n
		}
		for _, row := range r.results.Confusion {
			predicted += row[c]
		}

		s := ClassStats{Class: c, Support: actual}
		if predicted > 0 {
			s.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			s.Recall = float64(tp) / float64(actual)
		}
		stats = append(stats, s)
	}
	return stats
}

func (r *Reporter) PrintSummary() {
	fmt.Println()
	r.WriteSummary(os.Stdout)
	fmt.Println("=======================")
}
