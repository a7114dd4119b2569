// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/config"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/models"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrNothingToExport is returned when no attempt passes the filters.
var ErrNothingToExport = errors.New("no attempts match the export criteria")

// ParseFormat accepts csv or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Options configures the export behavior
type Options struct {
	Format        Format
	Since         time.Time
	Until         time.Time
	Mint          string
	OnlySucceeded bool
	OutputDir     string
}

// AttemptExporter writes journal attempts to CSV or JSON files.
type AttemptExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAttemptExporter(logger *zap.Logger) *AttemptExporter {
	return &AttemptExporter{logger: logger.Named("export"), now: time.Now}
}

// Export filters, sorts by start time and writes attempts. It returns the file path.
func (e *AttemptExporter) Export(attempts []*models.Attempt, opts Options) (string, error) {
	filtered := filter(attempts, opts)
	if len(filtered) == 0 {
		return "", ErrNothingToExport
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.Before(filtered[j].StartedAt)
	})

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, e.filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = e.writeJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("📤 Attempts exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return outputPath, nil
}

func filter(attempts []*models.Attempt, opts Options) []*models.Attempt {
	var out []*models.Attempt
	for _, a := range attempts {
		if !opts.Since.IsZero() && a.StartedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && a.StartedAt.After(opts.Until) {
			continue
		}
		if opts.Mint != "" && a.Mint != opts.Mint {
			continue
		}
		if opts.OnlySucceeded && a.Status != string(domain.StatusSucceeded) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (e *AttemptExporter) filename(opts Options) string {
	prefix := "attempts_all"
	if opts.OnlySucceeded {
		prefix = "attempts_succeeded"
	}
	if len(opts.Mint) >= 8 {
		prefix += "_" + opts.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), opts.Format)
}

// CSVHeaders lists the columns written by the CSV export.
func CSVHeaders() []string {
	return []string{
		"id", "mint", "pool_id", "creation_tx", "quote_reserve_sol", "status", "retry_count",
		"confirmed", "partial", "tx_ids", "error", "started_at", "duration_ms",
	}
}

func csvRow(a *models.Attempt) []string {
	return []string{
		a.ID,
		a.Mint,
		a.PoolID,
		a.CreationTx,
		config.LamportsToSOL(a.QuoteReserve, 9),
		a.Status,
		strconv.Itoa(a.RetryCount),
		strconv.Itoa(a.Confirmed),
		strconv.FormatBool(a.Partial),
		strings.Join(a.TxIDs, ";"),
		a.Error,
		a.StartedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(a.Duration().Milliseconds(), 10),
	}
}

func writeCSV(attempts []*models.Attempt, outputPath string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, a := range attempts {
		if err := writer.Write(csvRow(a)); err != nil {
			return fmt.Errorf("failed to write attempt: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Summary contains statistics for exported attempts
type Summary struct {
	Total         int       `json:"total"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Partial       int       `json:"partial"`
	UniqueMints   int       `json:"unique_mints"`
	TotalRetries  int       `json:"total_retries"`
	AvgDurationMs int64     `json:"avg_duration_ms"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

type jsonAttempt struct {
	*models.Attempt
	QuoteReserveSOL string `json:"quote_reserve_sol"`
	DurationMs      int64  `json:"duration_ms"`
}

func (e *AttemptExporter) writeJSON(attempts []*models.Attempt, outputPath string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	rows := make([]jsonAttempt, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, jsonAttempt{
			Attempt:         a,
			QuoteReserveSOL: config.LamportsToSOL(a.QuoteReserve, 9),
			DurationMs:      a.Duration().Milliseconds(),
		})
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		Count      int           `json:"count"`
		Summary    Summary       `json:"summary"`
		Attempts   []jsonAttempt `json:"attempts"`
	}{
		ExportTime: e.now().UTC(),
		Count:      len(attempts),
		Summary:    Summarize(attempts),
		Attempts:   rows,
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize computes statistics over attempts sorted by start time.
func Summarize(attempts []*models.Attempt) Summary {
	s := Summary{Total: len(attempts)}
	if len(attempts) == 0 {
		return s
	}
	s.StartDate = attempts[0].StartedAt
	s.EndDate = attempts[len(attempts)-1].StartedAt

	mints := make(map[string]struct{})
	var total time.Duration
	for _, a := range attempts {
		mints[a.Mint] = struct{}{}
		s.TotalRetries += a.RetryCount
		total += a.Duration()
		if a.Status == string(domain.StatusSucceeded) {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if a.Partial {
			s.Partial++
		}
	}
	s.UniqueMints = len(mints)
	s.AvgDurationMs = (total / time.Duration(len(attempts))).Milliseconds()
	return s
}
