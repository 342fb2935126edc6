// Package dataset reads account records from CSV and writes scored output.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Column names, matched case-insensitively against the header.
const (
	ColCustomerID             = "customer_id"
	ColTenureMonths           = "tenure_months"
	ColMonthlyCharges         = "monthly_charges"
	ColTotalCharges           = "total_charges"
	ColContractType           = "contract_type"
	ColPaymentMethod          = "payment_method"
	ColSupportTicketCount     = "support_ticket_count"
	ColAvgResolutionTime      = "avg_resolution_time"
	ColAvgSatisfactionScore   = "avg_satisfaction_score"
	ColAvgCallMinutes         = "avg_call_minutes"
	ColAvgDataUsageGB         = "avg_data_usage_gb"
	ColLatePayments           = "late_payments"
	ColHasOnlineSecurity      = "has_online_security"
	ColHasTechSupport         = "has_tech_support"
	ColStreamingServicesCount = "streaming_services_count"
	ColChurn                  = "churn"
)

var required = []string{ColTenureMonths, ColMonthlyCharges, ColContractType, ColPaymentMethod}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RowError locates a malformed value.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadFile reads every record from a CSV file.
func ReadFile(path string) ([]domain.RawAccountRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Read(file)
}

// Read parses account records. Empty cells in nullable columns stay nil;
// an empty churn cell means unlabeled.
func Read(r io.Reader) ([]domain.RawAccountRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var records []domain.RawAccountRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec, err := parseRow(row, colIndex, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

type rowParser struct {
	row      []string
	colIndex map[string]int
	line     int
	err      error
}

func (p *rowParser) cell(col string) string {
	i, ok := p.colIndex[col]
	if !ok || i >= len(p.row) {
		return ""
	}
	return strings.TrimSpace(p.row[i])
}

func (p *rowParser) fail(col string, err error) {
	if p.err == nil {
		p.err = &RowError{Line: p.line, Column: col, Err: err}
	}
}

func (p *rowParser) float(col string) *float64 {
	v := p.cell(col)
	if v == "" || strings.EqualFold(v, "nan") {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) {
		p.fail(col, fmt.Errorf("invalid number %q", v))
		return nil
	}
	return &f
}

// integer accepts "3" and "3.0", as exported by dataframe tools.
func (p *rowParser) integer(col string) *int {
	f := p.float(col)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		p.fail(col, fmt.Errorf("invalid integer %v", *f))
		return nil
	}
	n := int(*f)
	return &n
}

func parseRow(row []string, colIndex map[string]int, line int) (domain.RawAccountRecord, error) {
	p := &rowParser{row: row, colIndex: colIndex, line: line}
	deref := func(n *int) int {
		if n == nil {
			return 0
		}
		return *n
	}

	rec := domain.RawAccountRecord{
		CustomerID:             p.cell(ColCustomerID),
		TenureMonths:           deref(p.integer(ColTenureMonths)),
		TotalCharges:           p.float(ColTotalCharges),
		ContractType:           p.cell(ColContractType),
		PaymentMethod:          p.cell(ColPaymentMethod),
		SupportTicketCount:     p.float(ColSupportTicketCount),
		AvgResolutionTime:      p.float(ColAvgResolutionTime),
		AvgSatisfactionScore:   p.float(ColAvgSatisfactionScore),
		AvgCallMinutes:         p.float(ColAvgCallMinutes),
		AvgDataUsageGB:         p.float(ColAvgDataUsageGB),
		LatePayments:           p.float(ColLatePayments),
		HasOnlineSecurity:      deref(p.integer(ColHasOnlineSecurity)),
		HasTechSupport:         deref(p.integer(ColHasTechSupport)),
		StreamingServicesCount: deref(p.integer(ColStreamingServicesCount)),
		Churn:                  p.integer(ColChurn),
	}
	if mc := p.float(ColMonthlyCharges); mc != nil {
		rec.MonthlyCharges = *mc
	}

	return rec, p.err
}

// ScoredRow is one line of batch scoring output. Err is set instead of
// Result when the record could not be scored.
type ScoredRow struct {
	Record domain.RawAccountRecord
	Result *domain.ScoringResult
	Err    error
}

var scoredHeader = []string{
	ColCustomerID,
	"churn_probability",
	"churn_flag",
	"risk_tier",
	"action",
	ColTenureMonths,
	ColMonthlyCharges,
	ColContractType,
	ColPaymentMethod,
	"error",
}

// ScoredWriter streams scored rows as CSV.
type ScoredWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewScoredWriter creates a writer over w.
func NewScoredWriter(w io.Writer) *ScoredWriter {
	return &ScoredWriter{w: csv.NewWriter(w)}
}

// Write appends one row, emitting the header first.
func (s *ScoredWriter) Write(row ScoredRow) error {
	if !s.wroteHeader {
		if err := s.w.Write(scoredHeader); err != nil {
			return err
		}
		s.wroteHeader = true
	}

	rec := row.Record
	out := []string{
		rec.CustomerID,
		"", "", "", "",
		strconv.Itoa(rec.TenureMonths),
		strconv.FormatFloat(rec.MonthlyCharges, 'f', -1, 64),
		rec.ContractType,
		rec.PaymentMethod,
		"",
	}
	if row.Result != nil {
		out[1] = strconv.FormatFloat(row.Result.Probability, 'f', 6, 64)
		out[2] = strconv.Itoa(row.Result.Decision)
		out[3] = string(row.Result.Tier)
		out[4] = row.Result.Action
	}
	if row.Err != nil {
		out[9] = row.Err.Error()
	}

	return s.w.Write(out)
}

// Flush writes buffered rows and reports any write error.
func (s *ScoredWriter) Flush() error {
	s.w.Flush()
	return s.w.Error()
}
