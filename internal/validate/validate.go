// Package validate gates deployment scoring requests to the ranges and
// categories the served model was fit on.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Request field names, in the order they are checked.
const (
	FieldTenureMonths       = "tenure_months"
	FieldMonthlyCharges     = "monthly_charges"
	FieldSupportTicketCount = "support_ticket_count"
	FieldAvgCallMinutes     = "avg_call_minutes"
	FieldAvgDataUsageGB     = "avg_data_usage_gb"
	FieldContractType       = "contract_type"
	FieldPaymentMethod      = "payment_method"
)

// Fields lists every request field in check order.
var Fields = []string{
	FieldTenureMonths,
	FieldMonthlyCharges,
	FieldSupportTicketCount,
	FieldAvgCallMinutes,
	FieldAvgDataUsageGB,
	FieldContractType,
	FieldPaymentMethod,
}

// Range is a closed numeric interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("must be between %s and %s", formatNum(r.Min), formatNum(r.Max))
}

// Trained input domain of the deployment model.
var (
	TenureRange        = Range{Min: 1, Max: 75}
	MonthlyChargeRange = Range{Min: 19, Max: 119}
	SupportTicketRange = Range{Min: 0, Max: 7}
	CallMinutesRange   = Range{Min: 0, Max: 275}
	DataUsageRange     = Range{Min: 0, Max: 30}

	ContractTypes  = []string{"month-to-month", "one year", "two year"}
	PaymentMethods = []string{"electronic check", "credit card", "bank transfer", "mailed check"}
)

// Request checks a deployment request and returns the first violation.
// Categorical values must match exactly; no case folding or trimming.
func Request(req domain.ScoreRequest) error {
	if err := checkRange(FieldTenureMonths, float64(req.TenureMonths), TenureRange); err != nil {
		return err
	}
	if err := checkRange(FieldMonthlyCharges, req.MonthlyCharges, MonthlyChargeRange); err != nil {
		return err
	}
	if err := checkRange(FieldSupportTicketCount, float64(req.SupportTicketCount), SupportTicketRange); err != nil {
		return err
	}
	if err := checkRange(FieldAvgCallMinutes, req.AvgCallMinutes, CallMinutesRange); err != nil {
		return err
	}
	if err := checkRange(FieldAvgDataUsageGB, req.AvgDataUsageGB, DataUsageRange); err != nil {
		return err
	}
	if err := checkOneOf(FieldContractType, req.ContractType, ContractTypes); err != nil {
		return err
	}
	return checkOneOf(FieldPaymentMethod, req.PaymentMethod, PaymentMethods)
}

// ParseRequest builds a request from string values (form fields or JSON
// scalars) and validates it. Parse failures are reported against the
// offending field like range violations.
func ParseRequest(values map[string]string) (domain.ScoreRequest, error) {
	var req domain.ScoreRequest
	var err error

	if req.TenureMonths, err = parseInt(values, FieldTenureMonths); err != nil {
		return req, err
	}
	if req.MonthlyCharges, err = parseFloat(values, FieldMonthlyCharges); err != nil {
		return req, err
	}
	if req.SupportTicketCount, err = parseInt(values, FieldSupportTicketCount); err != nil {
		return req, err
	}
	if req.AvgCallMinutes, err = parseFloat(values, FieldAvgCallMinutes); err != nil {
		return req, err
	}
	if req.AvgDataUsageGB, err = parseFloat(values, FieldAvgDataUsageGB); err != nil {
		return req, err
	}
	if req.ContractType, err = required(values, FieldContractType); err != nil {
		return req, err
	}
	if req.PaymentMethod, err = required(values, FieldPaymentMethod); err != nil {
		return req, err
	}

	return req, Request(req)
}

// Record builds a request from a cleaned batch record and validates it.
// Ticket counts must be whole numbers.
func Record(c domain.CleanedRecord) (domain.ScoreRequest, error) {
	tickets := c.SupportTicketCount
	if math.IsInf(tickets, 0) || tickets != math.Trunc(tickets) {
		return domain.ScoreRequest{}, &domain.ValidationError{
			Field:      FieldSupportTicketCount,
			Value:      formatNum(tickets),
			Constraint: "must be an integer",
		}
	}

	req := domain.ScoreRequest{
		TenureMonths:       c.TenureMonths,
		ContractType:       c.ContractType,
		MonthlyCharges:     c.MonthlyCharges,
		PaymentMethod:      c.PaymentMethod,
		SupportTicketCount: int(tickets),
		AvgCallMinutes:     c.AvgCallMinutes,
		AvgDataUsageGB:     c.AvgDataUsageGB,
	}
	return req, Request(req)
}

func checkRange(field string, v float64, r Range) error {
	if r.contains(v) {
		return nil
	}
	return &domain.ValidationError{
		Field:      field,
		Value:      formatNum(v),
		Constraint: r.String(),
	}
}

func checkOneOf(field, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &domain.ValidationError{
		Field:      field,
		Value:      v,
		Constraint: "must be one of: " + strings.Join(allowed, ", "),
	}
}

func required(values map[string]string, field string) (string, error) {
	v, ok := values[field]
	if !ok || v == "" {
		return "", &domain.ValidationError{Field: field, Constraint: "is required"}
	}
	return v, nil
}

func parseFloat(values map[string]string, field string) (float64, error) {
	raw, err := required(values, field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &domain.ValidationError{Field: field, Value: raw, Constraint: "must be a number"}
	}
	return v, nil
}

func parseInt(values map[string]string, field string) (int, error) {
	raw, err := required(values, field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Value: raw, Constraint: "must be an integer"}
	}
	return v, nil
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
