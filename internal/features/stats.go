package features

import (
	"errors"
	"slices"
	"time"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Winsorization quantiles.
const (
	LowerQuantile = 0.01
	UpperQuantile = 0.99
)

// ErrNoTrainingRows is returned when no labeled row survives filtering.
var ErrNoTrainingRows = errors.New("no labeled training rows")

// FitStats computes the frozen reference statistics from a training set.
// Quantiles are taken after label filtering and imputation, before capping.
// This runs offline only; serving code loads the result as configuration.
func FitStats(raws []domain.RawAccountRecord) (domain.ReferenceStats, error) {
	var cleaned []domain.CleanedRecord
	for _, raw := range raws {
		if _, ok := validLabel(raw.Churn); !ok {
			continue
		}
		cleaned = append(cleaned, Impute(raw))
	}
	if len(cleaned) == 0 {
		return domain.ReferenceStats{}, ErrNoTrainingRows
	}

	stats := domain.ReferenceStats{
		Bounds:   make(map[string]domain.Bound, len(CappedFields)),
		Rows:     len(cleaned),
		FittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	col := make([]float64, len(cleaned))
	for _, name := range CappedFields {
		for i := range cleaned {
			col[i] = *cappedField(&cleaned[i], name)
		}
		sorted := slices.Clone(col)
		slices.Sort(sorted)
		stats.Bounds[name] = domain.Bound{
			Lower: Quantile(sorted, LowerQuantile),
			Upper: Quantile(sorted, UpperQuantile),
		}
	}

	monthly := make([]float64, len(cleaned))
	for i, c := range cleaned {
		monthly[i] = c.MonthlyCharges
	}
	slices.Sort(monthly)
	stats.MedianMonthlyCharges = Quantile(monthly, 0.5)

	return stats, nil
}

// Quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks. It returns 0 for an empty slice.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
