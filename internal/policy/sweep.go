package policy

import (
	"errors"
	"math"
)

// ErrLengthMismatch is returned when probabilities and labels differ in length.
var ErrLengthMismatch = errors.New("probabilities and labels differ in length")

// SweepPoint holds classification metrics at one candidate threshold.
type SweepPoint struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	TP        int     `json:"tp" yaml:"tp"`
	FP        int     `json:"fp" yaml:"fp"`
	TN        int     `json:"tn" yaml:"tn"`
	FN        int     `json:"fn" yaml:"fn"`
}

// DefaultGrid returns thresholds 0.10 through 0.89 in steps of 0.01.
func DefaultGrid() []float64 {
	grid := make([]float64, 0, 80)
	for i := 10; i < 90; i++ {
		grid = append(grid, float64(i)/100)
	}
	return grid
}

// Confusion counts decisions at threshold against labels.
func Confusion(probs []float64, labels []int, threshold float64) (tp, fp, tn, fn int) {
	for i, p := range probs {
		pred := Decide(p, threshold)
		switch {
		case pred == 1 && labels[i] == 1:
			tp++
		case pred == 1:
			fp++
		case labels[i] == 1:
			fn++
		default:
			tn++
		}
	}
	return tp, fp, tn, fn
}

// Sweep evaluates each threshold against held-out labels. Undefined ratios
// are reported as 0. Metrics are rounded to 4 places, thresholds to 2.
func Sweep(probs []float64, labels []int, thresholds []float64) ([]SweepPoint, error) {
	if len(probs) != len(labels) {
		return nil, ErrLengthMismatch
	}
	if len(thresholds) == 0 {
		thresholds = DefaultGrid()
	}

	points := make([]SweepPoint, 0, len(thresholds))
	for _, th := range thresholds {
		tp, fp, tn, fn := Confusion(probs, labels, th)
		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		points = append(points, SweepPoint{
			Threshold: round(th, 2),
			Accuracy:  round(ratio(tp+tn, len(probs)), 4),
			Precision: round(precision, 4),
			Recall:    round(recall, 4),
			F1:        round(f1, 4),
			TP:        tp,
			FP:        fp,
			TN:        tn,
			FN:        fn,
		})
	}
	return points, nil
}

// Best returns the point with the highest F1. Ties keep the lower threshold.
func Best(points []SweepPoint) (SweepPoint, bool) {
	if len(points) == 0 {
		return SweepPoint{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.F1 > best.F1 {
			best = p
		}
	}
	return best, true
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
