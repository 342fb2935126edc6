package features

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/opensource-finance/churnguard/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func testStats() domain.ReferenceStats {
	return domain.ReferenceStats{
		Bounds: map[string]domain.Bound{
			"monthly_charges":      {Lower: 20, Upper: 115},
			"total_charges":        {Lower: 20, Upper: 8000},
			"avg_call_minutes":     {Lower: 0, Upper: 260},
			"avg_data_usage_gb":    {Lower: 0, Upper: 28},
			"support_ticket_count": {Lower: 0, Upper: 6},
			"late_payments":        {Lower: 0, Upper: 4},
		},
		MedianMonthlyCharges: 70,
	}
}

func TestImpute(t *testing.T) {
	raw := domain.RawAccountRecord{
		TenureMonths:   10,
		MonthlyCharges: 50,
		ContractType:   "  One Year ",
		PaymentMethod:  "Credit Card",
	}

	c := Impute(raw)

	if c.TotalCharges != 500 {
		t.Errorf("expected total_charges 500, got %v", c.TotalCharges)
	}
	if c.SupportTicketCount != 0 || c.AvgResolutionTime != 0 || c.AvgSatisfactionScore != 0 {
		t.Errorf("expected support fields imputed to 0, got %+v", c)
	}
	if c.AvgCallMinutes != 0 || c.AvgDataUsageGB != 0 || c.LatePayments != 0 {
		t.Errorf("expected usage fields imputed to 0, got %+v", c)
	}
	if c.ContractType != "one year" {
		t.Errorf("expected 'one year', got '%s'", c.ContractType)
	}
	if c.PaymentMethod != "credit card" {
		t.Errorf("expected 'credit card', got '%s'", c.PaymentMethod)
	}

	t.Run("KeepsPresentTotal", func(t *testing.T) {
		raw.TotalCharges = fptr(123.5)
		if got := Impute(raw).TotalCharges; got != 123.5 {
			t.Errorf("expected 123.5, got %v", got)
		}
	})
}

func TestCap(t *testing.T) {
	rec := domain.CleanedRecord{
		MonthlyCharges:     200,
		TotalCharges:       5,
		AvgCallMinutes:     100,
		AvgDataUsageGB:     40,
		SupportTicketCount: 9,
		LatePayments:       2,
		AvgResolutionTime:  999,
	}

	Cap(&rec, testStats())

	if rec.MonthlyCharges != 115 {
		t.Errorf("expected monthly_charges capped to 115, got %v", rec.MonthlyCharges)
	}
	if rec.TotalCharges != 20 {
		t.Errorf("expected total_charges floored to 20, got %v", rec.TotalCharges)
	}
	if rec.AvgCallMinutes != 100 {
		t.Errorf("expected avg_call_minutes unchanged, got %v", rec.AvgCallMinutes)
	}
	if rec.AvgDataUsageGB != 28 || rec.SupportTicketCount != 6 {
		t.Errorf("expected usage capped, got %+v", rec)
	}
	if rec.AvgResolutionTime != 999 {
		t.Errorf("expected uncapped field untouched, got %v", rec.AvgResolutionTime)
	}

	t.Run("MissingBoundsNoop", func(t *testing.T) {
		r := domain.CleanedRecord{MonthlyCharges: 1e6}
		Cap(&r, domain.ReferenceStats{})
		if r.MonthlyCharges != 1e6 {
			t.Errorf("expected no capping without bounds, got %v", r.MonthlyCharges)
		}
	})
}

func TestCleanTraining(t *testing.T) {
	raws := []domain.RawAccountRecord{
		{TenureMonths: 1, MonthlyCharges: 30, Churn: iptr(0)},
		{TenureMonths: 2, MonthlyCharges: 40, Churn: iptr(1)},
		{TenureMonths: 3, MonthlyCharges: 50, Churn: iptr(2)},
		{TenureMonths: 4, MonthlyCharges: 60},
	}

	rows := CleanTraining(raws, testStats())

	if len(rows) != 2 {
		t.Fatalf("expected 2 labeled rows, got %d", len(rows))
	}
	if rows[1].Label != 1 || rows[1].Record.TenureMonths != 2 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestTenureBucket(t *testing.T) {
	cases := map[int]string{
		0:    "",
		1:    "0-6",
		6:    "0-6",
		7:    "6-12",
		12:   "6-12",
		13:   "12-24",
		24:   "12-24",
		48:   "24-48",
		49:   "48+",
		1000: "48+",
		1001: "",
	}
	for tenure, want := range cases {
		if got := TenureBucket(tenure); got != want {
			t.Errorf("tenure %d: expected %q, got %q", tenure, want, got)
		}
	}
}

func TestEngineer(t *testing.T) {
	c := domain.CleanedRecord{
		TenureMonths:           0,
		MonthlyCharges:         80,
		TotalCharges:           100,
		SupportTicketCount:     2,
		AvgSatisfactionScore:   3.5,
		AvgCallMinutes:         100,
		AvgDataUsageGB:         10,
		LatePayments:           1,
		HasOnlineSecurity:      1,
		HasTechSupport:         0,
		StreamingServicesCount: 2,
	}

	e := Engineer(c, 70)

	if e.ChargesPerMonth != 100.0 {
		t.Errorf("expected charges_per_month 100.0, got %v", e.ChargesPerMonth)
	}
	if e.HighPriceFlag != 1 {
		t.Errorf("expected high_price_flag 1, got %d", e.HighPriceFlag)
	}
	if math.Abs(e.EngagementScore-46) > 1e-9 {
		t.Errorf("expected engagement_score 46, got %v", e.EngagementScore)
	}
	if e.CXRiskScore != 3 {
		t.Errorf("expected cx_risk_score 3, got %v", e.CXRiskScore)
	}
	if e.PaymentRisk != 1 {
		t.Errorf("expected payment_risk 1, got %d", e.PaymentRisk)
	}
	if e.StickinessScore != 3 {
		t.Errorf("expected stickiness_score 3, got %v", e.StickinessScore)
	}
	if e.TenureBucket != "" {
		t.Errorf("expected no bucket for tenure 0, got %q", e.TenureBucket)
	}

	t.Run("AtMedianIsNotHighPrice", func(t *testing.T) {
		c.MonthlyCharges = 70
		if got := Engineer(c, 70).HighPriceFlag; got != 0 {
			t.Errorf("expected 0 at median, got %d", got)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := Engineer(c, 70)
		second := Engineer(c, 70)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical records, got %+v and %+v", first, second)
		}
	})
}

func TestFitStats(t *testing.T) {
	var raws []domain.RawAccountRecord
	for i := 1; i <= 101; i++ {
		raws = append(raws, domain.RawAccountRecord{
			TenureMonths:   i,
			MonthlyCharges: float64(i),
			Churn:          iptr(i % 2),
		})
	}
	// unlabeled outlier must not move the quantiles
	raws = append(raws, domain.RawAccountRecord{TenureMonths: 1, MonthlyCharges: 1e9})

	stats, err := FitStats(raws)
	if err != nil {
		t.Fatalf("FitStats failed: %v", err)
	}

	if stats.Rows != 101 {
		t.Errorf("expected 101 rows, got %d", stats.Rows)
	}
	if stats.MedianMonthlyCharges != 51 {
		t.Errorf("expected median 51, got %v", stats.MedianMonthlyCharges)
	}
	b := stats.Bounds["monthly_charges"]
	if b.Lower != 2 || b.Upper != 100 {
		t.Errorf("expected bounds [2, 100], got [%v, %v]", b.Lower, b.Upper)
	}
	if _, ok := stats.Bounds["late_payments"]; !ok {
		t.Error("expected bounds for late_payments")
	}

	t.Run("NoRows", func(t *testing.T) {
		_, err := FitStats([]domain.RawAccountRecord{{TenureMonths: 1}})
		if !errors.Is(err, ErrNoTrainingRows) {
			t.Errorf("expected ErrNoTrainingRows, got %v", err)
		}
	})
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	cases := []struct {
		q, want float64
	}{
		{0, 1}, {1, 4}, {0.5, 2.5}, {0.25, 1.75}, {0.99, 3.97},
	}
	for _, tc := range cases {
		if got := Quantile(sorted, tc.q); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("q=%v: expected %v, got %v", tc.q, tc.want, got)
		}
	}
	if Quantile(nil, 0.5) != 0 {
		t.Error("expected 0 for empty input")
	}
}

func TestDeriver(t *testing.T) {
	d := NewDeriver(testStats())
	req := domain.ScoreRequest{
		TenureMonths:       3,
		ContractType:       "month-to-month",
		MonthlyCharges:     110,
		PaymentMethod:      "electronic check",
		SupportTicketCount: 2,
		AvgCallMinutes:     120,
		AvgDataUsageGB:     5,
	}

	t.Run("DeploymentVector", func(t *testing.T) {
		vec, err := d.RequestVector(Deployment, req)
		if err != nil {
			t.Fatalf("RequestVector failed: %v", err)
		}
		if !reflect.DeepEqual(vec.Names(), Deployment.Names()) {
			t.Errorf("expected names %v, got %v", Deployment.Names(), vec.Names())
		}
		f, _ := vec.Lookup("monthly_charges")
		if f.Num != 110 {
			t.Errorf("expected raw monthly_charges 110, got %v", f.Num)
		}
		f, _ = vec.Lookup("contract_type")
		if f.Kind != domain.FeatureCategorical || f.Cat != "month-to-month" {
			t.Errorf("unexpected contract_type feature %+v", f)
		}
	})

	t.Run("TrainingVector", func(t *testing.T) {
		vec, err := d.RequestVector(Training, req)
		if err != nil {
			t.Fatalf("RequestVector failed: %v", err)
		}
		if len(vec) != len(Training.Columns) {
			t.Fatalf("expected %d features, got %d", len(Training.Columns), len(vec))
		}
		f, _ := vec.Lookup("monthly_charges")
		if f.Num != 110 {
			t.Errorf("expected 110 within bounds, got %v", f.Num)
		}
		f, _ = vec.Lookup("tenure_bucket")
		if f.Cat != "0-6" {
			t.Errorf("expected bucket 0-6, got %q", f.Cat)
		}
		f, _ = vec.Lookup("total_charges")
		if f.Num != 330 {
			t.Errorf("expected imputed total 330, got %v", f.Num)
		}
	})

	t.Run("DeriveIdempotent", func(t *testing.T) {
		raw := req.ToRaw()
		if !reflect.DeepEqual(d.Derive(raw), d.Derive(raw)) {
			t.Error("expected identical derivations")
		}
	})
}

func TestCheckContract(t *testing.T) {
	t.Run("Match", func(t *testing.T) {
		if err := CheckContract(Deployment, Deployment.Names()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("OrderMatters", func(t *testing.T) {
		names := Deployment.Names()
		names[0], names[1] = names[1], names[0]
		err := CheckContract(Deployment, names)
		var cerr *domain.ContractError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ContractError, got %v", err)
		}
		if cerr.Schema != SchemaDeployment {
			t.Errorf("expected schema deployment, got %s", cerr.Schema)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		if err := CheckContract(Training, Deployment.Names()); err == nil {
			t.Error("expected error for training schema vs deployment features")
		}
	})
}

func TestSchemaByName(t *testing.T) {
	if s, err := SchemaByName("training"); err != nil || s.Name != SchemaTraining {
		t.Errorf("expected training schema, got %v %v", s.Name, err)
	}
	if _, err := SchemaByName("nope"); err == nil {
		t.Error("expected error for unknown schema")
	}
}
