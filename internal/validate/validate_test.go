package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/churnguard/internal/domain"
)

func validRequest() domain.ScoreRequest {
	return domain.ScoreRequest{
		TenureMonths:       3,
		ContractType:       "month-to-month",
		MonthlyCharges:     110,
		PaymentMethod:      "electronic check",
		SupportTicketCount: 2,
		AvgCallMinutes:     120,
		AvgDataUsageGB:     5,
	}
}

func validValues() map[string]string {
	return map[string]string{
		"tenure_months":        "3",
		"contract_type":        "month-to-month",
		"monthly_charges":      "110",
		"payment_method":       "electronic check",
		"support_ticket_count": "2",
		"avg_call_minutes":     "120",
		"avg_data_usage_gb":    "5",
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Field
}

func TestRequest(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, Request(validRequest()))
	})

	t.Run("TenureBoundaries", func(t *testing.T) {
		for _, tc := range []struct {
			tenure int
			ok     bool
		}{
			{0, false}, {1, true}, {75, true}, {76, false},
		} {
			req := validRequest()
			req.TenureMonths = tc.tenure
			err := Request(req)
			if tc.ok {
				assert.NoError(t, err, "tenure %d", tc.tenure)
				continue
			}
			assert.Equal(t, FieldTenureMonths, fieldOf(t, err), "tenure %d", tc.tenure)
		}
	})

	t.Run("DataUsageUpperBound", func(t *testing.T) {
		req := validRequest()
		req.AvgDataUsageGB = 30
		assert.NoError(t, Request(req))

		req.AvgDataUsageGB = 30.01
		err := Request(req)
		assert.Equal(t, FieldAvgDataUsageGB, fieldOf(t, err))
		assert.Contains(t, err.Error(), "avg_data_usage_gb")
		assert.Contains(t, err.Error(), "30.01")
	})

	t.Run("ContractTypeCaseSensitive", func(t *testing.T) {
		req := validRequest()
		req.ContractType = "Month-To-Month"
		err := Request(req)
		assert.Equal(t, FieldContractType, fieldOf(t, err))
		assert.Contains(t, err.Error(), "must be one of")
	})

	t.Run("ContractTypeNotTrimmed", func(t *testing.T) {
		req := validRequest()
		req.ContractType = " one year"
		assert.Equal(t, FieldContractType, fieldOf(t, Request(req)))
	})

	t.Run("PaymentMethod", func(t *testing.T) {
		req := validRequest()
		req.PaymentMethod = "bitcoin"
		assert.Equal(t, FieldPaymentMethod, fieldOf(t, Request(req)))
	})

	t.Run("FirstFailureWins", func(t *testing.T) {
		req := validRequest()
		req.MonthlyCharges = 5
		req.ContractType = "weekly"
		assert.Equal(t, FieldMonthlyCharges, fieldOf(t, Request(req)))
	})

	t.Run("OtherRanges", func(t *testing.T) {
		cases := map[string]func(*domain.ScoreRequest){
			FieldMonthlyCharges:     func(r *domain.ScoreRequest) { r.MonthlyCharges = 119.5 },
			FieldSupportTicketCount: func(r *domain.ScoreRequest) { r.SupportTicketCount = 8 },
			FieldAvgCallMinutes:     func(r *domain.ScoreRequest) { r.AvgCallMinutes = -1 },
		}
		for field, mutate := range cases {
			req := validRequest()
			mutate(&req)
			assert.Equal(t, field, fieldOf(t, Request(req)))
		}
	})
}

func TestParseRequest(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		req, err := ParseRequest(validValues())
		require.NoError(t, err)
		assert.Equal(t, validRequest(), req)
	})

	t.Run("MissingField", func(t *testing.T) {
		values := validValues()
		delete(values, "payment_method")
		_, err := ParseRequest(values)
		assert.Equal(t, FieldPaymentMethod, fieldOf(t, err))
		assert.Contains(t, err.Error(), "is required")
	})

	t.Run("NonNumeric", func(t *testing.T) {
		values := validValues()
		values["avg_call_minutes"] = "lots"
		_, err := ParseRequest(values)
		assert.Equal(t, FieldAvgCallMinutes, fieldOf(t, err))
	})

	t.Run("NonInteger", func(t *testing.T) {
		values := validValues()
		values["tenure_months"] = "3.5"
		_, err := ParseRequest(values)
		assert.Equal(t, FieldTenureMonths, fieldOf(t, err))
		assert.Contains(t, err.Error(), "integer")
	})

	t.Run("NaN", func(t *testing.T) {
		values := validValues()
		values["monthly_charges"] = "NaN"
		_, err := ParseRequest(values)
		assert.Equal(t, FieldMonthlyCharges, fieldOf(t, err))
	})

	t.Run("OutOfRange", func(t *testing.T) {
		values := validValues()
		values["avg_data_usage_gb"] = "30.01"
		_, err := ParseRequest(values)
		assert.Equal(t, FieldAvgDataUsageGB, fieldOf(t, err))
	})
}

func TestRecord(t *testing.T) {
	cleaned := func() domain.CleanedRecord {
		return domain.CleanedRecord{
			TenureMonths:       3,
			ContractType:       "month-to-month",
			MonthlyCharges:     110,
			PaymentMethod:      "electronic check",
			SupportTicketCount: 2,
			AvgCallMinutes:     120,
			AvgDataUsageGB:     5,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		req, err := Record(cleaned())
		require.NoError(t, err)
		assert.Equal(t, validRequest(), req)
	})

	t.Run("FractionalTicketsRejected", func(t *testing.T) {
		c := cleaned()
		c.SupportTicketCount = 2.5
		_, err := Record(c)
		assert.Equal(t, FieldSupportTicketCount, fieldOf(t, err))
		assert.Contains(t, err.Error(), "integer")
	})

	t.Run("OutOfRange", func(t *testing.T) {
		c := cleaned()
		c.MonthlyCharges = 119.5
		_, err := Record(c)
		assert.Equal(t, FieldMonthlyCharges, fieldOf(t, err))
	})

	t.Run("UnknownContract", func(t *testing.T) {
		c := cleaned()
		c.ContractType = "prepaid"
		_, err := Record(c)
		assert.Equal(t, FieldContractType, fieldOf(t, err))
	})
}
