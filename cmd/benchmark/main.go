// Benchmark tool for replaying labeled customer data against churnguard.
//
// Usage:
//
//	go run ./cmd/benchmark -csv data/test.csv -url http://localhost:8000
//
// This tool:
//  1. Reads labeled accounts (churn column) from a CSV
//  2. Sends each account to POST /predict
//  3. Compares the served decision with the actual churn label
//  4. Prints precision, recall, F1-score, tier mix and latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/churnguard/internal/dataset"
	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
)

// Account is one labeled row ready to send.
type Account struct {
	CustomerID string
	Request    domain.ScoreRequest
	Churned    bool
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Churner flagged
	FalsePositives int64 // Retained customer flagged
	TrueNegatives  int64 // Retained customer not flagged
	FalseNegatives int64 // Churner missed

	TotalProcessed int64
	TotalChurned   int64
	TotalRetained  int64
	TotalRejected  int64 // 400 from the validator
	TotalErrors    int64

	High, Medium, Low int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled account CSV")
	baseURL := flag.String("url", "http://localhost:8000", "churnguard base URL")
	limit := flag.Int("limit", 10000, "Maximum accounts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each account result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/accounts.csv [-url http://localhost:8000]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("CHURNGUARD BENCHMARK")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("URL:         %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: churnguard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure churnguard is running:")
		fmt.Println("  go run ./cmd/churnguard")
		os.Exit(1)
	}
	fmt.Println("churnguard is healthy")

	accounts, err := readAccounts(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		fmt.Println("ERROR: no labeled accounts in CSV")
		os.Exit(1)
	}
	fmt.Printf("Loaded %d labeled accounts\n", len(accounts))

	startTime := time.Now()
	metrics := runBenchmark(accounts, *baseURL, *workers, *verbose)
	printResults(metrics, time.Since(startTime))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readAccounts keeps labeled rows only and normalizes them the way the
// training pipeline does, so the served validator sees canonical values.
func readAccounts(path string, limit int) ([]Account, error) {
	records, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var accounts []Account
	for _, raw := range records {
		if raw.Churn == nil || (*raw.Churn != 0 && *raw.Churn != 1) {
			continue
		}
		c := features.Impute(raw)
		accounts = append(accounts, Account{
			CustomerID: raw.CustomerID,
			Churned:    *raw.Churn == 1,
			Request: domain.ScoreRequest{
				TenureMonths:       c.TenureMonths,
				ContractType:       c.ContractType,
				MonthlyCharges:     c.MonthlyCharges,
				PaymentMethod:      c.PaymentMethod,
				SupportTicketCount: int(math.Round(c.SupportTicketCount)),
				AvgCallMinutes:     c.AvgCallMinutes,
				AvgDataUsageGB:     c.AvgDataUsageGB,
			},
		})
		if limit > 0 && len(accounts) >= limit {
			break
		}
	}
	return accounts, nil
}

func runBenchmark(accounts []Account, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Account, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for acct := range work {
				start := time.Now()
				result, status, err := predict(client, baseURL, acct)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if status == http.StatusBadRequest {
					atomic.AddInt64(&metrics.TotalRejected, 1)
					if verbose {
						fmt.Printf("REJECTED: %s -> %v\n", acct.CustomerID, err)
					}
					continue
				}
				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", acct.CustomerID, err)
					}
					continue
				}

				if acct.Churned {
					atomic.AddInt64(&metrics.TotalChurned, 1)
				} else {
					atomic.AddInt64(&metrics.TotalRetained, 1)
				}

				switch result.Risk {
				case domain.RiskHigh:
					atomic.AddInt64(&metrics.High, 1)
				case domain.RiskMedium:
					atomic.AddInt64(&metrics.Medium, 1)
				default:
					atomic.AddInt64(&metrics.Low, 1)
				}

				predicted := result.Decision == 1
				actual := acct.Churned

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					mark := "ok"
					if predicted != actual {
						mark = "xx"
					}
					fmt.Printf("%s %-12s | Tenure: %3d | Contract: %-14s | Churned: %-5v | %6.2f%% %-6s\n",
						mark,
						acct.CustomerID,
						acct.Request.TenureMonths,
						acct.Request.ContractType,
						acct.Churned,
						result.Probability,
						result.Risk,
					)
				}
			}
		}()
	}

	for _, acct := range accounts {
		work <- acct
	}
	close(work)

	wg.Wait()

	return metrics
}

func predict(client *http.Client, baseURL string, acct Account) (*domain.PredictionResponse, int, error) {
	body, err := json.Marshal(acct.Request)
	if err != nil {
		return nil, 0, err
	}

	resp, err := client.Post(baseURL+"/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var result domain.PredictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, err
	}
	return &result, resp.StatusCode, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Churned:          %d\n", m.TotalChurned)
	fmt.Printf("   Retained:         %d\n", m.TotalRetained)
	fmt.Printf("   Rejected (400):   %d\n", m.TotalRejected)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                     Predicted")
	fmt.Println("                  churn     stay")
	fmt.Printf("   Actual churn  %8d %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("          stay   %8d %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDECISION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged customers, how many churned)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of churners, how many were flagged)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)

	if total > 0 {
		fmt.Printf("\nRISK TIERS\n")
		fmt.Printf("   HIGH:    %d (%.2f%%)\n", m.High, 100*float64(m.High)/float64(total))
		fmt.Printf("   MEDIUM:  %d (%.2f%%)\n", m.Medium, 100*float64(m.Medium)/float64(total))
		fmt.Printf("   LOW:     %d (%.2f%%)\n", m.Low, 100*float64(m.Low)/float64(total))
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}
