// Benchmark tool for scoring a product catalog export against Shrike.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/products.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a product catalog CSV (one candidate listing per row)
//   2. Sends each product to Shrike for scoring
//   3. Tallies the recommendation distribution and filter pass rate
//   4. Reports latency and throughput
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CatalogProduct represents a row from the catalog export.
type CatalogProduct struct {
	ID                    string
	Name                  string
	ProductCost           float64
	ShippingCost          float64
	SellingPrice          float64
	Category              string
	WeightGrams           int
	IsFragile             bool
	RequiresSizing        bool
	SupplierRating        float64
	SupplierAgeMonths     int
	SupplierFeedbackCount int
	ShippingDaysMin       int
	ShippingDaysMax       int
	HasFastShipping       bool
	EstimatedCPC          float64
	MonthlySearchVolume   int
	AmazonPrimeExists     bool
	AmazonReviewCount     int
	Source                string
}

// ScoreRequest is the Shrike API request format.
type ScoreRequest struct {
	ID                    string  `json:"id,omitempty"`
	Name                  string  `json:"name"`
	ProductCost           float64 `json:"productCost"`
	ShippingCost          float64 `json:"shippingCost"`
	SellingPrice          float64 `json:"sellingPrice"`
	Category              string  `json:"category"`
	WeightGrams           int     `json:"weightGrams"`
	IsFragile             bool    `json:"isFragile"`
	RequiresSizing        bool    `json:"requiresSizing"`
	SupplierRating        float64 `json:"supplierRating"`
	SupplierAgeMonths     int     `json:"supplierAgeMonths"`
	SupplierFeedbackCount int     `json:"supplierFeedbackCount"`
	ShippingDaysMin       int     `json:"shippingDaysMin"`
	ShippingDaysMax       int     `json:"shippingDaysMax"`
	HasFastShipping       bool    `json:"hasFastShipping"`
	EstimatedCPC          float64 `json:"estimatedCpc"`
	MonthlySearchVolume   int     `json:"monthlySearchVolume"`
	AmazonPrimeExists     bool    `json:"amazonPrimeExists"`
	AmazonReviewCount     int     `json:"amazonReviewCount"`
	Source                string  `json:"source,omitempty"`
}

// ScoreResponse is the Shrike API response format.
type ScoreResponse struct {
	Score struct {
		ProductID        string   `json:"productId"`
		CPCBuffer        float64  `json:"cpcBuffer"`
		PassedFilters    bool     `json:"passedFilters"`
		RejectionReasons []string `json:"rejectionReasons,omitempty"`
		Points           *int     `json:"points,omitempty"`
		RankScore        *float64 `json:"rankScore,omitempty"`
		Recommendation   string   `json:"recommendation"`
	} `json:"score"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	mu              sync.Mutex
	Recommendations map[string]int64
	RejectionCounts map[string]int64

	TotalProcessed int64
	TotalPassed    int64
	TotalRejected  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func (m *Metrics) record(resp *ScoreResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Recommendations[resp.Score.Recommendation]++
	for _, reason := range resp.Score.RejectionReasons {
		m.RejectionCounts[reason]++
	}
}

func main() {
	csvPath := flag.String("csv", "", "Path to product catalog CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Shrike base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum products to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each product result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/products.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           SHRIKE BENCHMARK - Catalog Scoring                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Shrike URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Shrike not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Shrike is running:")
		fmt.Println("  go run cmd/shrike/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Shrike is healthy")

	fmt.Printf("\nReading catalog from %s...\n", *csvPath)
	products, err := readCatalogCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d products\n", len(products))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(products, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
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

func readCatalogCSV(path string, limit int) ([]CatalogProduct, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	get := func(record []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var products []CatalogProduct

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		productCost, _ := strconv.ParseFloat(get(record, "product_cost"), 64)
		shippingCost, _ := strconv.ParseFloat(get(record, "shipping_cost"), 64)
		sellingPrice, _ := strconv.ParseFloat(get(record, "selling_price"), 64)
		weightGrams, _ := strconv.Atoi(get(record, "weight_grams"))
		supplierRating, _ := strconv.ParseFloat(get(record, "supplier_rating"), 64)
		supplierAge, _ := strconv.Atoi(get(record, "supplier_age_months"))
		supplierFeedback, _ := strconv.Atoi(get(record, "supplier_feedback_count"))
		shippingMin, _ := strconv.Atoi(get(record, "shipping_days_min"))
		shippingMax, _ := strconv.Atoi(get(record, "shipping_days_max"))
		estimatedCPC, _ := strconv.ParseFloat(get(record, "estimated_cpc"), 64)
		searchVolume, _ := strconv.Atoi(get(record, "monthly_search_volume"))
		amazonReviews, _ := strconv.Atoi(get(record, "amazon_review_count"))

		p := CatalogProduct{
			ID:                    get(record, "id"),
			Name:                  get(record, "name"),
			ProductCost:           productCost,
			ShippingCost:          shippingCost,
			SellingPrice:          sellingPrice,
			Category:              get(record, "category"),
			WeightGrams:           weightGrams,
			IsFragile:             parseBool(get(record, "is_fragile")),
			RequiresSizing:        parseBool(get(record, "requires_sizing")),
			SupplierRating:        supplierRating,
			SupplierAgeMonths:     supplierAge,
			SupplierFeedbackCount: supplierFeedback,
			ShippingDaysMin:       shippingMin,
			ShippingDaysMax:       shippingMax,
			HasFastShipping:       parseBool(get(record, "has_fast_shipping")),
			EstimatedCPC:          estimatedCPC,
			MonthlySearchVolume:   searchVolume,
			AmazonPrimeExists:     parseBool(get(record, "amazon_prime_exists")),
			AmazonReviewCount:     amazonReviews,
			Source:                get(record, "source"),
		}

		products = append(products, p)

		if limit > 0 && len(products) >= limit {
			break
		}
	}

	return products, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func runBenchmark(products []CatalogProduct, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{
		Recommendations: make(map[string]int64),
		RejectionCounts: make(map[string]int64),
	}

	work := make(chan CatalogProduct, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for p := range work {
				start := time.Now()
				result, err := scoreProduct(client, baseURL, tenantID, p)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", p.Name, err)
					}
					continue
				}

				if result.Score.PassedFilters {
					atomic.AddInt64(&metrics.TotalPassed, 1)
				} else {
					atomic.AddInt64(&metrics.TotalRejected, 1)
				}
				metrics.record(result)

				if verbose {
					name := p.Name
					if len(name) > 30 {
						name = name[:30]
					}
					rank := "-"
					if result.Score.RankScore != nil {
						rank = fmt.Sprintf("%.2f", *result.Score.RankScore)
					}
					fmt.Printf("%-30s | $%8.2f | %-10s | rank %s\n",
						name,
						p.SellingPrice,
						result.Score.Recommendation,
						rank,
					)
				}
			}
		}()
	}

	for _, p := range products {
		work <- p
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreProduct(client *http.Client, baseURL, tenantID string, p CatalogProduct) (*ScoreResponse, error) {
	req := ScoreRequest{
		ID:                    p.ID,
		Name:                  p.Name,
		ProductCost:           p.ProductCost,
		ShippingCost:          p.ShippingCost,
		SellingPrice:          p.SellingPrice,
		Category:              p.Category,
		WeightGrams:           p.WeightGrams,
		IsFragile:             p.IsFragile,
		RequiresSizing:        p.RequiresSizing,
		SupplierRating:        p.SupplierRating,
		SupplierAgeMonths:     p.SupplierAgeMonths,
		SupplierFeedbackCount: p.SupplierFeedbackCount,
		ShippingDaysMin:       p.ShippingDaysMin,
		ShippingDaysMax:       p.ShippingDaysMax,
		HasFastShipping:       p.HasFastShipping,
		EstimatedCPC:          p.EstimatedCPC,
		MonthlySearchVolume:   p.MonthlySearchVolume,
		AmazonPrimeExists:     p.AmazonPrimeExists,
		AmazonReviewCount:     p.AmazonReviewCount,
		Source:                p.Source,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 CATALOG STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Passed Filters:   %d\n", m.TotalPassed)
	fmt.Printf("   Rejected:         %d\n", m.TotalRejected)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	scored := m.TotalPassed + m.TotalRejected
	if scored > 0 {
		passRate := float64(m.TotalPassed) / float64(scored) * 100
		fmt.Printf("   Pass Rate:        %.2f%%\n", passRate)
	}

	fmt.Printf("\n🏷️  RECOMMENDATION DISTRIBUTION\n")
	tiers := make([]string, 0, len(m.Recommendations))
	for tier := range m.Recommendations {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		count := m.Recommendations[tier]
		pct := float64(count) / float64(scored) * 100
		fmt.Printf("   %-12s %6d (%.2f%%)\n", tier, count, pct)
	}

	if len(m.RejectionCounts) > 0 {
		fmt.Printf("\n🚫 TOP REJECTION REASONS\n")
		type reasonCount struct {
			reason string
			count  int64
		}
		reasons := make([]reasonCount, 0, len(m.RejectionCounts))
		for reason, count := range m.RejectionCounts {
			reasons = append(reasons, reasonCount{reason, count})
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i].count > reasons[j].count })
		limit := 10
		if len(reasons) < limit {
			limit = len(reasons)
		}
		for _, rc := range reasons[:limit] {
			fmt.Printf("   %6d  %s\n", rc.count, rc.reason)
		}
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f products/sec\n", tps)
	}

	fmt.Println()
}
