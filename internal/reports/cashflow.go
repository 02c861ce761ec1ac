// Package reports aggregates committed sales and collected installment
// payments into cash flow views. Results are cached in Redis under a global
// version that write paths bump.
package reports

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vendaflow/vendaflow/internal/shared"
)

const dayFormat = "2006-01-02"

// CashflowPoint captures one day of money in.
type CashflowPoint struct {
	Day               string  `json:"day"`
	SaleIncome        float64 `json:"sale_income"`
	InstallmentIncome float64 `json:"installment_income"`
	Total             float64 `json:"total"`
}

// ExpectedPoint captures one day of projected installment collections.
type ExpectedPoint struct {
	Day      string  `json:"day"`
	Expected float64 `json:"expected"`
}

// CashflowReport is the full report for a date range.
type CashflowReport struct {
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Points      []CashflowPoint `json:"points"`
	Expected    []ExpectedPoint `json:"expected"`
	TotalIncome float64         `json:"total_income"`
}

// RepositoryPort exposes the aggregation queries the service relies on.
type RepositoryPort interface {
	DailySaleIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error)
	DailyInstallmentIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error)
	DailyExpectedIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error)
}

// Service coordinates report query execution with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService wires a RepositoryPort with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Cashflow computes the daily cash flow across the range. The three source
// queries run concurrently.
func (s *Service) Cashflow(ctx context.Context, from, to time.Time) (*CashflowReport, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		var saleIncome, installmentIncome, expected []DailyAmount

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			saleIncome, err = s.repo.DailySaleIncome(gctx, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			installmentIncome, err = s.repo.DailyInstallmentIncome(gctx, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			expected, err = s.repo.DailyExpectedIncome(gctx, from, to)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, shared.AsPersistence(err)
		}
		return buildReport(from, to, saleIncome, installmentIncome, expected), nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.(*CashflowReport), nil
	}

	key, err := s.cache.BuildKey(ctx, "reports", "cashflow", dayToken(from), dayToken(to))
	if err != nil {
		return nil, err
	}
	var report CashflowReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

func dayToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dayFormat)
}

func buildReport(from, to time.Time, saleIncome, installmentIncome, expected []DailyAmount) *CashflowReport {
	byDay := make(map[string]*CashflowPoint)
	for _, d := range saleIncome {
		point := pointFor(byDay, d.Day)
		point.SaleIncome += d.Amount
	}
	for _, d := range installmentIncome {
		point := pointFor(byDay, d.Day)
		point.InstallmentIncome += d.Amount
	}

	report := &CashflowReport{From: dayToken(from), To: dayToken(to)}
	if from.IsZero() {
		report.From = ""
	}
	if to.IsZero() {
		report.To = ""
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		point := byDay[day]
		point.Total = point.SaleIncome + point.InstallmentIncome
		report.Points = append(report.Points, *point)
		report.TotalIncome += point.Total
	}

	for _, d := range expected {
		report.Expected = append(report.Expected, ExpectedPoint{
			Day:      d.Day.Format(dayFormat),
			Expected: d.Amount,
		})
	}
	sort.Slice(report.Expected, func(i, j int) bool { return report.Expected[i].Day < report.Expected[j].Day })
	return report
}

func pointFor(byDay map[string]*CashflowPoint, day time.Time) *CashflowPoint {
	key := day.Format(dayFormat)
	point, ok := byDay[key]
	if !ok {
		point = &CashflowPoint{Day: key}
		byDay[key] = point
	}
	return point
}
