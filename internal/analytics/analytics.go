// Package analytics computes aggregate views over a user's transactions,
// reading through an ephemeral cache.
package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/cache"
	"finance-tracker/internal/models"
)

// Store is the slice of the transaction store the aggregator reads.
type Store interface {
	ListTransactionsForRange(userID string, from, to *time.Time, typ models.TransactionType) ([]models.Transaction, error)
	RecentTransactions(userID string, limit int) ([]models.Transaction, error)
}

// Default TTLs per operation, matching how long each view stays useful.
const (
	SummaryTTL = 5 * time.Minute
	TrendsTTL  = time.Hour
)

// Aggregator reads the transaction store and caches computed aggregates.
type Aggregator struct {
	store Store
	cache cache.Cache
	now   func() time.Time
}

// New creates an aggregator backed by the given store and cache.
func New(store Store, c cache.Cache) *Aggregator {
	return &Aggregator{store: store, cache: c, now: time.Now}
}

// Summary holds total income, total expense, and their difference.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryStat is a per-(category, type) total with a record count.
type CategoryStat struct {
	Category string                 `json:"category"`
	Type     models.TransactionType `json:"type"`
	Total    decimal.Decimal        `json:"total"`
	Count    int                    `json:"count"`
}

// TrendPoint is an income or expense sum for one calendar month.
type TrendPoint struct {
	Year  int                    `json:"year"`
	Month int                    `json:"month"`
	Type  models.TransactionType `json:"type"`
	Total decimal.Decimal        `json:"total"`
}

// MonthTotals is one bucket of the trailing-months series in an Overview.
type MonthTotals struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Overview is the dashboard aggregate: lifetime totals, a breakdown over
// the closed category set, and the trailing six months.
type Overview struct {
	TotalIncome       decimal.Decimal            `json:"totalIncome"`
	TotalExpense      decimal.Decimal            `json:"totalExpense"`
	Balance           decimal.Decimal            `json:"balance"`
	CategoryBreakdown map[string]decimal.Decimal `json:"categoryBreakdown"`
	Last6Months       []MonthTotals              `json:"last6Months"`
}

func (a *Aggregator) keyPrefix(userID string) string {
	return "analytics:" + userID + ":"
}

// Invalidate drops every cached aggregate for userID. Callers must invoke
// this after any transaction mutation, before responding.
func (a *Aggregator) Invalidate(userID string) {
	a.cache.DeletePrefix(a.keyPrefix(userID))
}

func timeKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02T15:04:05")
}

// Summary computes income/expense totals for userID, optionally bounded
// by a date range.
func (a *Aggregator) Summary(userID string, from, to *time.Time) (*Summary, error) {
	key := fmt.Sprintf("%ssummary:%s:%s", a.keyPrefix(userID), timeKey(from), timeKey(to))
	if v, ok := a.cache.Get(key); ok {
		return v.(*Summary), nil
	}

	transactions, err := a.store.ListTransactionsForRange(userID, from, to, "")
	if err != nil {
		return nil, err
	}

	s := &Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range transactions {
		switch t.Type {
		case models.TypeIncome:
			s.Income = s.Income.Add(t.Amount)
		case models.TypeExpense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)

	a.cache.Set(key, s, SummaryTTL)
	return s, nil
}

// Categories computes per-(category, type) totals and counts, sorted by
// total descending.
func (a *Aggregator) Categories(userID string, from, to *time.Time, typ models.TransactionType) ([]CategoryStat, error) {
	key := fmt.Sprintf("%scategories:%s:%s:%s", a.keyPrefix(userID), timeKey(from), timeKey(to), typ)
	if v, ok := a.cache.Get(key); ok {
		return v.([]CategoryStat), nil
	}

	transactions, err := a.store.ListTransactionsForRange(userID, from, to, typ)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		category string
		typ      models.TransactionType
	}
	groups := make(map[groupKey]*CategoryStat)
	var order []groupKey
	for _, t := range transactions {
		k := groupKey{t.Category, t.Type}
		g, ok := groups[k]
		if !ok {
			g = &CategoryStat{Category: t.Category, Type: t.Type, Total: decimal.Zero}
			groups[k] = g
			order = append(order, k)
		}
		g.Total = g.Total.Add(t.Amount)
		g.Count++
	}

	stats := make([]CategoryStat, 0, len(order))
	for _, k := range order {
		stats = append(stats, *groups[k])
	}
	// Insertion sort by total descending; the group count is tiny.
	for i := 1; i < len(stats); i++ {
		for j := i; j > 0 && stats[j].Total.GreaterThan(stats[j-1].Total); j-- {
			stats[j], stats[j-1] = stats[j-1], stats[j]
		}
	}

	a.cache.Set(key, stats, SummaryTTL)
	return stats, nil
}

// Trends computes per-(year, month, type) sums over the trailing months,
// in chronological order.
func (a *Aggregator) Trends(userID string, months int) ([]TrendPoint, error) {
	if months < 1 {
		months = 6
	}
	key := fmt.Sprintf("%strends:%d", a.keyPrefix(userID), months)
	if v, ok := a.cache.Get(key); ok {
		return v.([]TrendPoint), nil
	}

	from := a.now().AddDate(0, -months, 0)
	transactions, err := a.store.ListTransactionsForRange(userID, &from, nil, "")
	if err != nil {
		return nil, err
	}

	type bucket struct {
		year, month int
		typ         models.TransactionType
	}
	sums := make(map[bucket]decimal.Decimal)
	var order []bucket
	for _, t := range transactions {
		b := bucket{t.Date.Year(), int(t.Date.Month()), t.Type}
		if _, ok := sums[b]; !ok {
			order = append(order, b)
		}
		sums[b] = sums[b].Add(t.Amount)
	}

	points := make([]TrendPoint, 0, len(order))
	for _, b := range order {
		points = append(points, TrendPoint{Year: b.year, Month: b.month, Type: b.typ, Total: sums[b]})
	}
	// Input is date-ordered, so buckets already arrive chronologically;
	// tie-break same-month income/expense rows by type for stable output.
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && trendLess(points[j], points[j-1]); j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}

	a.cache.Set(key, points, TrendsTTL)
	return points, nil
}

func trendLess(a, b TrendPoint) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Type < b.Type
}

// Overview computes the dashboard aggregate for userID. The category
// breakdown covers the whole closed category set; a category with no
// transactions reports zero rather than being absent.
func (a *Aggregator) Overview(userID string) (*Overview, error) {
	key := a.keyPrefix(userID) + "overview"
	if v, ok := a.cache.Get(key); ok {
		return v.(*Overview), nil
	}

	transactions, err := a.store.ListTransactionsForRange(userID, nil, nil, "")
	if err != nil {
		return nil, err
	}

	o := &Overview{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		CategoryBreakdown: make(map[string]decimal.Decimal, len(models.Categories)),
	}
	for _, c := range models.Categories {
		o.CategoryBreakdown[c] = decimal.Zero
	}

	now := a.now()
	// Anchor at the first of the month so day-of-month overflow cannot
	// collapse two buckets into one.
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthIndex := make(map[string]int, 6)
	o.Last6Months = make([]MonthTotals, 0, 6)
	for i := 5; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		label := m.Format("2006-01")
		monthIndex[label] = len(o.Last6Months)
		o.Last6Months = append(o.Last6Months, MonthTotals{Month: label, Income: decimal.Zero, Expense: decimal.Zero})
	}

	for _, t := range transactions {
		switch t.Type {
		case models.TypeIncome:
			o.TotalIncome = o.TotalIncome.Add(t.Amount)
		case models.TypeExpense:
			o.TotalExpense = o.TotalExpense.Add(t.Amount)
		}
		if cur, ok := o.CategoryBreakdown[t.Category]; ok {
			o.CategoryBreakdown[t.Category] = cur.Add(t.Amount)
		}
		if idx, ok := monthIndex[t.Date.Format("2006-01")]; ok {
			if t.Type == models.TypeIncome {
				o.Last6Months[idx].Income = o.Last6Months[idx].Income.Add(t.Amount)
			} else {
				o.Last6Months[idx].Expense = o.Last6Months[idx].Expense.Add(t.Amount)
			}
		}
	}
	o.Balance = o.TotalIncome.Sub(o.TotalExpense)

	a.cache.Set(key, o, SummaryTTL)
	return o, nil
}

// Recent returns a user's latest transactions. Not cached; the listing is
// cheap and staleness here would be visible immediately after a create.
func (a *Aggregator) Recent(userID string, limit int) ([]models.Transaction, error) {
	return a.store.RecentTransactions(userID, limit)
}
