package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go-bookstore-pos/internal/cache"
	"go-bookstore-pos/internal/metrics"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookPerformance struct {
	BookID        uint            `json:"book_id"`
	Title         string          `json:"title"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	TotalSold     int             `json:"total_sold"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
}

type CategoryRevenue struct {
	Category     string          `json:"category"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type DailyRevenue struct {
	SaleDate     string          `json:"sale_date"`
	DailyRevenue decimal.Decimal `json:"daily_revenue"`
}

type MonthlyRevenue struct {
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type BookDecline struct {
	BookID   uint   `json:"book_id"`
	Title    string `json:"title"`
	QtyCur   int    `json:"qty_cur"`
	QtyPrev  int    `json:"qty_prev"`
	DeltaQty int    `json:"delta_qty"`
}

type TxMetrics struct {
	AvgItems    float64 `json:"avg_items"`
	BusiestHour *int    `json:"busiest_hour"`
	BusiestDay  *string `json:"busiest_day"`
}

type ReportSummary struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	BestsellingBook   *string         `json:"bestselling_book"`
	DominantCategory  *string         `json:"dominant_category"`
	AvgTxValue        decimal.Decimal `json:"avg_tx_value"`
}

// ReportService serves read-only aggregates over committed sales. Buckets
// are computed in the shop's zone.
type ReportService interface {
	Performance(ctx context.Context) ([]BookPerformance, error)
	CategoriesByRevenue(ctx context.Context) ([]CategoryRevenue, error)
	SalesTrend(ctx context.Context) ([]DailyRevenue, error)
	MonthlyRevenue(ctx context.Context, year int) ([]MonthlyRevenue, error)
	TopDeclineBooks(ctx context.Context, year, month int) ([]BookDecline, error)
	PurchaseFrequency(ctx context.Context) ([]repository.CustomerFrequency, error)
	TxMetrics(ctx context.Context) (*TxMetrics, error)
	Summary(ctx context.Context, startDate, endDate string) (*ReportSummary, error)
	// AprioriInsights mines bundling rules from multi-item sales. Zero
	// thresholds mean the defaults (5% support, 30% confidence).
	AprioriInsights(ctx context.Context, minSupport, minConfidence float64) (*AprioriInsights, error)
}

type reportService struct {
	stores  *repository.Stores
	cache   cache.Cache
	metrics *metrics.Metrics
	ttl     time.Duration
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

func NewReportService(stores *repository.Stores, c cache.Cache, m *metrics.Metrics, ttl time.Duration, loc *time.Location, logger *zap.Logger) ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &reportService{
		stores:  stores,
		cache:   c,
		metrics: m,
		ttl:     ttl,
		loc:     loc,
		logger:  logger.Named("report"),
		now:     time.Now,
	}
}

// cached returns the value under key or computes and stores it. Cache
// failures fall through to load. A result whose load overlapped an
// invalidation is returned but not stored.
func cached[T any](ctx context.Context, s *reportService, key string, load func() (T, error)) (T, error) {
	key = "report:" + key
	var out T
	var gen uint64
	caching := s.cache != nil && s.ttl > 0
	if caching {
		gen = s.cache.Generation()
		if err := cache.GetJSON(ctx, s.cache, key, &out); err == nil {
			s.metrics.RecordCache(true)
			return out, nil
		}
		s.metrics.RecordCache(false)
	}

	out, err := load()
	if err != nil {
		return out, apperror.EnsureTyped(err, "Gagal mengambil data laporan")
	}
	if caching {
		stored, err := cache.SetJSONIf(ctx, s.cache, key, out, s.ttl, gen)
		if err != nil {
			s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
		} else if !stored {
			s.logger.Debug("report invalidated while loading, not cached", zap.String("key", key))
		}
	}
	return out, nil
}

func (s *reportService) Performance(ctx context.Context) ([]BookPerformance, error) {
	return cached(ctx, s, "performance", func() ([]BookPerformance, error) {
		lines, err := s.stores.Transactions.ListSaleLines(repository.TransactionFilter{})
		if err != nil {
			return nil, err
		}

		byBook := map[uint]*BookPerformance{}
		var order []uint
		for _, l := range lines {
			if l.BookID == nil || l.Title == nil {
				continue
			}
			p, ok := byBook[*l.BookID]
			if !ok {
				p = &BookPerformance{BookID: *l.BookID, Title: *l.Title, PurchasePrice: l.PurchasePrice.Decimal}
				byBook[*l.BookID] = p
				order = append(order, *l.BookID)
			}
			qty := decimal.NewFromInt(int64(l.Quantity))
			p.TotalSold += l.Quantity
			p.TotalRevenue = p.TotalRevenue.Add(l.PriceAtSale.Mul(qty))
			p.TotalProfit = p.TotalProfit.Add(l.PriceAtSale.Sub(l.PurchasePrice.Decimal).Mul(qty))
		}

		out := make([]BookPerformance, 0, len(order))
		for _, id := range order {
			out = append(out, *byBook[id])
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalProfit.GreaterThan(out[j].TotalProfit) })
		if len(out) > 10 {
			out = out[:10]
		}
		return out, nil
	})
}

func (s *reportService) CategoriesByRevenue(ctx context.Context) ([]CategoryRevenue, error) {
	return cached(ctx, s, "categories-by-revenue", func() ([]CategoryRevenue, error) {
		lines, err := s.stores.Transactions.ListSaleLines(repository.TransactionFilter{})
		if err != nil {
			return nil, err
		}
		return revenueByCategory(lines), nil
	})
}

func (s *reportService) SalesTrend(ctx context.Context) ([]DailyRevenue, error) {
	return cached(ctx, s, "sales-trend", func() ([]DailyRevenue, error) {
		today := startOfDay(s.now().In(s.loc))
		start := today.AddDate(0, 0, -6)
		end := today.AddDate(0, 0, 1)
		headers, err := s.stores.Reports.Headers(&start, &end)
		if err != nil {
			return nil, err
		}

		sums := map[string]decimal.Decimal{}
		for _, h := range headers {
			day := h.TransactionDate.In(s.loc).Format("2006-01-02")
			sums[day] = sums[day].Add(h.TotalAmount)
		}
		out := make([]DailyRevenue, 0, 7)
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			day := d.Format("2006-01-02")
			out = append(out, DailyRevenue{SaleDate: day, DailyRevenue: sums[day]})
		}
		return out, nil
	})
}

func (s *reportService) MonthlyRevenue(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	if year == 0 {
		year = s.now().In(s.loc).Year()
	}
	return cached(ctx, s, fmt.Sprintf("monthly-revenue:%d", year), func() ([]MonthlyRevenue, error) {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
		end := start.AddDate(1, 0, 0)
		headers, err := s.stores.Reports.Headers(&start, &end)
		if err != nil {
			return nil, err
		}

		out := make([]MonthlyRevenue, 12)
		for i := range out {
			out[i].Month = i + 1
		}
		for _, h := range headers {
			m := int(h.TransactionDate.In(s.loc).Month())
			out[m-1].Revenue = out[m-1].Revenue.Add(h.TotalAmount)
		}
		return out, nil
	})
}

// TopDeclineBooks ranks books by unit sales of month minus the month before
func (s *reportService) TopDeclineBooks(ctx context.Context, year, month int) ([]BookDecline, error) {
	now := s.now().In(s.loc)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, apperror.Validation("month harus antara 1 dan 12")
	}

	return cached(ctx, s, fmt.Sprintf("top-decline-books:%d-%02d", year, month), func() ([]BookDecline, error) {
		cur := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
		prev := cur.AddDate(0, -1, 0)
		next := cur.AddDate(0, 1, 0)
		lines, err := s.stores.Transactions.ListSaleLines(repository.TransactionFilter{StartDate: &prev, EndDate: &next})
		if err != nil {
			return nil, err
		}

		byBook := map[uint]*BookDecline{}
		var order []uint
		for _, l := range lines {
			if l.BookID == nil || l.Title == nil {
				continue
			}
			d, ok := byBook[*l.BookID]
			if !ok {
				d = &BookDecline{BookID: *l.BookID, Title: *l.Title}
				byBook[*l.BookID] = d
				order = append(order, *l.BookID)
			}
			if l.TransactionDate.Before(cur) {
				d.QtyPrev += l.Quantity
			} else {
				d.QtyCur += l.Quantity
			}
		}

		out := make([]BookDecline, 0, len(order))
		for _, id := range order {
			d := byBook[id]
			d.DeltaQty = d.QtyCur - d.QtyPrev
			out = append(out, *d)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].DeltaQty < out[j].DeltaQty })
		if len(out) > 10 {
			out = out[:10]
		}
		return out, nil
	})
}

func (s *reportService) PurchaseFrequency(ctx context.Context) ([]repository.CustomerFrequency, error) {
	return cached(ctx, s, "purchase-frequency", func() ([]repository.CustomerFrequency, error) {
		rows, err := s.stores.Reports.PurchaseFrequency()
		if rows == nil {
			rows = []repository.CustomerFrequency{}
		}
		return rows, err
	})
}

func (s *reportService) TxMetrics(ctx context.Context) (*TxMetrics, error) {
	return cached(ctx, s, "tx-metrics", func() (*TxMetrics, error) {
		headers, err := s.stores.Reports.Headers(nil, nil)
		if err != nil {
			return nil, err
		}

		out := &TxMetrics{}
		var items, withItems int
		hours := map[int]int{}
		days := map[time.Weekday]int{}
		for _, h := range headers {
			if h.ItemCount > 0 {
				items += h.ItemCount
				withItems++
			}
			local := h.TransactionDate.In(s.loc)
			hours[local.Hour()]++
			days[local.Weekday()]++
		}
		if withItems > 0 {
			out.AvgItems = float64(items) / float64(withItems)
		}
		if len(headers) > 0 {
			hour := busiest(hours)
			day := busiest(days).String()
			out.BusiestHour = &hour
			out.BusiestDay = &day
		}
		return out, nil
	})
}

func (s *reportService) Summary(ctx context.Context, startDate, endDate string) (*ReportSummary, error) {
	start, err := dayStart(startDate, s.loc, 0)
	if err != nil {
		return nil, err
	}
	end, err := dayStart(endDate, s.loc, 1)
	if err != nil {
		return nil, err
	}

	key := "summary:" + strings.TrimSpace(startDate) + ":" + strings.TrimSpace(endDate)
	return cached(ctx, s, key, func() (*ReportSummary, error) {
		headers, err := s.stores.Reports.Headers(start, end)
		if err != nil {
			return nil, err
		}
		lines, err := s.stores.Transactions.ListSaleLines(repository.TransactionFilter{StartDate: start, EndDate: end})
		if err != nil {
			return nil, err
		}

		out := &ReportSummary{TotalTransactions: len(headers)}
		for _, h := range headers {
			out.TotalRevenue = out.TotalRevenue.Add(h.TotalAmount)
		}
		if out.TotalTransactions > 0 {
			out.AvgTxValue = out.TotalRevenue.Div(decimal.NewFromInt(int64(out.TotalTransactions))).Round(2)
		}

		profit := map[string]decimal.Decimal{}
		var titles []string
		for _, l := range lines {
			if l.BookID == nil || l.Title == nil {
				continue
			}
			if _, ok := profit[*l.Title]; !ok {
				titles = append(titles, *l.Title)
			}
			qty := decimal.NewFromInt(int64(l.Quantity))
			profit[*l.Title] = profit[*l.Title].Add(l.PriceAtSale.Sub(l.PurchasePrice.Decimal).Mul(qty))
		}
		for _, t := range titles {
			if out.BestsellingBook == nil || profit[t].GreaterThan(profit[*out.BestsellingBook]) {
				title := t
				out.BestsellingBook = &title
			}
		}
		if cats := revenueByCategory(lines); len(cats) > 0 {
			out.DominantCategory = &cats[0].Category
		}
		return out, nil
	})
}

// revenueByCategory sums book lines per category, highest first
func (s *reportService) AprioriInsights(ctx context.Context, minSupport, minConfidence float64) (*AprioriInsights, error) {
	if minSupport == 0 {
		minSupport = defaultMinSupport
	}
	if minConfidence == 0 {
		minConfidence = defaultMinConfidence
	}
	if minSupport < 0 || minSupport > 1 || minConfidence < 0 || minConfidence > 1 {
		return nil, apperror.Validation("min_support dan min_confidence harus di antara 0 dan 1")
	}

	key := fmt.Sprintf("apriori-insights:%g:%g", minSupport, minConfidence)
	return cached(ctx, s, key, func() (*AprioriInsights, error) {
		headers, err := s.stores.Reports.Headers(nil, nil)
		if err != nil {
			return nil, err
		}
		total := len(headers)
		if total < aprioriMinTransactions {
			return &AprioriInsights{
				Message: fmt.Sprintf("Data transaksi belum mencukupi. Minimal %d transaksi diperlukan, saat ini ada %d transaksi.",
					aprioriMinTransactions, total),
				TotalTransactions: total,
				MinRequired:       aprioriMinTransactions,
			}, nil
		}

		lines, err := s.stores.Transactions.ListSaleLines(repository.TransactionFilter{})
		if err != nil {
			return nil, err
		}
		titles := map[string]map[string]struct{}{}
		categories := map[string]map[string]struct{}{}
		var order []string
		for _, l := range lines {
			// only catalog books take part, bundles and unmatched lines do not
			if l.BookID == nil || l.Title == nil {
				continue
			}
			id := l.TransactionID.String()
			if _, ok := titles[id]; !ok {
				titles[id] = map[string]struct{}{}
				categories[id] = map[string]struct{}{}
				order = append(order, id)
			}
			titles[id][*l.Title] = struct{}{}
			if l.Category != nil && *l.Category != "" {
				categories[id][*l.Category] = struct{}{}
			}
		}
		if len(order) == 0 {
			return &AprioriInsights{Message: "Tidak ada data item transaksi ditemukan.", TotalTransactions: total}, nil
		}

		byBook := multiItem(titles, order)
		byCategory := multiItem(categories, order)
		counts := &MultiItemCount{Books: len(byBook), Categories: len(byCategory)}
		if len(byBook) == 0 && len(byCategory) == 0 {
			return &AprioriInsights{
				Message:               "Belum ada transaksi dengan lebih dari 1 item. Apriori membutuhkan transaksi multi-item untuk menemukan pola asosiasi.",
				TotalTransactions:     total,
				MultiItemTransactions: counts,
			}, nil
		}

		bookRules := mineRules(byBook, minSupport, minConfidence)
		// fewer distinct categories, so a slightly lower support bar
		categoryRules := mineRules(byCategory, math.Max(0.03, minSupport-0.02), minConfidence)
		return &AprioriInsights{
			Success:               true,
			Message:               "Analisis Apriori berhasil dijalankan.",
			TotalTransactions:     total,
			MultiItemTransactions: counts,
			Parameters:            &AprioriParams{MinSupport: minSupport, MinConfidence: minConfidence},
			Recommendations: &BundleRecommendations{
				BookBundles:     recommend(bookRules, "book"),
				CategoryBundles: recommend(categoryRules, "category"),
				Summary:         RecommendationSummary{TotalBookRules: len(bookRules), TotalCategoryRules: len(categoryRules)},
			},
		}, nil
	})
}

func revenueByCategory(lines []repository.SaleLineRow) []CategoryRevenue {
	sums := map[string]decimal.Decimal{}
	var order []string
	for _, l := range lines {
		if l.BookID == nil {
			continue
		}
		cat := deref(l.Category)
		if _, ok := sums[cat]; !ok {
			order = append(order, cat)
		}
		sums[cat] = sums[cat].Add(l.PriceAtSale.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	out := make([]CategoryRevenue, 0, len(order))
	for _, c := range order {
		out = append(out, CategoryRevenue{Category: c, TotalRevenue: sums[c]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue) })
	return out
}

// busiest returns the key with the highest count, lowest key on ties
func busiest[K int | time.Weekday](counts map[K]int) K {
	var best K
	bestN := -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
