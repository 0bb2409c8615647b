package service

import (
	"context"
	"testing"
	"time"

	"go-bookstore-pos/internal/cache"
	"go-bookstore-pos/internal/metrics"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type salesFixture struct {
	db        *gorm.DB
	inventory *inventoryService
	reports   *reportService
	cache     *cache.InMemoryCache
	metrics   *metrics.Metrics
	a, b      *model.Book
}

// newSalesFixture records three sales:
// 2025-03-14 10:30 a x2 + b x1 (Sari), 2025-03-10 a x1, 2025-02-20 b x3
func newSalesFixture(t *testing.T) *salesFixture {
	t.Helper()
	db, stores := newTestDB(t, true)
	notifier, c, m := newTestNotifier(nil)

	inventory := NewInventoryService(db, stores, notifier, wib, zap.NewNop()).(*inventoryService)
	inventory.now = fixedNow
	reports := NewReportService(stores, c, m, time.Minute, wib, zap.NewNop()).(*reportService)
	reports.now = fixedNow

	f := &salesFixture{db: db, inventory: inventory, reports: reports, cache: c, metrics: m}
	f.a = createBook(t, db, "A1", "Bumi Manusia", 50, 50000)
	f.b = createBook(t, db, "B1", "Atheis", 50, 80000)
	require.NoError(t, db.Model(f.b).Update("category", "Klasik").Error)

	ctx := context.Background()
	_, err := inventory.RecordSale(ctx, &SaleRequest{
		Items:        []BookLine{{BookID: f.a.BookID, Quantity: 2}, {BookID: f.b.BookID, Quantity: 1}},
		CustomerName: "Sari",
	}, cashier)
	require.NoError(t, err)
	_, err = inventory.StockOut(ctx, f.a.BookID, &StockOutRequest{Quantity: 1, TransactionDate: "2025-03-10", CreateTransaction: true}, cashier)
	require.NoError(t, err)
	_, err = inventory.StockOut(ctx, f.b.BookID, &StockOutRequest{Quantity: 3, TransactionDate: "2025-02-20", CreateTransaction: true}, cashier)
	require.NoError(t, err)
	return f
}

func TestReport_PerformanceIsCachedUntilNextSale(t *testing.T) {
	f := newSalesFixture(t)
	ctx := context.Background()

	perf, err := f.reports.Performance(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 2)
	// b: 4 x (80000-40000), a: 3 x (50000-25000)
	assert.Equal(t, f.b.BookID, perf[0].BookID)
	assert.True(t, perf[0].TotalProfit.Equal(dec(160000)))
	assert.Equal(t, 4, perf[0].TotalSold)
	assert.True(t, perf[1].TotalProfit.Equal(dec(75000)))
	assert.True(t, perf[1].TotalRevenue.Equal(dec(150000)))

	_, err = f.reports.Performance(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReportCacheHits.WithLabelValues("hit")))

	_, err = f.inventory.RecordSale(ctx, &SaleRequest{Items: []BookLine{{BookID: f.a.BookID, Quantity: 10}}}, cashier)
	require.NoError(t, err)

	perf, err = f.reports.Performance(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.a.BookID, perf[0].BookID)
	assert.Equal(t, 13, perf[0].TotalSold)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.ReportCacheHits.WithLabelValues("miss")))
}

func TestReport_SalesTrendFillsEmptyDays(t *testing.T) {
	f := newSalesFixture(t)

	trend, err := f.reports.SalesTrend(context.Background())
	require.NoError(t, err)
	require.Len(t, trend, 7)
	assert.Equal(t, "2025-03-08", trend[0].SaleDate)
	assert.Equal(t, "2025-03-14", trend[6].SaleDate)
	assert.True(t, trend[2].DailyRevenue.Equal(dec(50000)), "2025-03-10")
	assert.True(t, trend[6].DailyRevenue.Equal(dec(180000)))
	assert.True(t, trend[0].DailyRevenue.IsZero())
}

func TestReport_MonthlyRevenue(t *testing.T) {
	f := newSalesFixture(t)

	months, err := f.reports.MonthlyRevenue(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, 1, months[0].Month)
	assert.True(t, months[0].Revenue.IsZero())
	assert.True(t, months[1].Revenue.Equal(dec(240000)))
	assert.True(t, months[2].Revenue.Equal(dec(230000)))

	empty, err := f.reports.MonthlyRevenue(context.Background(), 2024)
	require.NoError(t, err)
	for _, m := range empty {
		assert.True(t, m.Revenue.IsZero())
	}
}

func TestReport_TopDeclineBooks(t *testing.T) {
	f := newSalesFixture(t)

	declines, err := f.reports.TopDeclineBooks(context.Background(), 2025, 3)
	require.NoError(t, err)
	require.Len(t, declines, 2)
	assert.Equal(t, BookDecline{BookID: f.b.BookID, Title: "Atheis", QtyCur: 1, QtyPrev: 3, DeltaQty: -2}, declines[0])
	assert.Equal(t, 3, declines[1].DeltaQty)

	_, err = f.reports.TopDeclineBooks(context.Background(), 2025, 13)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestReport_CategoriesAndFrequency(t *testing.T) {
	f := newSalesFixture(t)

	cats, err := f.reports.CategoriesByRevenue(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Klasik", cats[0].Category)
	assert.True(t, cats[0].TotalRevenue.Equal(dec(320000)))
	assert.Equal(t, "Novel", cats[1].Category)

	freq, err := f.reports.PurchaseFrequency(context.Background())
	require.NoError(t, err)
	require.Len(t, freq, 1)
	assert.Equal(t, "Sari", freq[0].Name)
	assert.Equal(t, int64(1), freq[0].TxCount)
}

func TestReport_TxMetrics(t *testing.T) {
	f := newSalesFixture(t)

	m, err := f.reports.TxMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 7.0/3.0, m.AvgItems, 0.001)
	require.NotNil(t, m.BusiestHour)
	assert.Equal(t, 0, *m.BusiestHour)
	require.NotNil(t, m.BusiestDay)
	assert.Equal(t, "Monday", *m.BusiestDay)
}

func TestReport_Summary(t *testing.T) {
	f := newSalesFixture(t)

	s, err := f.reports.Summary(context.Background(), "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalTransactions)
	assert.True(t, s.TotalRevenue.Equal(dec(230000)))
	assert.True(t, s.AvgTxValue.Equal(dec(115000)))
	require.NotNil(t, s.BestsellingBook)
	assert.Equal(t, "Bumi Manusia", *s.BestsellingBook)
	require.NotNil(t, s.DominantCategory)
	assert.Equal(t, "Novel", *s.DominantCategory)

	empty, err := f.reports.Summary(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalTransactions)
	assert.Nil(t, empty.BestsellingBook)

	_, err = f.reports.Summary(context.Background(), "01/03/2025", "")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestReport_LoadOverlappingInvalidationIsNotCached(t *testing.T) {
	f := newSalesFixture(t)
	ctx := context.Background()
	notifier := NewNotifier(nil, f.cache, f.metrics, zap.NewNop())

	// a sale commits while the report is still being computed
	out, err := cached(ctx, f.reports, "overlap", func() (int, error) {
		notifier.InvalidateReports(ctx)
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	_, err = f.cache.Get(ctx, "report:overlap")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	out, err = cached(ctx, f.reports, "overlap", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, out)
	_, err = f.cache.Get(ctx, "report:overlap")
	assert.NoError(t, err)
}

func TestReport_AprioriNeedsHistory(t *testing.T) {
	f := newSalesFixture(t)

	insights, err := f.reports.AprioriInsights(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, insights.Success)
	assert.Equal(t, 3, insights.TotalTransactions)
	assert.Equal(t, 10, insights.MinRequired)
	assert.Nil(t, insights.Recommendations)
	assert.Contains(t, insights.Message, "Minimal 10 transaksi")

	_, err = f.reports.AprioriInsights(context.Background(), 1.5, 0)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestReport_AprioriInsights(t *testing.T) {
	db, stores := newTestDB(t, true)
	notifier, c, m := newTestNotifier(nil)
	inventory := NewInventoryService(db, stores, notifier, wib, zap.NewNop())
	reports := NewReportService(stores, c, m, time.Minute, wib, zap.NewNop())

	a := createBook(t, db, "A1", "Bumi Manusia", 100, 50000)
	b := createBook(t, db, "B1", "Atheis", 100, 80000)
	cc := createBook(t, db, "C1", "Laskar Pelangi", 100, 60000)
	require.NoError(t, db.Model(b).Update("category", "Klasik").Error)
	require.NoError(t, db.Model(cc).Update("category", "Anak").Error)

	ctx := context.Background()
	sell := func(times int, books ...*model.Book) {
		for i := 0; i < times; i++ {
			var lines []BookLine
			for _, book := range books {
				lines = append(lines, BookLine{BookID: book.BookID, Quantity: 1})
			}
			_, err := inventory.RecordSale(ctx, &SaleRequest{Items: lines}, cashier)
			require.NoError(t, err)
		}
	}
	sell(5, a, b)
	sell(3, a, cc)
	sell(2, b, cc)

	insights, err := reports.AprioriInsights(ctx, 0, 0)
	require.NoError(t, err)
	require.True(t, insights.Success, insights.Message)
	assert.Equal(t, 10, insights.TotalTransactions)
	assert.Equal(t, &MultiItemCount{Books: 10, Categories: 10}, insights.MultiItemTransactions)
	assert.Equal(t, &AprioriParams{MinSupport: 0.05, MinConfidence: 0.3}, insights.Parameters)

	rec := insights.Recommendations
	require.NotNil(t, rec)
	// Atheis->Laskar Pelangi has 2/7 confidence and is dropped
	assert.Equal(t, RecommendationSummary{TotalBookRules: 5, TotalCategoryRules: 5}, rec.Summary)
	require.Len(t, rec.BookBundles, 5)

	top := rec.BookBundles[0]
	assert.Equal(t, []string{"Atheis"}, top.Antecedent)
	assert.Equal(t, []string{"Bumi Manusia"}, top.Consequent)
	assert.Equal(t, []string{"Atheis", "Bumi Manusia"}, top.Items)
	assert.Equal(t, 0.5, top.Support)
	assert.Equal(t, 0.7143, top.Confidence)
	assert.Equal(t, 0.8929, top.Lift)
	assert.Equal(t, `71% pelanggan yang membeli "Atheis" juga membeli "Bumi Manusia"`, top.Insight)

	assert.Equal(t, []string{"Bumi Manusia"}, rec.BookBundles[1].Antecedent)
	assert.Equal(t, 0.625, rec.BookBundles[1].Confidence)
	assert.Equal(t, []string{"Laskar Pelangi"}, rec.BookBundles[2].Antecedent)
	assert.Equal(t, 0.75, rec.BookBundles[2].Lift)
	last := rec.BookBundles[4]
	assert.Equal(t, []string{"Laskar Pelangi"}, last.Antecedent)
	assert.Equal(t, []string{"Atheis"}, last.Consequent)
	assert.Equal(t, 0.5714, last.Lift)

	require.Len(t, rec.CategoryBundles, 5)
	assert.Equal(t, `71% pelanggan yang membeli kategori "Klasik" juga membeli kategori "Novel"`, rec.CategoryBundles[0].Insight)

	// a stricter confidence keeps only the certain-ish rules
	strict, err := reports.AprioriInsights(ctx, 0.05, 0.7)
	require.NoError(t, err)
	require.Len(t, strict.Recommendations.BookBundles, 1)
	assert.Equal(t, []string{"Atheis"}, strict.Recommendations.BookBundles[0].Antecedent)
}

func TestMineRules_TripleItemsets(t *testing.T) {
	baskets := []basket{
		{"a", "b", "c"}, {"a", "b", "c"}, {"a", "b", "c"},
		{"a", "d"}, {"b", "d"},
	}
	rules := mineRules(baskets, 0.5, 0.9)

	var fromPair bool
	for _, r := range rules {
		assert.GreaterOrEqual(t, r.Confidence, 0.9)
		if len(r.Antecedent) == 2 && r.Antecedent[0] == "a" && r.Antecedent[1] == "b" {
			fromPair = true
			assert.Equal(t, []string{"c"}, r.Consequent)
			assert.Equal(t, 0.6, r.Support)
			assert.Equal(t, 1.0, r.Confidence)
		}
	}
	assert.True(t, fromPair, "%+v", rules)
	assert.Nil(t, mineRules(baskets[:1], 0.1, 0.1))
}

func TestTransactionService_List(t *testing.T) {
	f := newSalesFixture(t)
	stores := f.inventory.stores
	_, err := f.inventory.StockIn(context.Background(), f.a.BookID, &StockInRequest{Quantity: 5}, cashier)
	require.NoError(t, err)
	svc := NewTransactionService(stores, wib)

	rows, err := svc.List(context.Background(), TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	// stock-in happened at the same instant as the first sale
	first := rows[0]
	if first.TransType == TypeIn {
		first = rows[1]
	}
	assert.Equal(t, TypeOut, first.TransType)
	assert.Equal(t, 3, first.Quantity)
	assert.Equal(t, 2, first.ItemCount)
	assert.True(t, first.Total.Equal(dec(180000)))
	require.NotNil(t, first.CustomerName)
	assert.Equal(t, "Sari", *first.CustomerName)
	assert.Contains(t, first.Title, "Bumi Manusia")
	assert.Contains(t, first.Title, "Atheis")

	in, err := svc.List(context.Background(), TransactionQuery{Type: "in"})
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, 5, in[0].Quantity)
	assert.True(t, in[0].Total.Equal(dec(125000)))

	march, err := svc.List(context.Background(), TransactionQuery{Type: TypeOut, StartDate: "2025-03-01", EndDate: "2025-03-10"})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, 1, march[0].Quantity)

	_, err = svc.List(context.Background(), TransactionQuery{Type: "SIDEWAYS"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestTransactionService_Get(t *testing.T) {
	db, stores := newTestDB(t, true)
	inventory := NewInventoryService(db, stores, nil, wib, zap.NewNop())
	book := createBook(t, db, "A1", "Bumi Manusia", 10, 50000)
	bundle := createBundle(t, db, "Paket", 5, 90000, component{book, 1})

	res, err := inventory.RecordSale(context.Background(), &SaleRequest{
		Items:        []BookLine{{BookID: book.BookID, Quantity: 1}},
		Bundles:      []BundleLine{{BundleID: bundle.BundleID, Quantity: 1}},
		CustomerName: "Sari",
	}, cashier)
	require.NoError(t, err)

	svc := NewTransactionService(stores, wib)
	detail, err := svc.Get(context.Background(), res.TransactionID.String())
	require.NoError(t, err)
	assert.True(t, detail.TotalAmount.Equal(dec(140000)))
	require.NotNil(t, detail.CustomerName)
	assert.Equal(t, "Sari", *detail.CustomerName)
	require.Len(t, detail.Items, 2)

	var sawBook, sawBundle bool
	for _, it := range detail.Items {
		if it.IsBundle {
			sawBundle = true
			assert.Equal(t, "Paket", it.Title)
		} else {
			sawBook = true
			assert.Equal(t, "A1", it.ISBN)
			assert.True(t, it.Subtotal.Equal(dec(50000)))
		}
	}
	assert.True(t, sawBook)
	assert.True(t, sawBundle)

	_, err = svc.Get(context.Background(), "bukan-uuid")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDashboardService(t *testing.T) {
	f := newSalesFixture(t)
	createBook(t, f.db, "C1", "Hampir Habis", 3, 30000)
	svc := NewDashboardService(f.inventory.stores, wib).(*dashboardService)
	svc.now = fixedNow

	m, err := svc.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.TransactionsToday)
	assert.True(t, m.RevenueToday.Equal(dec(180000)))
	assert.Equal(t, int64(3), m.TotalSKU)
	assert.Equal(t, int64(1), m.LowStockCount)
	require.Len(t, m.LatestSales, 3)
	assert.Equal(t, 3, m.LatestSales[0].TotalItems)

	moves, err := svc.StockMovement(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, moves, 7)
	assert.Equal(t, "2025-03-14", moves[6].Date)
	assert.Equal(t, 3, moves[6].Outbound)
	assert.Equal(t, 1, moves[2].Outbound)
	assert.Zero(t, moves[6].Inbound)

	long, err := svc.StockMovement(context.Background(), 365)
	require.NoError(t, err)
	assert.Len(t, long, 90)
}
