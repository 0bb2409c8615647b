package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-bookstore-pos/internal/cache"
	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/metrics"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var wib = time.FixedZone("WIB", 7*3600)

func newTestDB(t *testing.T, ledgerEnabled bool) (*gorm.DB, *repository.Stores) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection: the in-memory database lives as long as it does
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	enabled, err := repository.Migrate(db, ledgerEnabled)
	require.NoError(t, err)
	require.Equal(t, ledgerEnabled, enabled)

	return db, repository.NewStores(db, enabled)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	onSend func(events.Event)
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	if p.onSend != nil {
		p.onSend(e)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

func newTestNotifier(pub events.Publisher) (*Notifier, *cache.InMemoryCache, *metrics.Metrics) {
	c := cache.NewInMemory()
	m := metrics.New("test")
	return NewNotifier(pub, c, m, zap.NewNop()), c, m
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 14, 10, 30, 0, 0, wib)
}

func createBook(t *testing.T, db *gorm.DB, isbn, title string, stock int, price int64) *model.Book {
	t.Helper()
	book := &model.Book{
		ISBN:          isbn,
		Title:         title,
		Author:        "Penulis " + isbn,
		Category:      "Novel",
		PurchasePrice: decimal.NewFromInt(price / 2),
		SellingPrice:  decimal.NewFromInt(price),
		StockQty:      stock,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

type component struct {
	book *model.Book
	qty  int
}

func createBundle(t *testing.T, db *gorm.DB, name string, stock int, price int64, comps ...component) *model.Bundle {
	t.Helper()
	bundle := &model.Bundle{
		BundleName:   name,
		SellingPrice: decimal.NewFromInt(price),
		Stock:        stock,
		IsActive:     true,
	}
	require.NoError(t, db.Omit("Items").Create(bundle).Error)
	for _, c := range comps {
		require.NoError(t, db.Create(&model.BundleItem{BundleID: bundle.BundleID, BookID: c.book.BookID, Quantity: c.qty}).Error)
	}
	return bundle
}

func stockOf(t *testing.T, db *gorm.DB, bookID uint) int {
	t.Helper()
	var book model.Book
	require.NoError(t, db.First(&book, bookID).Error)
	return book.StockQty
}

func bundleStockOf(t *testing.T, db *gorm.DB, bundleID uint) int {
	t.Helper()
	var bundle model.Bundle
	require.NoError(t, db.First(&bundle, bundleID).Error)
	return bundle.Stock
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var cashier = events.Actor{ID: 1, Name: "kasir"}

func time2025March1() time.Time {
	return time.Date(2025, time.March, 1, 0, 0, 0, 0, wib)
}
