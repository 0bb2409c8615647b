package service

import (
	"context"
	"testing"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBundles(t *testing.T, pub events.Publisher) (BundleService, *bundleService) {
	t.Helper()
	db, stores := newTestDB(t, true)
	notifier, _, _ := newTestNotifier(pub)
	svc := NewBundleService(db, stores, notifier, zap.NewNop())
	impl := svc.(*bundleService)
	impl.now = fixedNow
	return svc, impl
}

func TestBundleService_CreateMergesComponents(t *testing.T) {
	svc, impl := newBundles(t, nil)
	a := createBook(t, impl.db, "A1", "Dilan 1990", 10, 70000)
	b := createBook(t, impl.db, "B1", "Dilan 1991", 10, 75000)

	view, err := svc.Create(context.Background(), &BundleRequest{
		BundleName:   "Paket Dilan",
		SellingPrice: dec(130000),
		Stock:        5,
		Items: []BundleComponent{
			{BookID: a.BookID, Quantity: 1},
			{BookID: b.BookID},
			{BookID: a.BookID, Quantity: 2},
		},
	}, cashier)
	require.NoError(t, err)
	assert.Equal(t, "Paket Dilan", view.BundleName)
	assert.Equal(t, 5, view.Stock)
	require.Len(t, view.Items, 2)

	quantities := map[uint]int{}
	for _, it := range view.Items {
		quantities[it.BookID] = it.Quantity
	}
	assert.Equal(t, map[uint]int{a.BookID: 3, b.BookID: 1}, quantities)

	_, err = svc.Create(context.Background(), &BundleRequest{
		BundleName:   "Rusak",
		SellingPrice: dec(1000),
		Items:        []BundleComponent{{BookID: 999, Quantity: 1}},
	}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.Create(context.Background(), &BundleRequest{BundleName: "Kosong", SellingPrice: dec(1000)}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, int64(1), countRows(t, impl.db, &model.Bundle{}, ""))
}

func TestBundleService_UpdateAndDelete(t *testing.T) {
	svc, impl := newBundles(t, nil)
	a := createBook(t, impl.db, "A1", "Ayat-Ayat Cinta", 10, 70000)
	b := createBook(t, impl.db, "B1", "Ketika Cinta Bertasbih", 10, 75000)
	bundle := createBundle(t, impl.db, "Paket Lama", 2, 100000, component{a, 1})

	view, err := svc.Update(context.Background(), bundle.BundleID, &BundleRequest{
		BundleName:   "Paket Baru",
		SellingPrice: dec(120000),
		Stock:        6,
		Items:        []BundleComponent{{BookID: b.BookID, Quantity: 2}},
	}, cashier)
	require.NoError(t, err)
	assert.Equal(t, "Paket Baru", view.BundleName)
	assert.Equal(t, 6, view.Stock)
	require.Len(t, view.Items, 1)
	assert.Equal(t, b.BookID, view.Items[0].BookID)
	assert.Equal(t, 2, view.Items[0].Quantity)

	require.NoError(t, svc.Delete(context.Background(), bundle.BundleID, cashier))
	_, err = svc.Get(context.Background(), bundle.BundleID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	err = svc.Delete(context.Background(), bundle.BundleID, cashier)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	_, err = svc.Update(context.Background(), bundle.BundleID, &BundleRequest{
		BundleName: "X", SellingPrice: dec(1), Items: []BundleComponent{{BookID: a.BookID}},
	}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestBundleService_Sell(t *testing.T) {
	pub := &recordingPublisher{}
	svc, impl := newBundles(t, pub)
	a := createBook(t, impl.db, "A1", "Perahu Kertas", 10, 80000)
	b := createBook(t, impl.db, "B1", "Filosofi Kopi", 10, 60000)
	bundle := createBundle(t, impl.db, "Paket Dee", 4, 120000, component{a, 1}, component{b, 2})

	res, err := svc.Sell(context.Background(), bundle.BundleID, &SellBundleRequest{}, cashier)
	require.NoError(t, err)
	assert.Equal(t, SellBundleResult{BundleID: bundle.BundleID, QuantitySold: 1, Stock: 3}, *res)
	assert.Equal(t, 9, stockOf(t, impl.db, a.BookID))
	assert.Equal(t, 8, stockOf(t, impl.db, b.BookID))
	assert.Equal(t, 3, bundleStockOf(t, impl.db, bundle.BundleID))
	assert.Equal(t, int64(1), countRows(t, impl.db, &model.StockHistory{}, "book_id = ? AND quantity_change = ?", b.BookID, -2))

	res, err = svc.Sell(context.Background(), bundle.BundleID, &SellBundleRequest{Quantity: 3}, cashier)
	require.NoError(t, err)
	assert.Zero(t, res.Stock)

	_, err = svc.Sell(context.Background(), bundle.BundleID, &SellBundleRequest{Quantity: 1}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindInsufficientStock))
	assert.Equal(t, []string{events.BundleSold, events.BundleSold}, pub.actions())
	assert.Equal(t, events.TypeStockUpdate, pub.events[0].Type)
}

func TestBundleService_SellWithTransaction(t *testing.T) {
	svc, impl := newBundles(t, nil)
	a := createBook(t, impl.db, "A1", "Rectoverso", 10, 80000)
	bundle := createBundle(t, impl.db, "Paket Satu", 4, 70000, component{a, 1})

	missing := uuid.New()
	_, err := svc.Sell(context.Background(), bundle.BundleID, &SellBundleRequest{TransactionID: &missing}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, 4, bundleStockOf(t, impl.db, bundle.BundleID))

	tx := &model.Transaction{TransactionDate: fixedNow(), TotalAmount: dec(70000), PaymentMethod: model.PaymentCash}
	require.NoError(t, impl.db.Create(tx).Error)
	_, err = svc.Sell(context.Background(), bundle.BundleID, &SellBundleRequest{TransactionID: &tx.TransactionID}, cashier)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, impl.db, &model.StockHistory{}, "transaction_id = ?", tx.TransactionID))
}
