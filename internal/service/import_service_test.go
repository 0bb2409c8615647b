package service

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newImport(t *testing.T, pub events.Publisher) (*importService, *gorm.DB) {
	t.Helper()
	db, stores := newTestDB(t, true)
	notifier, _, _ := newTestNotifier(pub)
	svc := NewImportService(db, stores, notifier, wib, zap.NewNop()).(*importService)
	svc.now = fixedNow
	return svc, db
}

func bookItem(book *model.Book, qty int, lineTotal int64) ImportItem {
	return ImportItem{
		ProductName:  book.Title,
		Quantity:     qty,
		ProductPrice: dec(lineTotal),
		UnitPrice:    dec(lineTotal / int64(qty)),
		Type:         ItemTypeBook,
		Matched:      true,
		MatchedData:  &MatchedData{ID: book.BookID, Name: book.Title},
	}
}

func sheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestConfirm_ReimportReplacesOrder(t *testing.T) {
	svc, db := newImport(t, nil)
	book := createBook(t, db, "X1", "Bumi Manusia", 10, 100000)

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber:   "240315ABC",
		PaymentMethod: model.PaymentQRIS,
		CustomerName:  "budi",
		Items:         []ImportItem{bookItem(book, 2, 200000)},
	}}}, cashier)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Results.Imported)
	assert.Zero(t, res.Results.Replaced)
	assert.Equal(t, 8, stockOf(t, db, book.BookID))

	res, err = svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber: "240315ABC",
		Items:       []ImportItem{bookItem(book, 3, 300000)},
		IsExisting:  true,
	}}}, cashier)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Results.Imported)
	assert.Equal(t, 1, res.Results.Replaced)
	assert.Empty(t, res.Results.Errors)

	assert.Equal(t, 7, stockOf(t, db, book.BookID))
	assert.Equal(t, int64(1), countRows(t, db, &model.Transaction{}, "order_number = ?", "240315ABC"))
	assert.Equal(t, int64(1), countRows(t, db, &model.TransactionItem{}, ""))

	var ledger []model.StockHistory
	require.NoError(t, db.Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, -3, ledger[0].QuantityChange)
	assert.Equal(t, model.ReasonImportSale, ledger[0].Reason)

	var tx model.Transaction
	require.NoError(t, db.First(&tx).Error)
	assert.True(t, tx.TotalAmount.Equal(dec(300000)))
	assert.Equal(t, model.PaymentCash, tx.PaymentMethod)
}

func TestConfirm_ExistingOrderNeedsFlag(t *testing.T) {
	svc, db := newImport(t, nil)
	book := createBook(t, db, "X1", "Bumi Manusia", 10, 100000)
	order := ImportOrder{OrderNumber: "A-1", Items: []ImportItem{bookItem(book, 1, 100000)}}

	_, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{order}}, cashier)
	require.NoError(t, err)

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{order}}, cashier)
	require.NoError(t, err)
	assert.Zero(t, res.Results.Imported)
	require.Len(t, res.Results.Errors, 1)
	assert.Equal(t, "A-1", res.Results.Errors[0].OrderNumber)
	assert.Equal(t, 9, stockOf(t, db, book.BookID))
}

func TestConfirm_RacingInsertIsOrderExists(t *testing.T) {
	svc, db := newImport(t, nil)
	book := createBook(t, db, "X1", "Bumi Manusia", 10, 100000)

	// a second confirm commits the same order number between lookup and insert
	var once sync.Once
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:rival_order", func(tx *gorm.DB) {
		if tx.Statement.Table != "transactions" {
			return
		}
		once.Do(func() {
			err := tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO transactions (transaction_id, transaction_date, total_amount, payment_method, order_number) VALUES (?, ?, ?, ?, ?)",
				uuid.NewString(), fixedNow().UTC(), 0, "cash", "A-2",
			).Error
			require.NoError(t, err)
		})
	}))

	order := ImportOrder{OrderNumber: "A-2", Items: []ImportItem{bookItem(book, 1, 100000)}}
	_, err := svc.confirmOrder(context.Background(), &order, cashier)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, apperror.KindConflict, appErr.Kind)
	assert.Equal(t, "ORDER_EXISTS", appErr.Code)

	// the unit rolled back, rival row included
	assert.Equal(t, 10, stockOf(t, db, book.BookID))
	assert.Zero(t, countRows(t, db, &model.Transaction{}, ""))
}

func TestConfirm_FailedOrderKeepsOthers(t *testing.T) {
	pub := &recordingPublisher{}
	svc, db := newImport(t, pub)
	book := createBook(t, db, "X1", "Bumi Manusia", 10, 100000)
	ghost := bookItem(book, 1, 1000)
	ghost.MatchedData = &MatchedData{ID: 999, Name: "Hilang"}

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{
		{OrderNumber: "OK-1", Items: []ImportItem{bookItem(book, 1, 100000)}},
		{OrderNumber: "BAD-1", Items: []ImportItem{bookItem(book, 2, 200000), ghost}},
	}}, cashier)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Results.Imported)
	require.Len(t, res.Results.Errors, 1)
	assert.Equal(t, "BAD-1", res.Results.Errors[0].OrderNumber)

	assert.Equal(t, 9, stockOf(t, db, book.BookID))
	assert.Zero(t, countRows(t, db, &model.Transaction{}, "order_number = ?", "BAD-1"))
	assert.Equal(t, []string{events.ImportCompleted}, pub.actions())
}

func TestConfirm_UnmatchedLineKeepsNameOnly(t *testing.T) {
	svc, db := newImport(t, nil)

	_, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber: "U-1",
		Items: []ImportItem{{
			ProductName:  "Buku Misterius",
			Quantity:     2,
			ProductPrice: dec(40000),
			UnitPrice:    dec(20000),
			Type:         ItemTypeBook,
		}},
	}}}, cashier)
	require.NoError(t, err)

	var item model.TransactionItem
	require.NoError(t, db.First(&item).Error)
	assert.Nil(t, item.BookID)
	assert.Nil(t, item.BundleID)
	assert.Equal(t, "Buku Misterius", item.ProductName)
	assert.True(t, item.PriceAtSale.Equal(dec(20000)))
	assert.Zero(t, countRows(t, db, &model.StockHistory{}, ""))
}

func TestConfirm_AllowsNegativeStock(t *testing.T) {
	svc, db := newImport(t, nil)
	book := createBook(t, db, "X1", "Bumi Manusia", 1, 100000)

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber: "N-1",
		Items:       []ImportItem{bookItem(book, 3, 300000)},
	}}}, cashier)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Results.Imported)
	assert.Equal(t, -2, stockOf(t, db, book.BookID))
}

func TestConfirm_BundleLineMovesBundleStock(t *testing.T) {
	db, stores := newTestDB(t, true)
	notifier, _, m := newTestNotifier(nil)
	svc := NewImportService(db, stores, notifier, wib, zap.NewNop())
	book := createBook(t, db, "X1", "Anak Semua Bangsa", 10, 90000)
	bundle := createBundle(t, db, "Paket Buru", 4, 250000, component{book, 2})

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber: "B-1",
		Items: []ImportItem{{
			ProductName:  "Paket Buru",
			IsBundle:     true,
			Quantity:     1,
			ProductPrice: dec(250000),
			UnitPrice:    dec(250000),
			Type:         ItemTypeBundle,
			MatchedData:  &MatchedData{ID: bundle.BundleID, Name: bundle.BundleName},
		}},
	}}}, cashier)
	require.NoError(t, err)
	require.Len(t, res.Results.StockUpdates, 1)
	assert.Equal(t, StockUpdate{Type: ItemTypeBundle, Name: "Paket Buru", QuantitySold: 1}, res.Results.StockUpdates[0])

	assert.Equal(t, 3, bundleStockOf(t, db, bundle.BundleID))
	assert.Equal(t, 10, stockOf(t, db, book.BookID))

	var item model.TransactionItem
	require.NoError(t, db.First(&item).Error)
	require.NotNil(t, item.BundleID)
	assert.Equal(t, bundle.BundleID, *item.BundleID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ImportOrders.WithLabelValues("imported")))
}

func TestConfirm_Validation(t *testing.T) {
	svc, _ := newImport(t, nil)

	_, err := svc.Confirm(context.Background(), &ConfirmRequest{}, cashier)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	res, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{OrderNumber: "E-1"}}}, cashier)
	require.NoError(t, err)
	assert.Len(t, res.Results.Errors, 1)
}

func TestPreview(t *testing.T) {
	svc, db := newImport(t, nil)
	book := createBook(t, db, "978602", "Bumi Manusia", 10, 100000)
	bundle := createBundle(t, db, "Paket Buru", 4, 250000, component{book, 1})

	_, err := svc.Confirm(context.Background(), &ConfirmRequest{Data: []ImportOrder{{
		OrderNumber: "OLD-1",
		Items:       []ImportItem{bookItem(book, 1, 100000)},
	}}}, cashier)
	require.NoError(t, err)

	buf := sheet(t, [][]interface{}{
		{"No. Pesanan", "Waktu Pesanan Dibuat", "Metode Pembayaran", "Username (Pembeli)", "Total Pembayaran", "Nama Produk", "Jumlah", "Total Harga Produk"},
		{"NEW-1", "15-03-2024 10:30", "QRIS", "budi", "Rp 350.000", "bumi manusia", 1, "Rp 100.000"},
		{"NEW-1", "", "", "", "", "[Bundle] Paket Buru", 1, "Rp 250.000"},
		{"OLD-1", "16-03-2024 08:00", "COD", "", "45.000", "Buku Misterius Tak Dikenal", 1, "45.000"},
	})

	res, err := svc.Preview(context.Background(), buf)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ImportSummary{TotalOrders: 2, NewOrders: 1, ReplaceOrders: 1, TotalItems: 3, UnmatchedItems: 1}, res.Summary)

	require.Len(t, res.Data, 2)
	first := res.Data[0]
	assert.False(t, first.IsExisting)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.Items[0].MatchedData)
	assert.Equal(t, book.BookID, first.Items[0].MatchedData.ID)
	assert.Equal(t, 100, first.Items[0].MatchedData.MatchScore)
	assert.Equal(t, "978602", *first.Items[0].MatchedData.ISBN)
	assert.Equal(t, ItemTypeBundle, first.Items[1].Type)
	require.NotNil(t, first.Items[1].MatchedData)
	assert.Equal(t, bundle.BundleID, first.Items[1].MatchedData.ID)

	second := res.Data[1]
	assert.True(t, second.IsExisting)
	assert.NotNil(t, second.ExistingID)
	assert.False(t, second.Items[0].Matched)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "unmatched", res.Warnings[0].Type)
	assert.Equal(t, "replace", res.Warnings[1].Type)
	assert.Equal(t, []string{"OLD-1"}, res.Warnings[1].Orders)

	// preview never writes
	assert.Equal(t, 9, stockOf(t, db, book.BookID))
	assert.Equal(t, int64(1), countRows(t, db, &model.Transaction{}, ""))
}

func TestPreview_RejectsBadSheets(t *testing.T) {
	svc, _ := newImport(t, nil)

	_, err := svc.Preview(context.Background(), sheet(t, [][]interface{}{{"No. Pesanan", "Nama Produk"}}))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = svc.Preview(context.Background(), sheet(t, [][]interface{}{{"Foo", "Bar"}, {"1", "2"}}))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = svc.Preview(context.Background(), bytes.NewBufferString("bukan excel"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
