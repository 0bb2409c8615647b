package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/importer"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ItemTypeBook   = "book"
	ItemTypeBundle = "bundle"
)

type MatchedData struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	ISBN         *string         `json:"isbn"`
	Author       *string         `json:"author"`
	DBPrice      decimal.Decimal `json:"dbPrice"`
	CurrentStock int             `json:"currentStock"`
	MatchScore   int             `json:"matchScore"`
}

type ImportItem struct {
	ProductName  string          `json:"productName"`
	IsBundle     bool            `json:"isBundle"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	ProductPrice decimal.Decimal `json:"productPrice" validate:"gte=0"`
	UnitPrice    decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Type         string          `json:"type"`
	Matched      bool            `json:"matched"`
	MatchedData  *MatchedData    `json:"matchedData"`
}

type ImportOrder struct {
	OrderNumber   string              `json:"orderNumber" validate:"required"`
	Date          time.Time           `json:"date"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	CustomerName  string              `json:"customerName"`
	TotalPayment  decimal.Decimal     `json:"totalPayment"`
	Items         []ImportItem        `json:"items" validate:"required,min=1,dive"`
	IsExisting    bool                `json:"isExisting"`
	ExistingID    *uuid.UUID          `json:"existingId"`
}

type ImportSummary struct {
	TotalOrders    int `json:"totalOrders"`
	NewOrders      int `json:"newOrders"`
	ReplaceOrders  int `json:"replaceOrders"`
	TotalItems     int `json:"totalItems"`
	UnmatchedItems int `json:"unmatchedItems"`
}

type UnmatchedItem struct {
	OrderNumber string `json:"orderNumber"`
	ProductName string `json:"productName"`
	Type        string `json:"type"`
}

type ImportWarning struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Items   []UnmatchedItem `json:"items,omitempty"`
	Orders  []string        `json:"orders,omitempty"`
}

type PreviewResult struct {
	Success  bool            `json:"success"`
	Summary  ImportSummary   `json:"summary"`
	Warnings []ImportWarning `json:"warnings"`
	Data     []ImportOrder   `json:"data"`
}

type ConfirmRequest struct {
	Data []ImportOrder `json:"data" validate:"required,min=1"`
}

type StockUpdate struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantitySold"`
}

type ImportError struct {
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error"`
}

type ImportResults struct {
	Imported     int           `json:"imported"`
	Replaced     int           `json:"replaced"`
	StockUpdates []StockUpdate `json:"stockUpdates"`
	Errors       []ImportError `json:"errors"`
}

type ConfirmResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Results ImportResults `json:"results"`
}

// ImportService reconciles marketplace order sheets with the catalog
type ImportService interface {
	Preview(ctx context.Context, r io.Reader) (*PreviewResult, error)
	Confirm(ctx context.Context, req *ConfirmRequest, actor events.Actor) (*ConfirmResult, error)
}

type importService struct {
	db       *gorm.DB
	stores   *repository.Stores
	notifier *Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewImportService(db *gorm.DB, stores *repository.Stores, notifier *Notifier, loc *time.Location, logger *zap.Logger) ImportService {
	if loc == nil {
		loc = time.Local
	}
	return &importService{
		db:       db,
		stores:   stores,
		notifier: notifier,
		loc:      loc,
		logger:   logger.Named("import"),
		now:      time.Now,
	}
}

// Preview only reads: the sheet, the catalog and existing order numbers
func (s *importService) Preview(ctx context.Context, r io.Reader) (*PreviewResult, error) {
	orders, err := importer.ReadOrders(r, s.loc, s.now())
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrEmptySheet):
			return nil, apperror.Validation("File Excel kosong")
		case errors.Is(err, importer.ErrMissingColumn):
			return nil, apperror.Validation(err.Error())
		default:
			return nil, apperror.Validation("Gagal memproses file: " + err.Error())
		}
	}
	if len(orders) == 0 {
		return nil, apperror.Validation("File Excel kosong")
	}

	books, err := s.stores.Books.FindAll(repository.BookFilter{})
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memproses file")
	}
	bundles, err := s.stores.Bundles.FindActive()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memproses file")
	}
	numbers := make([]string, 0, len(orders))
	for _, o := range orders {
		numbers = append(numbers, o.OrderNumber)
	}
	existing, err := s.stores.Transactions.FindIDsByOrderNumbers(numbers)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memproses file")
	}

	m := newCatalogMatcher(books, bundles)
	result := &PreviewResult{
		Success:  true,
		Warnings: []ImportWarning{},
		Data:     make([]ImportOrder, 0, len(orders)),
	}
	var unmatched []UnmatchedItem
	var replaced []string

	for _, o := range orders {
		view := ImportOrder{
			OrderNumber:   o.OrderNumber,
			Date:          o.Date,
			PaymentMethod: o.PaymentMethod,
			CustomerName:  o.CustomerName,
			TotalPayment:  o.TotalPayment,
			Items:         make([]ImportItem, 0, len(o.Lines)),
		}
		if id, ok := existing[o.OrderNumber]; ok {
			existingID := id
			view.IsExisting = true
			view.ExistingID = &existingID
			replaced = append(replaced, o.OrderNumber)
		}

		for _, l := range o.Lines {
			item := ImportItem{
				ProductName:  l.ProductName,
				IsBundle:     l.IsBundle,
				Quantity:     l.Quantity,
				ProductPrice: l.ProductPrice,
				UnitPrice:    l.UnitPrice,
				Type:         ItemTypeBook,
			}
			if l.IsBundle {
				item.Type = ItemTypeBundle
			}
			item.MatchedData = m.match(l.ProductName, l.IsBundle)
			item.Matched = item.MatchedData != nil
			if !item.Matched {
				unmatched = append(unmatched, UnmatchedItem{OrderNumber: o.OrderNumber, ProductName: l.ProductName, Type: item.Type})
			}
			view.Items = append(view.Items, item)
		}

		result.Summary.TotalItems += len(view.Items)
		result.Data = append(result.Data, view)
	}

	result.Summary.TotalOrders = len(orders)
	result.Summary.ReplaceOrders = len(replaced)
	result.Summary.NewOrders = len(orders) - len(replaced)
	result.Summary.UnmatchedItems = len(unmatched)

	if len(unmatched) > 0 {
		result.Warnings = append(result.Warnings, ImportWarning{
			Type:    "unmatched",
			Message: fmt.Sprintf("%d item tidak ditemukan di database dan akan diimpor dengan data minimal", len(unmatched)),
			Items:   unmatched,
		})
	}
	if len(replaced) > 0 {
		result.Warnings = append(result.Warnings, ImportWarning{
			Type:    "replace",
			Message: fmt.Sprintf("%d transaksi sudah ada dan akan di-replace", len(replaced)),
			Orders:  replaced,
		})
	}
	return result, nil
}

// Confirm applies every order in its own unit of work. A failed order is
// reported in Errors and does not undo the orders before it.
func (s *importService) Confirm(ctx context.Context, req *ConfirmRequest, actor events.Actor) (*ConfirmResult, error) {
	if err := validate(req); err != nil {
		return nil, apperror.Validation("Data tidak valid")
	}

	results := ImportResults{StockUpdates: []StockUpdate{}, Errors: []ImportError{}}
	units := 0
	for i := range req.Data {
		order := &req.Data[i]
		out, err := s.confirmOrder(ctx, order, actor)
		if err != nil {
			msg := err.Error()
			if appErr, ok := apperror.As(err); ok {
				msg = appErr.Message
			}
			s.logger.Warn("import order failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
			results.Errors = append(results.Errors, ImportError{OrderNumber: order.OrderNumber, Error: msg})
			continue
		}
		results.Imported++
		if out.replaced {
			results.Replaced++
		}
		results.StockUpdates = append(results.StockUpdates, out.updates...)
		for _, u := range out.updates {
			if u.Type == ItemTypeBook {
				units += u.QuantitySold
			}
		}
	}

	metrics := s.notifier.Metrics()
	metrics.RecordImport("imported", results.Imported)
	metrics.RecordImport("replaced", results.Replaced)
	metrics.RecordImport("failed", len(results.Errors))
	metrics.RecordStock("out", units)

	if results.Imported > 0 {
		event := events.New(events.TypeStockUpdate, events.ImportCompleted, payload{
			"imported": results.Imported,
			"replaced": results.Replaced,
			"failed":   len(results.Errors),
		})
		event.Key = "import"
		s.notifier.Committed(ctx, withActor(event, actor,
			actorMessage(actor, "mengimpor %d transaksi", results.Imported)))
	}

	return &ConfirmResult{
		Success: true,
		Message: fmt.Sprintf("Berhasil mengimpor %d transaksi", results.Imported),
		Results: results,
	}, nil
}

type orderOutcome struct {
	replaced bool
	updates  []StockUpdate
}

func (s *importService) confirmOrder(ctx context.Context, order *ImportOrder, actor events.Actor) (*orderOutcome, error) {
	if err := validate(order); err != nil {
		return nil, err
	}
	payment := order.PaymentMethod
	if !payment.Valid() {
		payment = importer.MapPaymentMethod(string(payment))
	}
	date := order.Date
	if date.IsZero() {
		date = s.now()
	}

	out := &orderOutcome{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := s.stores.Transactions.FindByOrderNumber(tx, order.OrderNumber)
		if err != nil && !isNotFound(err) {
			return err
		}
		if old != nil && !order.IsExisting {
			return orderExists(order.OrderNumber)
		}

		if err := s.lockRows(tx, order, old); err != nil {
			return err
		}

		if old != nil {
			if err := s.reverse(tx, old); err != nil {
				return err
			}
			out.replaced = true
		}

		customerID, err := s.stores.Customers.Upsert(tx, order.CustomerName)
		if err != nil {
			return err
		}

		// the sheet's product price is already the line total
		total := decimal.Zero
		for _, it := range order.Items {
			total = total.Add(it.ProductPrice)
		}
		number := order.OrderNumber
		header := &model.Transaction{
			TransactionDate: storeTime(date),
			TotalAmount:     total,
			PaymentMethod:   payment,
			CustomerID:      customerID,
			OrderNumber:     &number,
			CreatedByUserID: actorID(actor),
		}
		if err := s.stores.Transactions.Create(tx, header); err != nil {
			// another confirm inserted the same number after our lookup
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return orderExists(order.OrderNumber)
			}
			return err
		}
		txID := header.TransactionID

		items := make([]model.TransactionItem, 0, len(order.Items))
		var ledger []model.StockHistory
		for _, it := range order.Items {
			line := model.TransactionItem{
				TransactionID: txID,
				ProductName:   it.ProductName,
				Quantity:      it.Quantity,
				PriceAtSale:   it.UnitPrice,
			}
			if it.MatchedData == nil || it.MatchedData.ID == 0 {
				items = append(items, line)
				continue
			}

			id := it.MatchedData.ID
			name := it.MatchedData.Name
			if name == "" {
				name = it.ProductName
			}
			line.ProductName = name
			if it.isBundle() {
				line.BundleID = &id
				if err := s.stores.Bundles.AdjustStock(tx, id, -it.Quantity, true); err != nil {
					return matchedMissing(err, "Bundle", id)
				}
				out.updates = append(out.updates, StockUpdate{Type: ItemTypeBundle, Name: name, QuantitySold: it.Quantity})
			} else {
				line.BookID = &id
				if err := s.stores.Books.AdjustStock(tx, id, -it.Quantity, true); err != nil {
					return matchedMissing(err, "Buku", id)
				}
				ledger = append(ledger, model.StockHistory{
					BookID:          id,
					QuantityChange:  -it.Quantity,
					Reason:          model.ReasonImportSale,
					TransactionID:   &txID,
					TransactionDate: storeTime(date),
				})
				out.updates = append(out.updates, StockUpdate{Type: ItemTypeBook, Name: name, QuantitySold: it.Quantity})
			}
			items = append(items, line)
		}

		if err := s.stores.Transactions.CreateItems(tx, items); err != nil {
			return err
		}
		return s.stores.Ledger.Append(tx, ledger...)
	})
	if err != nil {
		typed := apperror.EnsureTyped(err, "Gagal mengimpor pesanan "+order.OrderNumber)
		if apperror.Is(typed, apperror.KindIntegrity) {
			s.logger.Error("import order failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
		return nil, typed
	}
	return out, nil
}

// lockRows takes the row locks for every book and bundle the order touches,
// old and new, bundles first
func (s *importService) lockRows(tx *gorm.DB, order *ImportOrder, old *model.Transaction) error {
	var bookIDs, bundleIDs []uint
	for _, it := range order.Items {
		if it.MatchedData == nil || it.MatchedData.ID == 0 {
			continue
		}
		if it.isBundle() {
			bundleIDs = append(bundleIDs, it.MatchedData.ID)
		} else {
			bookIDs = append(bookIDs, it.MatchedData.ID)
		}
	}
	if old != nil {
		for _, it := range old.Items {
			if it.BundleID != nil {
				bundleIDs = append(bundleIDs, *it.BundleID)
			}
			if it.BookID != nil {
				bookIDs = append(bookIDs, *it.BookID)
			}
		}
	}

	if _, err := s.stores.Bundles.LockByIDs(tx, bundleIDs); err != nil {
		return err
	}
	_, err := s.stores.Books.LockByIDs(tx, bookIDs)
	return err
}

// reverse gives back the stock the old transaction took and removes it
// together with its ledger rows
func (s *importService) reverse(tx *gorm.DB, old *model.Transaction) error {
	for _, it := range old.Items {
		if it.BookID != nil {
			if err := s.stores.Books.AdjustStock(tx, *it.BookID, it.Quantity, true); err != nil && !isNotFound(err) {
				return err
			}
		}
		if it.BundleID != nil {
			if err := s.stores.Bundles.AdjustStock(tx, *it.BundleID, it.Quantity, true); err != nil && !isNotFound(err) {
				return err
			}
		}
	}
	if err := s.stores.Ledger.DeleteByTransaction(tx, old.TransactionID); err != nil {
		return err
	}
	return s.stores.Transactions.Delete(tx, old.TransactionID)
}

func (it ImportItem) isBundle() bool {
	return it.Type == ItemTypeBundle || (it.Type == "" && it.IsBundle)
}

func matchedMissing(err error, entity string, id uint) error {
	if isNotFound(err) {
		return apperror.NotFound(entity, id)
	}
	return err
}

// catalogMatcher holds the catalog names loaded once per preview
type catalogMatcher struct {
	books       []model.Book
	bundles     []model.Bundle
	bookNames   []string
	bundleNames []string
}

func newCatalogMatcher(books []model.Book, bundles []model.Bundle) *catalogMatcher {
	m := &catalogMatcher{books: books, bundles: bundles}
	for _, b := range books {
		m.bookNames = append(m.bookNames, b.Title)
	}
	for _, b := range bundles {
		m.bundleNames = append(m.bundleNames, b.BundleName)
	}
	return m
}

func (m *catalogMatcher) match(name string, bundle bool) *MatchedData {
	if bundle {
		i, score := importer.BestMatch(name, m.bundleNames)
		if i < 0 {
			return nil
		}
		b := m.bundles[i]
		return &MatchedData{
			ID:           b.BundleID,
			Name:         b.BundleName,
			DBPrice:      b.SellingPrice,
			CurrentStock: b.Stock,
			MatchScore:   percent(score),
		}
	}

	i, score := importer.BestMatch(name, m.bookNames)
	if i < 0 {
		return nil
	}
	b := m.books[i]
	isbn, author := b.ISBN, b.Author
	return &MatchedData{
		ID:           b.BookID,
		Name:         b.Title,
		ISBN:         &isbn,
		Author:       &author,
		DBPrice:      b.SellingPrice,
		CurrentStock: b.StockQty,
		MatchScore:   percent(score),
	}
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}

func orderExists(orderNumber string) error {
	return apperror.Conflict("ORDER_EXISTS",
		fmt.Sprintf("Nomor pesanan %s sudah ada", orderNumber)).WithDetail("order_number", orderNumber)
}
