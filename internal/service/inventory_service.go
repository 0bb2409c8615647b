package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BookLine struct {
	BookID      uint             `json:"book_id" validate:"required"`
	Quantity    int              `json:"quantity" validate:"gt=0"`
	PriceAtSale *decimal.Decimal `json:"price_at_sale" validate:"omitempty,gte=0"`
}

type BundleLine struct {
	BundleID uint `json:"bundle_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"gt=0"`
}

type SaleRequest struct {
	Items         []BookLine          `json:"items" validate:"dive"`
	Bundles       []BundleLine        `json:"bundles" validate:"dive"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	CustomerName  string              `json:"customer_name"`
}

type SaleResult struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type StockInRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type StockOutRequest struct {
	Quantity          int              `json:"quantity" validate:"gt=0"`
	TransactionDate   string           `json:"transaction_date"`
	PriceAtSale       *decimal.Decimal `json:"price_at_sale" validate:"omitempty,gte=0"`
	CreateTransaction bool             `json:"create_transaction"`
}

type StockResult struct {
	BookID        uint       `json:"book_id"`
	StockQty      int        `json:"stock_qty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

// InventoryService records sales and manual stock movements. Every method
// is one atomic unit of work.
type InventoryService interface {
	RecordSale(ctx context.Context, req *SaleRequest, actor events.Actor) (*SaleResult, error)
	StockIn(ctx context.Context, bookID uint, req *StockInRequest, actor events.Actor) (*StockResult, error)
	StockOut(ctx context.Context, bookID uint, req *StockOutRequest, actor events.Actor) (*StockResult, error)
}

type inventoryService struct {
	db       *gorm.DB
	stores   *repository.Stores
	notifier *Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewInventoryService(db *gorm.DB, stores *repository.Stores, notifier *Notifier, loc *time.Location, logger *zap.Logger) InventoryService {
	if loc == nil {
		loc = time.Local
	}
	return &inventoryService{
		db:       db,
		stores:   stores,
		notifier: notifier,
		loc:      loc,
		logger:   logger.Named("inventory"),
		now:      time.Now,
	}
}

type saleInput struct {
	items        []BookLine
	bundles      []BundleLine
	payment      model.PaymentMethod
	customerName string
	date         time.Time
	createdBy    *uint
}

func (s *inventoryService) RecordSale(ctx context.Context, req *SaleRequest, actor events.Actor) (*SaleResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 && len(req.Bundles) == 0 {
		return nil, apperror.Validation("Transaksi harus memiliki minimal 1 item")
	}
	payment := req.PaymentMethod
	if payment == "" {
		payment = model.PaymentCash
	}
	if !payment.Valid() {
		return nil, apperror.Validationf("Metode pembayaran tidak valid: %s", payment)
	}

	in := saleInput{
		items:        req.Items,
		bundles:      req.Bundles,
		payment:      payment,
		customerName: req.CustomerName,
		date:         s.now(),
		createdBy:    actorID(actor),
	}

	var (
		header *model.Transaction
		plan   *stockPlan
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		header, plan, err = recordSaleTx(tx, s.stores, in)
		return err
	})
	if err != nil {
		return nil, s.fail("record sale", err, "Gagal mencatat transaksi")
	}

	m := s.notifier.Metrics()
	total, _ := header.TotalAmount.Float64()
	m.RecordSale(string(payment), total)
	m.RecordStock("out", plan.unitsOut())

	event := events.New(events.TypeStockUpdate, events.SaleRecorded, payload{
		"transaction_id": header.TransactionID,
		"total_amount":   header.TotalAmount,
		"payment_method": header.PaymentMethod,
		"lines":          len(req.Items) + len(req.Bundles),
	})
	event.Key = header.TransactionID.String()
	s.notifier.Committed(ctx, withActor(event, actor,
		actorMessage(actor, "mencatat transaksi %s", header.TotalAmount.StringFixed(0))))

	return &SaleResult{TransactionID: header.TransactionID, TotalAmount: header.TotalAmount}, nil
}

// recordSaleTx writes header, lines, stock decrements and ledger rows inside
// the caller's transaction. Nothing is written before every check passed.
func recordSaleTx(tx *gorm.DB, stores *repository.Stores, in saleInput) (*model.Transaction, *stockPlan, error) {
	customerID, err := stores.Customers.Upsert(tx, in.customerName)
	if err != nil {
		return nil, nil, err
	}

	plan, err := lockPlan(tx, stores, in.items, in.bundles)
	if err != nil {
		return nil, nil, err
	}
	if err := plan.check(); err != nil {
		return nil, nil, err
	}

	date := storeTime(in.date)
	items := make([]model.TransactionItem, 0, len(in.items)+len(in.bundles))
	total := decimal.Zero
	for _, l := range in.items {
		book := plan.books[l.BookID]
		price := book.SellingPrice
		if l.PriceAtSale != nil {
			price = *l.PriceAtSale
		}
		bookID := l.BookID
		item := model.TransactionItem{BookID: &bookID, ProductName: book.Title, Quantity: l.Quantity, PriceAtSale: price}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	for _, l := range in.bundles {
		bundle := plan.bundles[l.BundleID]
		bundleID := l.BundleID
		item := model.TransactionItem{BundleID: &bundleID, ProductName: bundle.BundleName, Quantity: l.Quantity, PriceAtSale: bundle.SellingPrice}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	header := &model.Transaction{
		TransactionDate: date,
		TotalAmount:     total,
		PaymentMethod:   in.payment,
		CustomerID:      customerID,
		CreatedByUserID: in.createdBy,
	}
	if err := stores.Transactions.Create(tx, header); err != nil {
		return nil, nil, err
	}
	for i := range items {
		items[i].TransactionID = header.TransactionID
	}
	if err := stores.Transactions.CreateItems(tx, items); err != nil {
		return nil, nil, err
	}

	if err := plan.apply(tx, stores); err != nil {
		return nil, nil, err
	}

	txID := header.TransactionID
	entries := make([]model.StockHistory, 0, len(in.items))
	for _, l := range in.items {
		entries = append(entries, model.StockHistory{
			BookID:          l.BookID,
			QuantityChange:  -l.Quantity,
			Reason:          model.ReasonSale,
			TransactionID:   &txID,
			TransactionDate: date,
		})
	}
	for _, l := range in.bundles {
		bundle := plan.bundles[l.BundleID]
		for _, comp := range bundle.Items {
			entries = append(entries, model.StockHistory{
				BookID:          comp.BookID,
				QuantityChange:  -(l.Quantity * comp.Quantity),
				Reason:          model.ReasonBundlePrefix + bundle.BundleName,
				TransactionID:   &txID,
				TransactionDate: date,
			})
		}
	}
	if err := stores.Ledger.Append(tx, entries...); err != nil {
		return nil, nil, err
	}

	header.Items = items
	return header, plan, nil
}

func (s *inventoryService) StockIn(ctx context.Context, bookID uint, req *StockInRequest, actor events.Actor) (*StockResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var book *model.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.stores.Books.LockByIDs(tx, []uint{bookID})
		if err != nil {
			return err
		}
		var ok bool
		if book, ok = locked[bookID]; !ok {
			return apperror.NotFound("Buku", bookID)
		}
		if err := s.stores.Books.AdjustStock(tx, bookID, req.Quantity, false); err != nil {
			return err
		}
		book.StockQty += req.Quantity
		return s.stores.Ledger.Append(tx, model.StockHistory{
			BookID:          bookID,
			QuantityChange:  req.Quantity,
			Reason:          model.ReasonStockIn,
			TransactionDate: storeTime(s.now()),
		})
	})
	if err != nil {
		return nil, s.fail("stock in", err, "Gagal menambah stok")
	}

	s.notifier.Metrics().RecordStock("in", req.Quantity)
	s.notifier.Committed(ctx, withActor(bookStockEvent(events.StockIn, book, req.Quantity), actor,
		actorMessage(actor, "menambah %d stok '%s'", req.Quantity, book.Title)))

	return &StockResult{BookID: bookID, StockQty: book.StockQty}, nil
}

func (s *inventoryService) StockOut(ctx context.Context, bookID uint, req *StockOutRequest, actor events.Actor) (*StockResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	date, err := s.parseDate(req.TransactionDate)
	if err != nil {
		return nil, err
	}

	var (
		book   *model.Book
		header *model.Transaction
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.CreateTransaction {
			var plan *stockPlan
			var err error
			header, plan, err = recordSaleTx(tx, s.stores, saleInput{
				items:     []BookLine{{BookID: bookID, Quantity: req.Quantity, PriceAtSale: req.PriceAtSale}},
				payment:   model.PaymentCash,
				date:      date,
				createdBy: actorID(actor),
			})
			if err != nil {
				return err
			}
			book = plan.books[bookID]
			book.StockQty -= req.Quantity
			return nil
		}

		locked, err := s.stores.Books.LockByIDs(tx, []uint{bookID})
		if err != nil {
			return err
		}
		var ok bool
		if book, ok = locked[bookID]; !ok {
			return apperror.NotFound("Buku", bookID)
		}
		if book.StockQty < req.Quantity {
			return apperror.InsufficientStock(book.Title, book.StockQty, req.Quantity).WithDetail("book_id", bookID)
		}
		if err := s.stores.Books.AdjustStock(tx, bookID, -req.Quantity, false); err != nil {
			return err
		}
		book.StockQty -= req.Quantity
		return s.stores.Ledger.Append(tx, model.StockHistory{
			BookID:          bookID,
			QuantityChange:  -req.Quantity,
			Reason:          model.ReasonSale,
			TransactionDate: storeTime(date),
		})
	})
	if err != nil {
		return nil, s.fail("stock out", err, "Gagal mengurangi stok")
	}

	m := s.notifier.Metrics()
	m.RecordStock("out", req.Quantity)
	result := &StockResult{BookID: bookID, StockQty: book.StockQty}
	if header != nil {
		total, _ := header.TotalAmount.Float64()
		m.RecordSale(string(header.PaymentMethod), total)
		result.TransactionID = &header.TransactionID
	}

	s.notifier.Committed(ctx, withActor(bookStockEvent(events.StockOut, book, req.Quantity), actor,
		actorMessage(actor, "mengurangi %d stok '%s'", req.Quantity, book.Title)))

	return result, nil
}

// parseDate accepts RFC3339 or a plain date in the shop's zone; empty is now
func (s *inventoryService) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.Validationf("Format tanggal tidak valid: %s", value)
}

// fail logs and types an error leaving an atomic unit
func (s *inventoryService) fail(op string, err error, message string) error {
	typed := apperror.EnsureTyped(err, message)
	if apperror.Is(typed, apperror.KindInsufficientStock) {
		s.notifier.Metrics().RecordStockRejection(strings.ReplaceAll(op, " ", "_"))
	}
	if apperror.Is(typed, apperror.KindIntegrity) {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	return typed
}

func bookStockEvent(action string, book *model.Book, quantity int) events.Event {
	e := events.New(events.TypeStockUpdate, action, payload{
		"book_id":   book.BookID,
		"isbn":      book.ISBN,
		"title":     book.Title,
		"quantity":  quantity,
		"new_stock": book.StockQty,
	})
	e.Key = "book-" + strconv.FormatUint(uint64(book.BookID), 10)
	return e
}

func actorID(actor events.Actor) *uint {
	if actor.ID == 0 {
		return nil
	}
	id := actor.ID
	return &id
}
