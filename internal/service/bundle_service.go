package service

import (
	"context"
	"strconv"
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

type BundleComponent struct {
	BookID   uint `json:"book_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"gte=0"`
}

type BundleRequest struct {
	BundleName   string            `json:"bundle_name" validate:"required"`
	SellingPrice decimal.Decimal   `json:"selling_price" validate:"gt=0"`
	Stock        int               `json:"stock" validate:"gte=0"`
	Items        []BundleComponent `json:"items" validate:"required,min=1,dive"`
}

type SellBundleRequest struct {
	Quantity      int        `json:"quantity" validate:"gte=0"`
	TransactionID *uuid.UUID `json:"transaction_id"`
}

type SellBundleResult struct {
	BundleID     uint `json:"bundle_id"`
	QuantitySold int  `json:"quantity_sold"`
	Stock        int  `json:"stock"`
}

type BundleComponentView struct {
	BookID    uint            `json:"book_id"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title"`
	BookPrice decimal.Decimal `json:"book_price"`
}

type BundleView struct {
	BundleID     uint                  `json:"bundle_id"`
	BundleName   string                `json:"bundle_name"`
	SellingPrice decimal.Decimal       `json:"selling_price"`
	Stock        int                   `json:"stock"`
	IsActive     bool                  `json:"is_active"`
	CreatedAt    time.Time             `json:"created_at"`
	Items        []BundleComponentView `json:"items"`
}

type BundleService interface {
	List(ctx context.Context) ([]BundleView, error)
	Get(ctx context.Context, id uint) (*BundleView, error)
	Create(ctx context.Context, req *BundleRequest, actor events.Actor) (*BundleView, error)
	Update(ctx context.Context, id uint, req *BundleRequest, actor events.Actor) (*BundleView, error)
	Delete(ctx context.Context, id uint, actor events.Actor) error
	Sell(ctx context.Context, id uint, req *SellBundleRequest, actor events.Actor) (*SellBundleResult, error)
}

type bundleService struct {
	db       *gorm.DB
	stores   *repository.Stores
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewBundleService(db *gorm.DB, stores *repository.Stores, notifier *Notifier, logger *zap.Logger) BundleService {
	return &bundleService{db: db, stores: stores, notifier: notifier, logger: logger.Named("bundle"), now: time.Now}
}

func (s *bundleService) List(ctx context.Context) ([]BundleView, error) {
	bundles, err := s.stores.Bundles.FindActive()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data bundle")
	}
	views := make([]BundleView, 0, len(bundles))
	for i := range bundles {
		views = append(views, toBundleView(&bundles[i]))
	}
	return views, nil
}

func (s *bundleService) Get(ctx context.Context, id uint) (*BundleView, error) {
	bundle, err := s.stores.Bundles.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Bundle", id)
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data bundle")
	}
	if !bundle.IsActive {
		return nil, apperror.NotFound("Bundle", id)
	}
	view := toBundleView(bundle)
	return &view, nil
}

func (s *bundleService) Create(ctx context.Context, req *BundleRequest, actor events.Actor) (*BundleView, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	bundle := &model.Bundle{
		BundleName:   req.BundleName,
		SellingPrice: req.SellingPrice,
		Stock:        req.Stock,
		IsActive:     true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.components(tx, req.Items)
		if err != nil {
			return err
		}
		if err := s.stores.Bundles.Create(tx, bundle); err != nil {
			return err
		}
		return s.stores.Bundles.ReplaceItems(tx, bundle.BundleID, items)
	})
	if err != nil {
		return nil, s.fail("create bundle", err, "Gagal membuat bundle")
	}

	s.notifier.Committed(ctx, withActor(bundleEvent(events.BundleCreated, bundle), actor,
		actorMessage(actor, "membuat bundle '%s'", bundle.BundleName)))
	return s.Get(ctx, bundle.BundleID)
}

func (s *bundleService) Update(ctx context.Context, id uint, req *BundleRequest, actor events.Actor) (*BundleView, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var bundle *model.Bundle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.stores.Bundles.LockByIDs(tx, []uint{id})
		if err != nil {
			return err
		}
		var ok bool
		if bundle, ok = locked[id]; !ok || !bundle.IsActive {
			return apperror.NotFound("Bundle", id)
		}
		items, err := s.components(tx, req.Items)
		if err != nil {
			return err
		}

		bundle.BundleName = req.BundleName
		bundle.SellingPrice = req.SellingPrice
		bundle.Stock = req.Stock
		bundle.UpdatedAt = s.now()
		if err := s.stores.Bundles.Update(tx, bundle); err != nil {
			return err
		}
		return s.stores.Bundles.ReplaceItems(tx, id, items)
	})
	if err != nil {
		return nil, s.fail("update bundle", err, "Gagal memperbarui bundle")
	}

	s.notifier.Committed(ctx, withActor(bundleEvent(events.BundleUpdated, bundle), actor,
		actorMessage(actor, "memperbarui bundle '%s'", bundle.BundleName)))
	return s.Get(ctx, id)
}

func (s *bundleService) Delete(ctx context.Context, id uint, actor events.Actor) error {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.stores.Bundles.Deactivate(tx, id)
		return err
	})
	if err != nil {
		return s.fail("delete bundle", err, "Gagal menghapus bundle")
	}
	if !deleted {
		return apperror.NotFound("Bundle", id)
	}

	s.notifier.Committed(ctx, withActor(bundleEvent(events.BundleDeleted, &model.Bundle{BundleID: id}), actor,
		actorMessage(actor, "menghapus bundle #%d", id)))
	return nil
}

// Sell moves bundle stock and component book stock together
func (s *bundleService) Sell(ctx context.Context, id uint, req *SellBundleRequest, actor events.Actor) (*SellBundleResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	var plan *stockPlan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.TransactionID != nil {
			exists, err := s.stores.Transactions.Exists(tx, *req.TransactionID)
			if err != nil {
				return err
			}
			if !exists {
				return apperror.NotFound("Transaksi", req.TransactionID.String())
			}
		}

		var err error
		plan, err = lockPlan(tx, s.stores, nil, []BundleLine{{BundleID: id, Quantity: qty}})
		if err != nil {
			return err
		}
		if err := plan.check(); err != nil {
			return err
		}
		if err := plan.apply(tx, s.stores); err != nil {
			return err
		}

		bundle := plan.bundles[id]
		date := storeTime(s.now())
		entries := make([]model.StockHistory, 0, len(bundle.Items))
		for _, comp := range bundle.Items {
			entries = append(entries, model.StockHistory{
				BookID:          comp.BookID,
				QuantityChange:  -(qty * comp.Quantity),
				Reason:          model.ReasonBundlePrefix + bundle.BundleName,
				TransactionID:   req.TransactionID,
				TransactionDate: date,
			})
		}
		return s.stores.Ledger.Append(tx, entries...)
	})
	if err != nil {
		return nil, s.fail("sell bundle", err, "Gagal menjual bundle")
	}

	bundle := plan.bundles[id]
	bundle.Stock -= qty
	s.notifier.Metrics().RecordStock("out", plan.unitsOut())
	event := bundleEvent(events.BundleSold, bundle)
	event.Type = events.TypeStockUpdate
	s.notifier.Committed(ctx, withActor(event, actor,
		actorMessage(actor, "menjual %d bundle '%s'", qty, bundle.BundleName)))

	return &SellBundleResult{BundleID: id, QuantitySold: qty, Stock: bundle.Stock}, nil
}

// components checks every book exists and merges duplicate entries
func (s *bundleService) components(tx *gorm.DB, req []BundleComponent) ([]model.BundleItem, error) {
	ids := make([]uint, 0, len(req))
	qty := map[uint]int{}
	for _, c := range req {
		if _, seen := qty[c.BookID]; !seen {
			ids = append(ids, c.BookID)
		}
		n := c.Quantity
		if n == 0 {
			n = 1
		}
		qty[c.BookID] += n
	}

	books, err := s.stores.Books.LockByIDs(tx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]model.BundleItem, 0, len(ids))
	for _, id := range ids {
		if _, ok := books[id]; !ok {
			return nil, apperror.NotFound("Buku", id)
		}
		items = append(items, model.BundleItem{BookID: id, Quantity: qty[id]})
	}
	return items, nil
}

func (s *bundleService) fail(op string, err error, message string) error {
	typed := apperror.EnsureTyped(err, message)
	if apperror.Is(typed, apperror.KindInsufficientStock) {
		s.notifier.Metrics().RecordStockRejection("sell_bundle")
	}
	if apperror.Is(typed, apperror.KindIntegrity) {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	return typed
}

func toBundleView(b *model.Bundle) BundleView {
	view := BundleView{
		BundleID:     b.BundleID,
		BundleName:   b.BundleName,
		SellingPrice: b.SellingPrice,
		Stock:        b.Stock,
		IsActive:     b.IsActive,
		CreatedAt:    b.CreatedAt,
		Items:        make([]BundleComponentView, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		c := BundleComponentView{BookID: it.BookID, Quantity: it.Quantity}
		if it.Book != nil {
			c.Title = it.Book.Title
			c.BookPrice = it.Book.SellingPrice
		}
		view.Items = append(view.Items, c)
	}
	return view
}

func bundleEvent(action string, b *model.Bundle) events.Event {
	e := events.New(events.TypeCatalog, action, payload{
		"bundle_id":   b.BundleID,
		"bundle_name": b.BundleName,
		"stock":       b.Stock,
	})
	e.Key = "bundle-" + strconv.FormatUint(uint64(b.BundleID), 10)
	return e
}
