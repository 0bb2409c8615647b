package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockHistoryLimit caps the per-book history view
const StockHistoryLimit = 100

type CreateBookRequest struct {
	ISBN          string          `json:"isbn" validate:"required,max=32"`
	Title         string          `json:"title" validate:"required,max=255"`
	Author        string          `json:"author" validate:"max=255"`
	Category      string          `json:"category" validate:"max=100"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	SellingPrice  decimal.Decimal `json:"selling_price" validate:"gte=0"`
	StockQty      int             `json:"stock_qty" validate:"gte=0"`
}

// UpdateBookRequest has no stock field; stock only moves through stock operations
type UpdateBookRequest struct {
	ISBN          string          `json:"isbn" validate:"required,max=32"`
	Title         string          `json:"title" validate:"required,max=255"`
	Author        string          `json:"author" validate:"max=255"`
	Category      string          `json:"category" validate:"max=100"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	SellingPrice  decimal.Decimal `json:"selling_price" validate:"gte=0"`
}

type BookService interface {
	List(ctx context.Context, filter repository.BookFilter) ([]model.Book, error)
	Get(ctx context.Context, id uint) (*model.Book, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, req *CreateBookRequest, actor events.Actor) (*model.Book, error)
	Update(ctx context.Context, id uint, req *UpdateBookRequest, actor events.Actor) (*model.Book, error)
	Delete(ctx context.Context, id uint, force bool, actor events.Actor) error
	StockHistory(ctx context.Context, id uint) ([]model.StockHistory, error)
}

type bookService struct {
	db       *gorm.DB
	stores   *repository.Stores
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewBookService(db *gorm.DB, stores *repository.Stores, notifier *Notifier, logger *zap.Logger) BookService {
	return &bookService{db: db, stores: stores, notifier: notifier, logger: logger.Named("book"), now: time.Now}
}

func (s *bookService) List(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	books, err := s.stores.Books.FindAll(filter)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data buku")
	}
	if books == nil {
		books = []model.Book{}
	}
	return books, nil
}

func (s *bookService) Get(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.stores.Books.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Buku", id)
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data buku")
	}
	return book, nil
}

func (s *bookService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.stores.Books.Categories()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil kategori")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *bookService) Create(ctx context.Context, req *CreateBookRequest, actor events.Actor) (*model.Book, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	book := &model.Book{
		ISBN:          strings.TrimSpace(req.ISBN),
		Title:         strings.TrimSpace(req.Title),
		Author:        req.Author,
		Category:      req.Category,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		StockQty:      req.StockQty,
	}
	if _, err := s.stores.Books.FindByISBN(book.ISBN); err == nil {
		return nil, isbnConflict(book.ISBN)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.stores.Books.Create(tx, book); err != nil {
			return err
		}
		if book.StockQty <= 0 {
			return nil
		}
		return s.stores.Ledger.Append(tx, model.StockHistory{
			BookID:          book.BookID,
			QuantityChange:  book.StockQty,
			Reason:          model.ReasonInitialStock,
			TransactionDate: storeTime(s.now()),
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, isbnConflict(book.ISBN)
		}
		return nil, s.fail("create book", err, "Gagal menambah buku")
	}

	s.notifier.Committed(ctx, withActor(bookEvent(events.BookCreated, book), actor,
		actorMessage(actor, "menambah buku '%s'", book.Title)))
	return book, nil
}

func (s *bookService) Update(ctx context.Context, id uint, req *UpdateBookRequest, actor events.Actor) (*model.Book, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	isbn := strings.TrimSpace(req.ISBN)
	if isbn != book.ISBN {
		if _, err := s.stores.Books.FindByISBN(isbn); err == nil {
			return nil, isbnConflict(isbn)
		}
	}

	book.ISBN = isbn
	book.Title = strings.TrimSpace(req.Title)
	book.Author = req.Author
	book.Category = req.Category
	book.PurchasePrice = req.PurchasePrice
	book.SellingPrice = req.SellingPrice
	book.UpdatedAt = s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.stores.Books.Update(tx, book)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, isbnConflict(isbn)
		}
		return nil, s.fail("update book", err, "Gagal memperbarui buku")
	}

	s.notifier.Committed(ctx, withActor(bookEvent(events.BookUpdated, book), actor,
		actorMessage(actor, "memperbarui buku '%s'", book.Title)))
	return book, nil
}

// Delete refuses books still referenced by sales or bundles. With force the
// dependent ledger rows, sale lines, bundle components and emptied
// transactions go in the same unit of work.
func (s *bookService) Delete(ctx context.Context, id uint, force bool, actor events.Actor) error {
	var book *model.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.stores.Books.LockByIDs(tx, []uint{id})
		if err != nil {
			return err
		}
		var ok bool
		if book, ok = locked[id]; !ok {
			return apperror.NotFound("Buku", id)
		}

		if !force {
			refs, err := s.stores.Books.CountReferences(tx, id)
			if err != nil {
				return err
			}
			if refs > 0 {
				return bookInUse(book)
			}
			if err := s.stores.Ledger.DeleteByBook(tx, id); err != nil {
				return err
			}
			return s.stores.Books.Delete(tx, id)
		}

		if err := s.stores.Ledger.DeleteByBook(tx, id); err != nil {
			return err
		}
		touched, err := s.stores.Transactions.DeleteItemsByBook(tx, id)
		if err != nil {
			return err
		}
		// surviving headers must still equal the sum of their lines
		if err := s.stores.Transactions.RecomputeTotals(tx, touched); err != nil {
			return err
		}
		if err := s.stores.Bundles.DeleteItemsByBook(tx, id); err != nil {
			return err
		}
		if err := s.stores.Transactions.DeleteOrphans(tx); err != nil {
			return err
		}
		return s.stores.Books.Delete(tx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return bookInUse(&model.Book{BookID: id})
		}
		return s.fail("delete book", err, "Gagal menghapus buku")
	}

	s.notifier.Committed(ctx, withActor(bookEvent(events.BookDeleted, book), actor,
		actorMessage(actor, "menghapus buku '%s'", book.Title)))
	return nil
}

func (s *bookService) StockHistory(ctx context.Context, id uint) ([]model.StockHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.stores.Ledger.FindByBook(id, StockHistoryLimit)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil riwayat stok")
	}
	return history, nil
}

func (s *bookService) fail(op string, err error, message string) error {
	typed := apperror.EnsureTyped(err, message)
	if apperror.Is(typed, apperror.KindIntegrity) {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	return typed
}

func isbnConflict(isbn string) error {
	return apperror.Conflict("ISBN_EXISTS", "ISBN sudah terdaftar").WithDetail("isbn", isbn)
}

func bookInUse(book *model.Book) error {
	return apperror.Conflict("BOOK_IN_USE", "Buku masih digunakan di transaksi atau bundle").
		WithDetail("book_id", book.BookID).
		WithDetail("hint", "Gunakan ?force=true untuk menghapus beserta data terkait")
}

func bookEvent(action string, book *model.Book) events.Event {
	e := bookStockEvent(action, book, 0)
	e.Type = events.TypeCatalog
	return e
}
