package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionListLimit caps the merged IN/OUT view
const TransactionListLimit = 500

const (
	TypeIn  = "IN"
	TypeOut = "OUT"
)

// TransactionQuery is the raw query string of the list endpoint. Dates are
// YYYY-MM-DD in the shop's zone, both ends inclusive.
type TransactionQuery struct {
	Query     string
	Category  string
	StartDate string
	EndDate   string
	Type      string
}

// TransactionRow is one entry of the merged list: a whole sale (OUT) or a
// manual stock-in ledger entry (IN)
type TransactionRow struct {
	ID            *uuid.UUID      `json:"id"`
	Date          time.Time       `json:"date"`
	TransType     string          `json:"trans_type"`
	ISBN          string          `json:"isbn"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Quantity      int             `json:"quantity"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod *string         `json:"payment_method"`
	CustomerName  *string         `json:"customerName"`
	ItemCount     int             `json:"item_count"`
}

type TransactionLine struct {
	BookID      *uint           `json:"book_id"`
	BundleID    *uint           `json:"bundle_id"`
	ISBN        string          `json:"isbn"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IsBundle    bool            `json:"is_bundle"`
	IsUnmatched bool            `json:"is_unmatched"`
}

type TransactionDetail struct {
	TransactionID   uuid.UUID           `json:"transaction_id"`
	TransactionDate time.Time           `json:"transaction_date"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	OrderNumber     *string             `json:"order_number,omitempty"`
	CustomerID      *uint               `json:"customer_id"`
	CustomerName    *string             `json:"customer_name"`
	Items           []TransactionLine   `json:"items"`
}

type TransactionService interface {
	List(ctx context.Context, q TransactionQuery) ([]TransactionRow, error)
	Get(ctx context.Context, id string) (*TransactionDetail, error)
}

type transactionService struct {
	stores *repository.Stores
	loc    *time.Location
}

func NewTransactionService(stores *repository.Stores, loc *time.Location) TransactionService {
	if loc == nil {
		loc = time.Local
	}
	return &transactionService{stores: stores, loc: loc}
}

func (s *transactionService) List(ctx context.Context, q TransactionQuery) ([]TransactionRow, error) {
	filter := repository.TransactionFilter{
		Query:    strings.TrimSpace(q.Query),
		Category: q.Category,
	}
	var err error
	if filter.StartDate, err = dayStart(q.StartDate, s.loc, 0); err != nil {
		return nil, err
	}
	if filter.EndDate, err = dayStart(q.EndDate, s.loc, 1); err != nil {
		return nil, err
	}

	typ := strings.ToUpper(strings.TrimSpace(q.Type))
	if typ != "" && typ != TypeIn && typ != TypeOut {
		return nil, apperror.Validationf("type harus IN atau OUT")
	}

	rows := []TransactionRow{}
	if typ != TypeIn {
		lines, err := s.stores.Transactions.ListSaleLines(filter)
		if err != nil {
			return nil, apperror.EnsureTyped(err, "Gagal mengambil data transaksi")
		}
		rows = append(rows, groupSales(lines)...)
	}
	if typ != TypeOut {
		filter.Limit = TransactionListLimit
		inbound, err := s.stores.Ledger.ListInbound(filter)
		if err != nil {
			return nil, apperror.EnsureTyped(err, "Gagal mengambil data transaksi")
		}
		for _, r := range inbound {
			rows = append(rows, inboundRow(r))
		}
	}

	sortRowsDesc(rows)
	if len(rows) > TransactionListLimit {
		rows = rows[:TransactionListLimit]
	}
	return rows, nil
}

func (s *transactionService) Get(ctx context.Context, id string) (*TransactionDetail, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NotFound("Transaksi", id)
	}
	t, err := s.stores.Transactions.FindByID(txID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Transaksi", id)
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil detail transaksi")
	}

	detail := &TransactionDetail{
		TransactionID:   t.TransactionID,
		TransactionDate: t.TransactionDate.In(s.loc),
		TotalAmount:     t.TotalAmount,
		PaymentMethod:   t.PaymentMethod,
		OrderNumber:     t.OrderNumber,
		CustomerID:      t.CustomerID,
		Items:           make([]TransactionLine, 0, len(t.Items)),
	}
	if t.Customer != nil {
		detail.CustomerName = &t.Customer.Name
	}
	for _, it := range t.Items {
		line := TransactionLine{
			BookID:    it.BookID,
			BundleID:  it.BundleID,
			Title:     it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceAtSale,
			Subtotal:  it.Subtotal(),
		}
		switch {
		case it.Book != nil:
			line.ISBN = it.Book.ISBN
			line.Title = it.Book.Title
			line.Author = it.Book.Author
		case it.Bundle != nil:
			line.Title = it.Bundle.BundleName
			line.IsBundle = true
		case it.BundleID != nil:
			line.IsBundle = true
		case it.BookID == nil:
			line.IsUnmatched = true
		}
		detail.Items = append(detail.Items, line)
	}
	return detail, nil
}

// groupSales folds sale lines into one row per transaction, keeping the
// newest-first order of the lines
func groupSales(lines []repository.SaleLineRow) []TransactionRow {
	var rows []TransactionRow
	index := map[uuid.UUID]int{}
	for _, l := range lines {
		i, ok := index[l.TransactionID]
		if !ok {
			id := l.TransactionID
			payment := l.PaymentMethod
			rows = append(rows, TransactionRow{
				ID:            &id,
				Date:          l.TransactionDate,
				TransType:     TypeOut,
				PaymentMethod: &payment,
				CustomerName:  l.CustomerName,
			})
			i = len(rows) - 1
			index[l.TransactionID] = i
		}
		r := &rows[i]
		r.ISBN = appendList(r.ISBN, deref(l.ISBN))
		r.Title = appendList(r.Title, l.Name())
		r.Author = appendList(r.Author, deref(l.Author))
		r.Quantity += l.Quantity
		r.Total = r.Total.Add(l.PriceAtSale.Mul(decimal.NewFromInt(int64(l.Quantity))))
		r.ItemCount++
	}
	return rows
}

func inboundRow(r repository.InboundRow) TransactionRow {
	row := TransactionRow{
		Date:      r.TransactionDate,
		TransType: TypeIn,
		ISBN:      deref(r.ISBN),
		Title:     deref(r.Title),
		Author:    deref(r.Author),
		Quantity:  r.QuantityChange,
		ItemCount: 1,
	}
	if r.PurchasePrice.Valid {
		row.Total = r.PurchasePrice.Decimal.Mul(decimal.NewFromInt(int64(r.QuantityChange)))
	}
	return row
}

func sortRowsDesc(rows []TransactionRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
}

// dayStart parses YYYY-MM-DD in loc and shifts it by addDays. Empty is nil.
func dayStart(value string, loc *time.Location, addDays int) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, apperror.Validationf("Format tanggal tidak valid: %s", value)
	}
	t = t.AddDate(0, 0, addDays)
	return &t, nil
}

func appendList(list, v string) string {
	if v == "" {
		return list
	}
	for _, existing := range strings.Split(list, ", ") {
		if existing == v {
			return list
		}
	}
	if list == "" {
		return v
	}
	return list + ", " + v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
