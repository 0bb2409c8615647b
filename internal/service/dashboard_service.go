package service

import (
	"context"
	"time"

	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	latestSalesLimit    = 5
	defaultMovementDays = 7
	maxMovementDays     = 90
)

type LatestSale struct {
	TransactionID   uuid.UUID           `json:"transaction_id"`
	TransactionDate time.Time           `json:"transaction_date"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	TotalItems      int                 `json:"total_items"`
	PaymentMethod   model.PaymentMethod `json:"payment_method"`
	CustomerName    *string             `json:"customer_name"`
}

type DashboardMetrics struct {
	RevenueToday      decimal.Decimal `json:"revenueToday"`
	TransactionsToday int64           `json:"transactionsToday"`
	TotalSKU          int64           `json:"totalSKU"`
	LowStockCount     int64           `json:"lowStockCount"`
	LatestSales       []LatestSale    `json:"latestSales"`
}

type StockMovement struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type DashboardService interface {
	Metrics(ctx context.Context) (*DashboardMetrics, error)
	StockMovement(ctx context.Context, days int) ([]StockMovement, error)
}

type dashboardService struct {
	stores *repository.Stores
	loc    *time.Location
	now    func() time.Time
}

func NewDashboardService(stores *repository.Stores, loc *time.Location) DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &dashboardService{stores: stores, loc: loc, now: time.Now}
}

func (s *dashboardService) Metrics(ctx context.Context) (*DashboardMetrics, error) {
	today := startOfDay(s.now().In(s.loc))

	count, revenue, err := s.stores.Transactions.SummaryBetween(today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memuat metrik dashboard")
	}
	sku, err := s.stores.Books.CountAll()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memuat metrik dashboard")
	}
	low, err := s.stores.Books.CountLowStock(model.LowStockThreshold)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memuat metrik dashboard")
	}
	latest, err := s.stores.Transactions.LatestSales(latestSalesLimit)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memuat metrik dashboard")
	}

	out := &DashboardMetrics{
		RevenueToday:      revenue,
		TransactionsToday: count,
		TotalSKU:          sku,
		LowStockCount:     low,
		LatestSales:       make([]LatestSale, 0, len(latest)),
	}
	for _, t := range latest {
		sale := LatestSale{
			TransactionID:   t.TransactionID,
			TransactionDate: t.TransactionDate.In(s.loc),
			TotalAmount:     t.TotalAmount,
			PaymentMethod:   t.PaymentMethod,
		}
		for _, it := range t.Items {
			sale.TotalItems += it.Quantity
		}
		if t.Customer != nil {
			name := t.Customer.Name
			sale.CustomerName = &name
		}
		out.LatestSales = append(out.LatestSales, sale)
	}
	return out, nil
}

// StockMovement sums ledger deltas per day for the last days days, today included
func (s *dashboardService) StockMovement(ctx context.Context, days int) ([]StockMovement, error) {
	if days <= 0 {
		days = defaultMovementDays
	}
	if days > maxMovementDays {
		days = maxMovementDays
	}

	today := startOfDay(s.now().In(s.loc))
	start := today.AddDate(0, 0, -(days - 1))
	end := today.AddDate(0, 0, 1)
	entries, err := s.stores.Ledger.Between(start, end)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memuat pergerakan stok")
	}

	out := make([]StockMovement, 0, days)
	index := make(map[string]int, days)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		index[day] = len(out)
		out = append(out, StockMovement{Date: day})
	}
	for _, e := range entries {
		i, ok := index[e.TransactionDate.In(s.loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		if e.QuantityChange > 0 {
			out[i].Inbound += e.QuantityChange
		} else {
			out[i].Outbound -= e.QuantityChange
		}
	}
	return out, nil
}
