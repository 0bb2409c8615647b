package service

import (
	"errors"
	"sort"

	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"gorm.io/gorm"
)

// stockPlan holds the locked rows and summed demand of one unit of work.
// Bundles are locked before books, both in ascending id order.
type stockPlan struct {
	bundles      map[uint]*model.Bundle
	books        map[uint]*model.Book
	bundleDemand map[uint]int
	bookDemand   map[uint]int
	// first-seen order, so errors name the item the caller listed first
	bundleOrder []uint
	bookOrder   []uint
}

func lockPlan(tx *gorm.DB, stores *repository.Stores, bookLines []BookLine, bundleLines []BundleLine) (*stockPlan, error) {
	p := &stockPlan{
		bundleDemand: map[uint]int{},
		bookDemand:   map[uint]int{},
	}

	bundleIDs := make([]uint, 0, len(bundleLines))
	for _, l := range bundleLines {
		if _, seen := p.bundleDemand[l.BundleID]; !seen {
			p.bundleOrder = append(p.bundleOrder, l.BundleID)
		}
		p.bundleDemand[l.BundleID] += l.Quantity
		bundleIDs = append(bundleIDs, l.BundleID)
	}

	var err error
	p.bundles, err = stores.Bundles.LockByIDs(tx, bundleIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range p.bundleOrder {
		b, ok := p.bundles[id]
		if !ok || !b.IsActive {
			return nil, apperror.NotFound("Bundle", id)
		}
	}

	addBook := func(id uint, qty int) {
		if _, seen := p.bookDemand[id]; !seen {
			p.bookOrder = append(p.bookOrder, id)
		}
		p.bookDemand[id] += qty
	}
	for _, l := range bookLines {
		addBook(l.BookID, l.Quantity)
	}
	for _, id := range p.bundleOrder {
		for _, comp := range p.bundles[id].Items {
			addBook(comp.BookID, p.bundleDemand[id]*comp.Quantity)
		}
	}

	p.books, err = stores.Books.LockByIDs(tx, p.bookOrder)
	if err != nil {
		return nil, err
	}
	for _, id := range p.bookOrder {
		if _, ok := p.books[id]; !ok {
			return nil, apperror.NotFound("Buku", id)
		}
	}
	return p, nil
}

// check rejects the plan when any bundle or book would go below zero
func (p *stockPlan) check() error {
	for _, id := range p.bundleOrder {
		b := p.bundles[id]
		if need := p.bundleDemand[id]; b.Stock < need {
			return apperror.InsufficientStock(b.BundleName, b.Stock, need).WithDetail("bundle_id", id)
		}
	}
	for _, id := range p.bookOrder {
		b := p.books[id]
		if need := p.bookDemand[id]; b.StockQty < need {
			return apperror.InsufficientStock(b.Title, b.StockQty, need).WithDetail("book_id", id)
		}
	}
	return nil
}

// apply runs the guarded decrements
func (p *stockPlan) apply(tx *gorm.DB, stores *repository.Stores) error {
	for _, id := range sortedKeys(p.bundleDemand) {
		b := p.bundles[id]
		if err := stores.Bundles.AdjustStock(tx, id, -p.bundleDemand[id], false); err != nil {
			if errors.Is(err, repository.ErrStockGuard) {
				return apperror.InsufficientStock(b.BundleName, b.Stock, p.bundleDemand[id])
			}
			return err
		}
	}
	for _, id := range sortedKeys(p.bookDemand) {
		b := p.books[id]
		if err := stores.Books.AdjustStock(tx, id, -p.bookDemand[id], false); err != nil {
			if errors.Is(err, repository.ErrStockGuard) {
				return apperror.InsufficientStock(b.Title, b.StockQty, p.bookDemand[id])
			}
			return err
		}
	}
	return nil
}

func (p *stockPlan) unitsOut() int {
	total := 0
	for _, n := range p.bookDemand {
		total += n
	}
	return total
}

func sortedKeys(m map[uint]int) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
