package repository

import "errors"

// ErrStockGuard is returned when a guarded decrement would drive stock below zero
var ErrStockGuard = errors.New("stock guard rejected decrement")
