package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go-bookstore-pos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptySheet    = errors.New("file tidak berisi data")
	ErrMissingColumn = errors.New("kolom wajib tidak ditemukan")
)

type field int

const (
	colOrderNumber field = iota
	colDate
	colPayment
	colCustomer
	colTotalPayment
	colProduct
	colQuantity
	colPrice
)

// header aliases per logical column, first hit wins
var headerAliases = map[field][]string{
	colOrderNumber:  {"Nomor Pesanan", "No. Pesanan", "Order Number"},
	colDate:         {"Waktu Pengiriman Diatur", "Waktu Pesanan Dibuat", "Order Date"},
	colPayment:      {"Metode Pembayaran", "Payment Method"},
	colCustomer:     {"Username (Pembeli)", "Username", "Nama Pembeli", "Customer Name"},
	colTotalPayment: {"Total Pembayaran", "Total Payment"},
	colProduct:      {"Nama Produk", "Product Name"},
	colQuantity:     {"Jumlah Produk Dipesan", "Jumlah", "Quantity"},
	colPrice:        {"Total Harga Produk", "Harga Produk", "Price"},
}

// Line is one product row of an order.
type Line struct {
	ProductName  string
	IsBundle     bool
	Quantity     int
	ProductPrice decimal.Decimal
	UnitPrice    decimal.Decimal
}

// Order groups the rows sharing an order number.
type Order struct {
	OrderNumber   string
	Date          time.Time
	PaymentMethod model.PaymentMethod
	CustomerName  string
	TotalPayment  decimal.Decimal
	Lines         []Line
}

// Row is one data row keyed by logical column.
type Row map[field]Cell

func (r Row) get(f field) Cell {
	return r[f]
}

// ReadOrders parses the first sheet of an xlsx workbook into orders, in the
// order their numbers first appear.
func ReadOrders(r io.Reader, loc *time.Location, now time.Time) ([]Order, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("gagal membaca file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("gagal membaca sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	columns, err := resolveHeader(rows[0])
	if err != nil {
		return nil, err
	}

	var data []Row
	for i, values := range rows[1:] {
		row := Row{}
		for fld, col := range columns {
			if col >= len(values) {
				continue
			}
			row[fld] = readCell(f, sheet, col, i+2, values[col])
		}
		data = append(data, row)
	}

	return groupOrders(data, loc, now), nil
}

func resolveHeader(header []string) (map[field]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	columns := make(map[field]int)
	for fld, aliases := range headerAliases {
		for _, alias := range aliases {
			if col, ok := index[strings.ToLower(alias)]; ok {
				columns[fld] = col
				break
			}
		}
	}

	for _, required := range []field{colOrderNumber, colProduct} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, headerAliases[required][0])
		}
	}
	return columns, nil
}

func readCell(f *excelize.File, sheet string, col, row int, raw string) Cell {
	axis, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return Text(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return Text(raw)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula,
		excelize.CellTypeBool, excelize.CellTypeError:
		return Text(raw)
	}
	return Number(raw)
}

// groupOrders turns parsed rows into orders. Rows without an order number or
// product name are skipped; order level fields come from the first row.
func groupOrders(rows []Row, loc *time.Location, now time.Time) []Order {
	var orders []Order
	position := make(map[string]int)

	for _, row := range rows {
		number := row.get(colOrderNumber).String()
		rawName := row.get(colProduct).String()
		if number == "" || rawName == "" {
			continue
		}

		idx, ok := position[number]
		if !ok {
			orders = append(orders, Order{
				OrderNumber:   number,
				Date:          DateOrNow(row.get(colDate), loc, now),
				PaymentMethod: MapPaymentMethod(row.get(colPayment).String()),
				CustomerName:  row.get(colCustomer).String(),
				TotalPayment:  row.get(colTotalPayment).Decimal(),
			})
			idx = len(orders) - 1
			position[number] = idx
		}

		name, isBundle := StripBundleMarker(rawName)
		qty := 1
		if q := row.get(colQuantity); !q.Empty() {
			if n := q.Decimal().IntPart(); n >= 1 {
				qty = int(n)
			}
		}
		price := row.get(colPrice).Decimal()

		orders[idx].Lines = append(orders[idx].Lines, Line{
			ProductName:  name,
			IsBundle:     isBundle,
			Quantity:     qty,
			ProductPrice: price,
			UnitPrice:    price.Div(decimal.NewFromInt(int64(qty))).Round(2),
		})
	}
	return orders
}
