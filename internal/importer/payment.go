package importer

import (
	"strings"

	"go-bookstore-pos/internal/model"
)

// MapPaymentMethod turns the marketplace payment label into one of ours.
// Unknown labels are e-commerce payments and count as transfer.
func MapPaymentMethod(text string) model.PaymentMethod {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case s == "":
		return model.PaymentCash
	case strings.Contains(s, "qris"):
		return model.PaymentQRIS
	case strings.Contains(s, "transfer"), strings.Contains(s, "bank"):
		return model.PaymentTransfer
	case strings.Contains(s, "debit"), strings.Contains(s, "kartu"):
		return model.PaymentDebit
	case strings.Contains(s, "cod"), strings.Contains(s, "tunai"), strings.Contains(s, "cash"):
		return model.PaymentCash
	default:
		return model.PaymentTransfer
	}
}
