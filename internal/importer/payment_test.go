package importer

import (
	"testing"

	"go-bookstore-pos/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestMapPaymentMethod(t *testing.T) {
	cases := map[string]model.PaymentMethod{
		"":                      model.PaymentCash,
		"QRIS":                  model.PaymentQRIS,
		"Transfer Bank BCA":     model.PaymentTransfer,
		"Bank Mandiri":          model.PaymentTransfer,
		"Kartu Debit":           model.PaymentDebit,
		"kartu kredit":          model.PaymentDebit,
		"COD (Bayar di Tempat)": model.PaymentCash,
		"Tunai":                 model.PaymentCash,
		"ShopeePay":             model.PaymentTransfer,
		"SPayLater":             model.PaymentTransfer,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapPaymentMethod(in), in)
	}
}
