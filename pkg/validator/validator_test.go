package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type priced struct {
	Title string           `validate:"required"`
	Price decimal.Decimal  `validate:"gte=0"`
	Cost  *decimal.Decimal `validate:"omitempty,gt=0"`
}

func TestValidateStruct_Decimal(t *testing.T) {
	ok := priced{Title: "Bumi Manusia", Price: decimal.NewFromInt(85000)}
	assert.Empty(t, ValidateStruct(&ok))

	negative := priced{Title: "Bumi Manusia", Price: decimal.NewFromInt(-1)}
	errs := ValidateStruct(&negative)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "priced.Price", errs[0].FailedField)
		assert.Equal(t, "gte", errs[0].Tag)
	}

	zero := decimal.Zero
	zeroCost := priced{Title: "Bumi Manusia", Cost: &zero}
	errs = ValidateStruct(&zeroCost)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "gt", errs[0].Tag)
	}
}

func TestValidateStruct_Required(t *testing.T) {
	errs := ValidateStruct(&priced{})
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "required", errs[0].Tag)
		assert.Equal(t, "Field 'priced.Title' failed on tag 'required'", errs[0].String())
	}
}
