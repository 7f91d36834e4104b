package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineSubtotalIsExact(t *testing.T) {
	assert.Equal(t, "19.95", Format(LineSubtotal(5, d("3.99"))))
	assert.Equal(t, "0.30", Format(LineSubtotal(3, d("0.10"))))
}

func TestSumHasNoPennyDrift(t *testing.T) {
	values := make([]decimal.Decimal, 0, 1000)
	for i := 0; i < 1000; i++ {
		values = append(values, d("0.10"))
	}
	assert.True(t, Sum(values...).Equal(d("100")), "expected exactly 100, got %s", Sum(values...))
}

func TestTaxAndTotal(t *testing.T) {
	subtotal := d("19.95")
	tax := Tax(subtotal, d("0.10"))
	assert.Equal(t, "2.00", Format(tax), "1.995 rounds half away from zero")

	total := Total(subtotal, d("1.00"), tax)
	assert.Equal(t, "20.95", Format(total))
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, "1.50", Format(PercentOf(d("15.00"), d("10"))))
}

func TestParse(t *testing.T) {
	v, err := Parse(" 3.99 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("3.99")))

	_, err = Parse("3.999")
	assert.Error(t, err)

	_, err = Parse("abc")
	assert.Error(t, err)

	v, err = Parse("4.50")
	require.NoError(t, err)
	assert.Equal(t, "4.50", Format(v))
}
