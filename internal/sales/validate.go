package sales

import (
	"math"
	"net/mail"
	"strings"
	"unicode/utf8"

	"ventas.io/internal/apperr"
)

// maxTextLen is the width of the varchar columns on clientes, moneda and venta.
const maxTextLen = 30

// Upper bounds on sale amounts. A line is at most MaxAmount × MaxQuantity,
// which keeps every per-line product inside int64.
const (
	MaxAmount   int64 = 1_000_000_000_000
	MaxQuantity int64 = 1_000_000
)

// ComputeTotal returns max(0, Σ (unit_price − line_discount) × quantity − discount).
func ComputeTotal(items []NewLineItem, discount int64) int64 {
	var subtotal int64
	for _, it := range items {
		subtotal += (it.UnitPrice - it.LineDiscount) * it.Quantity
	}
	return clampTotal(subtotal, discount)
}

// ComputeStoredTotal applies the same rule to persisted lines.
func ComputeStoredTotal(items []LineItem, discount int64) int64 {
	var subtotal int64
	for _, it := range items {
		subtotal += (it.UnitPrice - it.LineDiscount) * it.Quantity
	}
	return clampTotal(subtotal, discount)
}

// checkedSubtotal sums the validated lines and reports false when the sum
// leaves the int64 range.
func checkedSubtotal(items []NewLineItem) (int64, bool) {
	var subtotal int64
	for _, it := range items {
		line := (it.UnitPrice - it.LineDiscount) * it.Quantity
		if (line > 0 && subtotal > math.MaxInt64-line) || (line < 0 && subtotal < math.MinInt64-line) {
			return 0, false
		}
		subtotal += line
	}
	return subtotal, true
}

func clampTotal(subtotal, discount int64) int64 {
	total := subtotal - discount
	if total < 0 {
		return 0
	}
	return total
}

func checkText(field, value string, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return apperr.Invalid("%s is required", field)
	}
	if utf8.RuneCountInString(value) > maxTextLen {
		return apperr.Invalid("%s must be at most %d characters", field, maxTextLen)
	}
	return nil
}

func checkEmail(value string) error {
	if err := checkText("email", value, true); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return apperr.Invalid("email is not a valid address")
	}
	return nil
}

func validateNewClient(in NewClient) error {
	if err := checkText("nombre", in.Name, true); err != nil {
		return err
	}
	if err := checkText("tipo", in.Kind, false); err != nil {
		return err
	}
	if err := checkText("telefono", in.Phone, false); err != nil {
		return err
	}
	if err := checkEmail(in.Email); err != nil {
		return err
	}
	return checkText("notas", in.Notes, false)
}

func validateClientPatch(p ClientPatch) error {
	fields := []struct {
		name string
		opt  Optional[string]
	}{
		{"nombre", p.Name},
		{"tipo", p.Kind},
		{"telefono", p.Phone},
		{"notas", p.Notes},
	}
	for _, f := range fields {
		if err := checkText(f.name, f.opt.Value, false); err != nil {
			return err
		}
	}
	if p.Email.Set && p.Email.Value != "" {
		return checkEmail(p.Email.Value)
	}
	return nil
}

func validateNewCurrency(in NewCurrency) error {
	return checkText("nombre", in.Name, true)
}

func validateCurrencyPatch(p CurrencyPatch) error {
	return checkText("nombre", p.Name.Value, false)
}

func validateNewSale(in NewSale) error {
	if len(in.Items) == 0 {
		return apperr.Invalid("items must not be empty")
	}
	if in.Discount < 0 {
		return apperr.Invalid("descuento must be >= 0")
	}
	if in.Discount > MaxAmount {
		return apperr.Invalid("descuento must be <= %d", MaxAmount)
	}
	if in.ClientID < 1 {
		return apperr.Invalid("cliente_id must be >= 1")
	}
	if in.CurrencyID < 1 {
		return apperr.Invalid("moneda_id must be >= 1")
	}
	if err := checkText("razon_social", in.LegalName, true); err != nil {
		return err
	}
	if err := checkText("nit", in.TaxID, true); err != nil {
		return err
	}
	for i, it := range in.Items {
		switch {
		case it.ProductID < 1:
			return apperr.Invalid("items[%d].producto_id must be >= 1", i)
		case it.Quantity < 1:
			return apperr.Invalid("items[%d].cantidad must be >= 1", i)
		case it.UnitPrice < 0:
			return apperr.Invalid("items[%d].precio_unitario must be >= 0", i)
		case it.LineDiscount < 0:
			return apperr.Invalid("items[%d].descuento_item must be >= 0", i)
		case it.Quantity > MaxQuantity:
			return apperr.Invalid("items[%d].cantidad must be <= %d", i, MaxQuantity)
		case it.UnitPrice > MaxAmount:
			return apperr.Invalid("items[%d].precio_unitario must be <= %d", i, MaxAmount)
		case it.LineDiscount > MaxAmount:
			return apperr.Invalid("items[%d].descuento_item must be <= %d", i, MaxAmount)
		}
	}
	if _, ok := checkedSubtotal(in.Items); !ok {
		return apperr.Invalid("sale total is out of range")
	}
	return nil
}

func validateSalePatch(p SalePatch) error {
	if p.Discount.Set {
		if p.Discount.Null {
			return apperr.Invalid("descuento must not be null")
		}
		if p.Discount.Value < 0 {
			return apperr.Invalid("descuento must be >= 0")
		}
		if p.Discount.Value > MaxAmount {
			return apperr.Invalid("descuento must be <= %d", MaxAmount)
		}
	}
	if err := checkText("razon_social", p.LegalName.Value, false); err != nil {
		return err
	}
	return checkText("nit", p.TaxID.Value, false)
}
