// Package legacy maps the column names of the pre-existing catalog tables onto
// canonical field names. Each entity declares its aliases once; rows are
// canonicalized right after they are read and nothing past the repository
// sees a legacy column name.
package legacy

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical field names.
const (
	FieldID         = "id"
	FieldCode       = "code"
	FieldName       = "name"
	FieldActive     = "active"
	FieldCreditTerm = "credit_term_days"
)

// Table is the alias declaration of one legacy table.
type Table struct {
	Entity string
	Name   string
	// Aliases lists, per canonical field, the column names to try in priority order
	Aliases map[string][]string
}

// Clients is the legacy client table. Clients are keyed by tax code.
var Clients = Table{
	Entity: "client",
	Name:   "clientes",
	Aliases: map[string][]string{
		FieldID:         {"id", "id_cliente", "cliente_id"},
		FieldCode:       {"nit", "codigo", "cod_cliente", "code"},
		FieldName:       {"razon_social", "nombre", "name"},
		FieldActive:     {"activo", "estado", "active"},
		FieldCreditTerm: {"plazo", "dias_credito", "credit_term_days"},
	},
}

// Vendors is the legacy salesperson table. Vendors are keyed by employee code.
var Vendors = Table{
	Entity: "vendor",
	Name:   "vendedores",
	Aliases: map[string][]string{
		FieldID:     {"id", "id_vendedor", "vendedor_id"},
		FieldCode:   {"codigo", "cod_vendedor", "cedula", "code"},
		FieldName:   {"nombre", "name"},
		FieldActive: {"activo", "estado", "active"},
	},
}

// Sites is the legacy warehouse table.
var Sites = Table{
	Entity: "site",
	Name:   "bodegas",
	Aliases: map[string][]string{
		FieldID:   {"id", "id_bodega", "bodega_id"},
		FieldCode: {"codigo", "cod_bodega", "code"},
		FieldName: {"nombre", "descripcion", "name"},
	},
}

// Products is the legacy product table.
var Products = Table{
	Entity: "product",
	Name:   "productos",
	Aliases: map[string][]string{
		FieldID:   {"id", "id_producto", "producto_id"},
		FieldCode: {"codigo", "referencia", "cod_producto", "code"},
		FieldName: {"descripcion", "nombre", "name"},
	},
}

// Canonicalize returns a row keyed by canonical field names. Column names are
// matched case-insensitively; the first alias present wins. Unaliased columns are dropped.
func (t Table) Canonicalize(row map[string]any) map[string]any {
	lower := make(map[string]any, len(row))
	for k, v := range row {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}

	out := make(map[string]any, len(t.Aliases))
	for field, aliases := range t.Aliases {
		for _, alias := range aliases {
			if v, ok := lower[alias]; ok && v != nil {
				out[field] = v
				break
			}
		}
	}
	return out
}

// String renders a canonical value as text. Numeric ids come back as int64 or
// numeric; both are printed without decoration.
func String(row map[string]any, field string) string {
	switch v := row[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case decimal.Decimal:
		return v.String()
	case driver.Valuer:
		// pgtype.Numeric and friends
		dv, err := v.Value()
		if err != nil || dv == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(dv))
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads an activity flag. Legacy tables use booleans, 0/1, "S"/"N" and
// "A"/"I"; a missing column means active.
func Bool(row map[string]any, field string) bool {
	v, ok := row[field]
	if !ok || v == nil {
		return true
	}
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int32:
		return b != 0
	case int16:
		return b != 0
	}

	switch strings.ToUpper(String(row, field)) {
	case "0", "N", "NO", "I", "F", "FALSE", "INACTIVO":
		return false
	}
	return true
}

// IntPtr reads an optional non-negative integer; unparsable values are nil.
func IntPtr(row map[string]any, field string) *int {
	s := String(row, field)
	if s == "" {
		return nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		n := int(d.IntPart())
		if n >= 0 {
			return &n
		}
	}
	return nil
}
