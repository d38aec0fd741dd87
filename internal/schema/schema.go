package schema

import (
	"fmt"

	"toursync/internal"
)

// Target describes one sync destination: its table, the field acting as the
// reconciliation key, and the column schema with header synonyms operators
// actually use in their sheets.
type Target struct {
	Table          string
	ExternalKey    string
	ModifiedField  string
	HistoryTracked bool
	Fields         []internal.FieldDescriptor
}

func (t Target) Field(name string) (internal.FieldDescriptor, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return internal.FieldDescriptor{}, false
}

func (t Target) RequiredFields() []string {
	out := []string{}
	for _, f := range t.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

var targets = []Target{
	{
		Table:          "reservations",
		ExternalKey:    "reservation_number",
		ModifiedField:  "updated_at",
		HistoryTracked: true,
		Fields: []internal.FieldDescriptor{
			{Name: "reservation_number", Type: internal.FieldString, Required: true,
				Synonyms: []string{"booking number", "booking ref", "reserva", "no de reserva", "channel ref", "confirmation number"}},
			{Name: "customer_name", Type: internal.FieldString, Required: true,
				Synonyms: []string{"client", "guest", "guest name", "cliente", "nombre", "lead traveler"}},
			{Name: "tour_name", Type: internal.FieldString,
				Synonyms: []string{"tour", "product", "excursion", "actividad", "activity"}},
			{Name: "reservation_date", Type: internal.FieldDate, Required: true,
				Synonyms: []string{"date", "tour date", "fecha", "fecha de reserva", "travel date"}},
			{Name: "pax", Type: internal.FieldNumber,
				Synonyms: []string{"passengers", "people", "personas", "guests", "group size"}},
			{Name: "total_amount", Type: internal.FieldNumber,
				Synonyms: []string{"amount", "total", "price", "importe", "monto"}},
			{Name: "paid", Type: internal.FieldBool,
				Synonyms: []string{"payment", "payment status", "pagado", "paid status"}},
			{Name: "channel", Type: internal.FieldString,
				Synonyms: []string{"source", "ota", "canal", "agency", "agencia"}},
			{Name: "notes", Type: internal.FieldString,
				Synonyms: []string{"comments", "remarks", "notas", "observaciones"}},
			{Name: "updated_at", Type: internal.FieldDate,
				Synonyms: []string{"last modified", "modified", "actualizado", "last update"}},
		},
	},
	{
		Table:          "tours",
		ExternalKey:    "tour_code",
		HistoryTracked: true,
		Fields: []internal.FieldDescriptor{
			{Name: "tour_code", Type: internal.FieldString, Required: true,
				Synonyms: []string{"code", "product code", "codigo", "sku"}},
			{Name: "tour_name", Type: internal.FieldString, Required: true,
				Synonyms: []string{"name", "tour", "product", "nombre", "título", "title"}},
			{Name: "duration_days", Type: internal.FieldNumber,
				Synonyms: []string{"duration", "days", "dias", "length"}},
			{Name: "base_price", Type: internal.FieldNumber,
				Synonyms: []string{"price", "precio", "rate", "tarifa"}},
			{Name: "active", Type: internal.FieldBool,
				Synonyms: []string{"enabled", "status", "activo", "available"}},
		},
	},
	{
		Table:          "payment_methods",
		ExternalKey:    "method_code",
		HistoryTracked: true,
		Fields: []internal.FieldDescriptor{
			{Name: "method_code", Type: internal.FieldString, Required: true,
				Synonyms: []string{"code", "codigo", "id"}},
			{Name: "method_name", Type: internal.FieldString, Required: true,
				Synonyms: []string{"name", "method", "nombre", "metodo de pago", "payment method"}},
			{Name: "fee_rate", Type: internal.FieldNumber,
				Synonyms: []string{"fee", "commission", "comision", "rate"}},
			{Name: "enabled", Type: internal.FieldBool,
				Synonyms: []string{"active", "activo", "status"}},
		},
	},
	{
		Table:          "reservation_expenses",
		ExternalKey:    "expense_ref",
		ModifiedField:  "expense_date",
		HistoryTracked: true,
		Fields: []internal.FieldDescriptor{
			{Name: "expense_ref", Type: internal.FieldString, Required: true,
				Synonyms: []string{"ref", "reference", "expense id", "referencia", "folio"}},
			{Name: "reservation_number", Type: internal.FieldString, Required: true,
				Synonyms: []string{"booking number", "booking ref", "reserva", "no de reserva"}},
			{Name: "category", Type: internal.FieldString,
				Synonyms: []string{"type", "concept", "concepto", "categoria"}},
			{Name: "amount", Type: internal.FieldNumber, Required: true,
				Synonyms: []string{"total", "cost", "importe", "monto", "valor"}},
			{Name: "expense_date", Type: internal.FieldDate,
				Synonyms: []string{"date", "fecha", "paid on"}},
			{Name: "supplier", Type: internal.FieldString,
				Synonyms: []string{"vendor", "provider", "proveedor"}},
		},
	},
}

func Targets() []Target {
	return targets
}

func Find(table string) (Target, error) {
	for _, t := range targets {
		if t.Table == table {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown sync target: %s", table)
}
