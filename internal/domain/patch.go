package domain

// Opt is an explicitly optional field for patch payloads. The zero value
// means "not supplied"; Some(v) means "set to v, even if v is the zero
// value". This keeps "absent" and "explicitly cleared" distinct.
type Opt[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

func (o Opt[T]) Get(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

// StockRecordPatch updates threshold fields on a stock record. Quantity and
// the derived fields are never patchable; they move only through movements.
type StockRecordPatch struct {
	MinQuantity  Opt[int64]
	MaxQuantity  Opt[int64]
	ReorderPoint Opt[int64]
}

func (p StockRecordPatch) IsZero() bool {
	return !p.MinQuantity.Set && !p.MaxQuantity.Set && !p.ReorderPoint.Set
}

// Apply mutates the record in place and reports whether anything changed.
func (p StockRecordPatch) Apply(r *StockRecord) bool {
	changed := false
	if p.MinQuantity.Set && r.MinQuantity != p.MinQuantity.Value {
		r.MinQuantity = p.MinQuantity.Value
		changed = true
	}
	if p.MaxQuantity.Set && r.MaxQuantity != p.MaxQuantity.Value {
		r.MaxQuantity = p.MaxQuantity.Value
		changed = true
	}
	if p.ReorderPoint.Set && r.ReorderPoint != p.ReorderPoint.Value {
		r.ReorderPoint = p.ReorderPoint.Value
		changed = true
	}
	return changed
}
