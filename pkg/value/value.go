// Package value implements the tagged-union Value model of spec.md §3.1:
// documents and arrays of typed scalar leaves, with a total order and a
// collation-parameterized equality (§6.3).
package value

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind tags the variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Int32
	Int64
	Double
	Decimal
	String
	Boolean
	DateTime
	ObjectId
	Guid
	Binary
	MinValue
	MaxValue
	Array
	Document
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "Null"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Double:
		return "Double"
	case Decimal:
		return "Decimal"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	case DateTime:
		return "DateTime"
	case ObjectId:
		return "ObjectId"
	case Guid:
		return "Guid"
	case Binary:
		return "Binary"
	case MinValue:
		return "MinValue"
	case MaxValue:
		return "MaxValue"
	case Array:
		return "Array"
	case Document:
		return "Document"
	default:
		return "unknown"
	}
}

// Value is the tagged union described in spec.md §3.1. The zero Value is
// Null.
type Value struct {
	kind Kind

	i      int64
	f      float64
	s      string
	b      bool
	t      time.Time
	dec    decimal.Decimal
	oid    ObjectID
	guid   uuid.UUID
	bin    []byte
	arr    []Value
	doc    *Doc
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func NewNull() Value     { return Value{kind: Null} }
func NewMin() Value      { return Value{kind: MinValue} }
func NewMax() Value      { return Value{kind: MaxValue} }
func NewInt32(n int32) Value  { return Value{kind: Int32, i: int64(n)} }
func NewInt64(n int64) Value  { return Value{kind: Int64, i: n} }
func NewDouble(f float64) Value { return Value{kind: Double, f: f} }
func NewDecimal(d decimal.Decimal) Value { return Value{kind: Decimal, dec: d} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewBoolean(b bool) Value  { return Value{kind: Boolean, b: b} }
func NewDateTime(t time.Time) Value { return Value{kind: DateTime, t: t.UTC().Truncate(time.Millisecond)} }
func NewObjectID(id ObjectID) Value  { return Value{kind: ObjectId, oid: id} }
func NewGuid(id uuid.UUID) Value     { return Value{kind: Guid, guid: id} }
func NewBinary(b []byte) Value       { return Value{kind: Binary, bin: append([]byte(nil), b...)} }
func NewArray(items []Value) Value   { return Value{kind: Array, arr: items} }
func NewDocument(d *Doc) Value       { return Value{kind: Document, doc: d} }

// IsNull reports whether the value is the Null variant.
func (v Value) IsNull() bool { return v.kind == Null }

// IsNumeric reports whether the value is one of Int32/Int64/Double/Decimal.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case Int32, Int64, Double, Decimal:
		return true
	default:
		return false
	}
}

func (v Value) AsInt32() int32        { return int32(v.i) }
func (v Value) AsInt64() int64        { return v.i }
func (v Value) AsDouble() float64     { return v.f }
func (v Value) AsDecimal() decimal.Decimal { return v.dec }
func (v Value) AsString() string      { return v.s }
func (v Value) AsBoolean() bool       { return v.b }
func (v Value) AsDateTime() time.Time { return v.t }
func (v Value) AsObjectID() ObjectID  { return v.oid }
func (v Value) AsGuid() uuid.UUID     { return v.guid }
func (v Value) AsBinary() []byte      { return v.bin }
func (v Value) AsArray() []Value      { return v.arr }
func (v Value) AsDocument() *Doc      { return v.doc }

// AsDecimalValue widens any numeric variant to decimal.Decimal, used by the
// widened-arithmetic rule in spec.md §3.1/§4.3.
func (v Value) AsDecimalValue() decimal.Decimal {
	switch v.kind {
	case Int32, Int64:
		return decimal.NewFromInt(v.i)
	case Double:
		return decimal.NewFromFloat(v.f)
	case Decimal:
		return v.dec
	default:
		return decimal.Zero
	}
}

// AsFloat64 widens any numeric variant to float64.
func (v Value) AsFloat64() float64 {
	switch v.kind {
	case Int32, Int64:
		return float64(v.i)
	case Double:
		return v.f
	case Decimal:
		f, _ := v.dec.Float64()
		return f
	default:
		return 0
	}
}

// Truthy implements the loose boolean coercion used by predicate
// evaluation when a non-boolean scalar reaches a boolean context (used
// internally by FILTER/quantified comparisons; exported for callers that
// need the same policy, e.g. the engine's Cursor testing WHERE terms).
func (v Value) Truthy() bool {
	switch v.kind {
	case Boolean:
		return v.b
	case Null:
		return false
	default:
		return true
	}
}
