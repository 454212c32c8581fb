package value

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// wireValue is the on-the-wire shape persisted by the catalog's document
// codec (spec.md §2 domain stack: msgpack replaces the teacher's
// encoding/json row storage). Exactly one of the typed fields is populated,
// selected by K; omitempty keeps documents compact the way the teacher's
// JSON encoding of sparse rows did.
type wireValue struct {
	K   string      `msgpack:"k"`
	I   int64       `msgpack:"i,omitempty"`
	F   float64     `msgpack:"f,omitempty"`
	S   string      `msgpack:"s,omitempty"`
	B   bool        `msgpack:"b,omitempty"`
	T   time.Time   `msgpack:"t,omitempty"`
	Bin []byte      `msgpack:"x,omitempty"`
	Arr []wireValue `msgpack:"a,omitempty"`
	Doc []wireField `msgpack:"d,omitempty"`
}

type wireField struct {
	K string    `msgpack:"k"`
	V wireValue `msgpack:"v"`
}

func (v Value) toWire() (wireValue, error) {
	w := wireValue{K: v.kind.String()}
	switch v.kind {
	case Null, MinValue, MaxValue:
		// no payload
	case Int32, Int64:
		w.I = v.i
	case Double:
		w.F = v.f
	case Decimal:
		w.S = v.dec.String()
	case String:
		w.S = v.s
	case Boolean:
		w.B = v.b
	case DateTime:
		w.T = v.t
	case ObjectId:
		w.Bin = append([]byte(nil), v.oid[:]...)
	case Guid:
		w.Bin = append([]byte(nil), v.guid[:]...)
	case Binary:
		w.Bin = append([]byte(nil), v.bin...)
	case Array:
		w.Arr = make([]wireValue, len(v.arr))
		for i, item := range v.arr {
			iw, err := item.toWire()
			if err != nil {
				return w, err
			}
			w.Arr[i] = iw
		}
	case Document:
		fields := v.doc.Fields()
		w.Doc = make([]wireField, len(fields))
		for i, f := range fields {
			fw, err := f.Value.toWire()
			if err != nil {
				return w, err
			}
			w.Doc[i] = wireField{K: f.Key, V: fw}
		}
	}
	return w, nil
}

func fromWire(w wireValue) (Value, error) {
	switch w.K {
	case "Null":
		return NewNull(), nil
	case "MinValue":
		return NewMin(), nil
	case "MaxValue":
		return NewMax(), nil
	case "Int32":
		return NewInt32(int32(w.I)), nil
	case "Int64":
		return NewInt64(w.I), nil
	case "Double":
		return NewDouble(w.F), nil
	case "Decimal":
		d, err := decimal.NewFromString(w.S)
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(d), nil
	case "String":
		return NewString(w.S), nil
	case "Boolean":
		return NewBoolean(w.B), nil
	case "DateTime":
		return NewDateTime(w.T), nil
	case "ObjectId":
		var id ObjectID
		copy(id[:], w.Bin)
		return NewObjectID(id), nil
	case "Guid":
		id, err := uuid.FromBytes(w.Bin)
		if err != nil {
			return Value{}, err
		}
		return NewGuid(id), nil
	case "Binary":
		return NewBinary(w.Bin), nil
	case "Array":
		items := make([]Value, len(w.Arr))
		for i, iw := range w.Arr {
			item, err := fromWire(iw)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return NewArray(items), nil
	case "Document":
		d := NewDoc()
		for _, fw := range w.Doc {
			fv, err := fromWire(fw.V)
			if err != nil {
				return Value{}, err
			}
			if err := d.Set(fw.K, fv); err != nil {
				return Value{}, err
			}
		}
		return NewDocument(d), nil
	default:
		return NewNull(), nil
	}
}

// MarshalMsgpack implements msgpack.Marshaler.
func (v Value) MarshalMsgpack() ([]byte, error) {
	w, err := v.toWire()
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (v *Value) UnmarshalMsgpack(data []byte) error {
	var w wireValue
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return err
	}
	val, err := fromWire(w)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Encode marshals the value to msgpack bytes, the form persisted by the
// catalog (spec.md §2).
func Encode(v Value) ([]byte, error) {
	return v.MarshalMsgpack()
}

// Decode unmarshals msgpack bytes produced by Encode.
func Decode(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalMsgpack(data); err != nil {
		return Value{}, err
	}
	return v, nil
}
