package value

import (
	"testing"
	"time"

	"github.com/quiverdb/quiverdb/pkg/collation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalOrderAcrossVariants(t *testing.T) {
	coll := collation.Invariant()
	ordered := []Value{
		NewNull(),
		NewMin(),
		NewInt32(5),
		NewDateTime(time.Unix(1000, 0)),
		NewString("abc"),
		mustDoc(t, Field{Key: "a", Value: NewInt32(1)}),
		NewArray([]Value{NewInt32(1)}),
		NewBinary([]byte{1, 2}),
		NewObjectID(ObjectID{1}),
		NewGuid(mustUUID()),
		NewBoolean(false),
		NewBoolean(true),
		NewMax(),
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, Compare(ordered[i], ordered[i+1], coll),
			"expected %v < %v", ordered[i].Kind(), ordered[i+1].Kind())
	}
}

func TestNullLessThanAnyOtherVariant(t *testing.T) {
	coll := collation.Invariant()
	others := []Value{NewInt32(0), NewString(""), NewBoolean(false), NewMax()}
	for _, v := range others {
		assert.Equal(t, -1, Compare(NewNull(), v, coll))
	}
}

func TestNumericWideningAcrossTypes(t *testing.T) {
	coll := collation.Invariant()
	assert.Equal(t, 0, Compare(NewInt32(5), NewInt64(5), coll))
	assert.Equal(t, 0, Compare(NewInt32(5), NewDouble(5.0), coll))
	assert.Equal(t, -1, Compare(NewInt32(5), NewDouble(5.5), coll))
}

func TestDocumentKeyRejectsNulCharacter(t *testing.T) {
	d := NewDoc()
	err := d.Set("ba\x00d", NewNull())
	require.Error(t, err)
}

func TestDocOrderedInsertion(t *testing.T) {
	d := NewDoc()
	require.NoError(t, d.Set("b", NewInt32(2)))
	require.NoError(t, d.Set("a", NewInt32(1)))
	require.NoError(t, d.Set("b", NewInt32(20)))
	assert.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Get("b")
	require.True(t, ok)
	assert.Equal(t, int32(20), v.AsInt32())
}

func TestMsgpackRoundTrip(t *testing.T) {
	doc := NewDoc()
	require.NoError(t, doc.Set("name", NewString("Ada")))
	require.NoError(t, doc.Set("age", NewInt32(30)))
	require.NoError(t, doc.Set("tags", NewArray([]Value{NewString("x"), NewString("y")})))
	original := NewDocument(doc)

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, Document, decoded.Kind())
	assert.Equal(t, []string{"name", "age", "tags"}, decoded.AsDocument().Keys())
	name, _ := decoded.AsDocument().Get("name")
	assert.Equal(t, "Ada", name.AsString())
}

func mustDoc(t *testing.T, fields ...Field) Value {
	t.Helper()
	d, err := DocOf(fields...)
	require.NoError(t, err)
	return NewDocument(d)
}

func mustUUID() (u [16]byte) {
	u[0] = 1
	return u
}
