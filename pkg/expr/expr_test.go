package expr

import (
	"testing"

	"github.com/quiverdb/quiverdb/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayLiteralEvaluatesToArrayValue(t *testing.T) {
	n, err := Compile("[1,2]")
	require.NoError(t, err)
	v, err := n.ExecuteScalar(value.NewNull(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, value.Array, v.Kind())
	arr := v.AsArray()
	require.Len(t, arr, 2)
	assert.Equal(t, int32(1), arr[0].AsInt32())
	assert.Equal(t, int32(2), arr[1].AsInt32())
}

func TestFieldsOfStarredPath(t *testing.T) {
	n, err := Compile("$.Items[*].Type")
	require.NoError(t, err)
	assert.Equal(t, []string{"Items"}, n.Fields())
}

func TestFieldsWithFilterAndAllQuantifier(t *testing.T) {
	n, err := Compile("Items[$.Root = 1].Type all = Age")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Items", "Root", "Age"}, n.Fields())
	assert.True(t, n.IsAll())
}

func TestImmutabilityOfNondeterministicCall(t *testing.T) {
	n, err := Compile("_id + DAY(NOW())")
	require.NoError(t, err)
	assert.False(t, n.IsImmutable())
}

func TestImmutabilityOfPureDocumentInit(t *testing.T) {
	n, err := Compile("{ a: 1, n: UPPER(name) }")
	require.NoError(t, err)
	assert.True(t, n.IsImmutable())
}

func TestPrecedenceOfDivideVersusAdd(t *testing.T) {
	a, err := Compile("(1 + 1) / 3")
	require.NoError(t, err)
	assert.Equal(t, KindDivide, a.Kind())

	b, err := Compile("1 + 1 / 3")
	require.NoError(t, err)
	assert.Equal(t, KindAdd, b.Kind())
}

func TestNormalizeExplicitAnyQuantifier(t *testing.T) {
	n, err := Compile("items[*].id any=5")
	require.NoError(t, err)
	assert.Equal(t, "MAP($.items[*]=>@.id) ANY=5", n.Source())
}

func TestParseFailuresReportUnexpectedToken(t *testing.T) {
	cases := []string{
		"5 FOO < 1",
		"8 ++ 9",
		"10 + 5)",
		"(25 + 15",
		"MAP(A => +)",
	}
	for _, c := range cases {
		_, err := Compile(c)
		assert.Error(t, err, "expected failure for %q", c)
	}
}

func TestRoundTripNormalizationIsIdempotent(t *testing.T) {
	sources := []string{
		"a.b.c = 1",
		"items[*].price > 10 AND active = TRUE",
		"x BETWEEN 1 AND 10",
		"name LIKE \"a%\"",
		"1 - (2 - 3)",
		"{ a: 1, b: [1,2,3] }",
	}
	for _, s := range sources {
		n, err := Compile(s)
		require.NoError(t, err)
		n2, err := Compile(n.Source())
		require.NoError(t, err)
		assert.Equal(t, n.Source(), n2.Source(), "round-trip mismatch for %q", s)
	}
}

func TestCaseInsensitiveFieldDeduplicationKeepsFirstCasing(t *testing.T) {
	n, err := Compile("{ Active: active, NewActive: ACTIVE }")
	require.NoError(t, err)
	assert.Equal(t, []string{"active"}, n.Fields())
}

func TestIsPredicateMatchesEnumeratedKinds(t *testing.T) {
	predicate, err := Compile("a = 1")
	require.NoError(t, err)
	assert.True(t, predicate.IsPredicate())

	nonPredicate, err := Compile("a + 1")
	require.NoError(t, err)
	assert.False(t, nonPredicate.IsPredicate())
}

func TestCompileForIndexRejectsOperators(t *testing.T) {
	_, err := CompileForIndex("a + 1")
	assert.Error(t, err)

	ok, err := CompileForIndex("a.b[0].c")
	require.NoError(t, err)
	assert.Equal(t, "$.a.b[0].c", ok.Source())

	lowered, err := CompileForIndex("a.b[*].c")
	require.NoError(t, err)
	assert.Equal(t, "MAP($.a.b[*]=>@.c)", lowered.Source())
}

func TestCompileForIndexRejectsParametersAndSource(t *testing.T) {
	_, err := CompileForIndex("@0")
	assert.Error(t, err)
	_, err = CompileForIndex("*")
	assert.Error(t, err)
}

func TestQuantifiedAnyComparisonOverSequence(t *testing.T) {
	n, err := Compile("$.tags[*] = \"x\"")
	require.NoError(t, err)
	doc, err := value.DocOf(value.Field{Key: "tags", Value: value.NewArray([]value.Value{value.NewString("y"), value.NewString("x")})})
	require.NoError(t, err)
	v, err := n.ExecuteScalar(value.NewDocument(doc), nil, nil)
	require.NoError(t, err)
	assert.True(t, v.AsBoolean())
}
