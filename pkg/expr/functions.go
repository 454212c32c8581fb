package expr

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quiverdb/quiverdb/pkg/quiverr"
	"github.com/quiverdb/quiverdb/pkg/value"
)

// builtin describes one entry of the function table consulted by Compile
// and Evaluate (spec.md §4.1/§4.3: "looks up the function by uppercase
// name and arity; unknown name or arity raises at compile time").
type builtin struct {
	minArgs, maxArgs int // maxArgs -1 means unbounded
	immutable        func(args []*Node) bool
	sequenceResult   bool
	seqArgs          bool // true if an argument is allowed to be a sequence expression (e.g. ARRAY)
	call             func(args [][]value.Value) (value.Value, error)
}

func allChildrenImmutable(args []*Node) bool {
	for _, a := range args {
		if !a.isImmutable {
			return false
		}
	}
	return true
}

func always(b bool) func([]*Node) bool { return func([]*Node) bool { return b } }

var functionTable = map[string]builtin{
	"UPPER": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			s := scalarArg(args, 0)
			if s.IsNull() || s.Kind() != value.String {
				return value.NewNull(), nil
			}
			return value.NewString(strings.ToUpper(s.AsString())), nil
		},
	},
	"LOWER": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			s := scalarArg(args, 0)
			if s.IsNull() || s.Kind() != value.String {
				return value.NewNull(), nil
			}
			return value.NewString(strings.ToLower(s.AsString())), nil
		},
	},
	"LENGTH": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			s := scalarArg(args, 0)
			switch s.Kind() {
			case value.String:
				return value.NewInt32(int32(len([]rune(s.AsString())))), nil
			case value.Binary:
				return value.NewInt32(int32(len(s.AsBinary()))), nil
			case value.Array:
				return value.NewInt32(int32(len(s.AsArray()))), nil
			default:
				return value.NewNull(), nil
			}
		},
	},
	"SUBSTRING": {
		minArgs: 2, maxArgs: 3, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			s := scalarArg(args, 0)
			if s.Kind() != value.String {
				return value.NewNull(), nil
			}
			runes := []rune(s.AsString())
			start := int(scalarArg(args, 1).AsInt32())
			if start < 0 || start > len(runes) {
				return value.NewNull(), nil
			}
			end := len(runes)
			if len(args) > 2 {
				n := int(scalarArg(args, 2).AsInt32())
				if start+n < end {
					end = start + n
				}
			}
			return value.NewString(string(runes[start:end])), nil
		},
	},
	"GUID": {
		minArgs: 0, maxArgs: 1,
		immutable: func(args []*Node) bool { return len(args) == 1 && allChildrenImmutable(args) },
		call: func(args [][]value.Value) (value.Value, error) {
			if len(args) == 0 {
				return value.NewGuid(uuid.New()), nil
			}
			s := scalarArg(args, 0)
			id, err := uuid.Parse(s.AsString())
			if err != nil {
				return value.Value{}, quiverr.New(quiverr.InvalidDataType, "GUID: %v", err)
			}
			return value.NewGuid(id), nil
		},
	},
	"OBJECTID": {
		minArgs: 0, maxArgs: 0, immutable: always(false),
		call: func(args [][]value.Value) (value.Value, error) {
			return value.NewObjectID(value.GenerateObjectID()), nil
		},
	},
	"NOW": {
		minArgs: 0, maxArgs: 0, immutable: always(false),
		call: func(args [][]value.Value) (value.Value, error) {
			return value.NewDateTime(time.Now()), nil
		},
	},
	"TODAY": {
		minArgs: 0, maxArgs: 0, immutable: always(false),
		call: func(args [][]value.Value) (value.Value, error) {
			now := time.Now().UTC()
			return value.NewDateTime(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)), nil
		},
	},
	// DATETIME with no arguments returns the current instant, just like
	// NOW; it is only immutable when given a literal/path-derived string
	// to parse (spec.md §4.3's non-immutable set names "DATETIME"
	// alongside NOW/TODAY for this zero-arg form).
	"DATETIME": {
		minArgs: 0, maxArgs: 1,
		immutable: func(args []*Node) bool { return len(args) == 1 && allChildrenImmutable(args) },
		call: func(args [][]value.Value) (value.Value, error) {
			if len(args) == 0 {
				return value.NewDateTime(time.Now()), nil
			}
			s := scalarArg(args, 0)
			if s.Kind() != value.String {
				return value.NewNull(), nil
			}
			t, err := time.Parse(time.RFC3339, s.AsString())
			if err != nil {
				return value.NewNull(), nil
			}
			return value.NewDateTime(t), nil
		},
	},
	"DAY": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			d := scalarArg(args, 0)
			if d.Kind() != value.DateTime {
				return value.NewNull(), nil
			}
			return value.NewInt32(int32(d.AsDateTime().Day())), nil
		},
	},
	"MONTH": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			d := scalarArg(args, 0)
			if d.Kind() != value.DateTime {
				return value.NewNull(), nil
			}
			return value.NewInt32(int32(d.AsDateTime().Month())), nil
		},
	},
	"YEAR": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable,
		call: func(args [][]value.Value) (value.Value, error) {
			d := scalarArg(args, 0)
			if d.Kind() != value.DateTime {
				return value.NewNull(), nil
			}
			return value.NewInt32(int32(d.AsDateTime().Year())), nil
		},
	},
	"COUNT": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable, seqArgs: true,
		call: func(args [][]value.Value) (value.Value, error) {
			return value.NewInt32(int32(len(args[0]))), nil
		},
	},
	"EXISTS": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable, seqArgs: true,
		call: func(args [][]value.Value) (value.Value, error) {
			return value.NewBoolean(len(args[0]) > 0), nil
		},
	},
	"ARRAY": {
		minArgs: 1, maxArgs: 1, immutable: allChildrenImmutable, seqArgs: true,
		call: func(args [][]value.Value) (value.Value, error) {
			return value.NewArray(append([]value.Value(nil), args[0]...)), nil
		},
	},
}

func scalarArg(args [][]value.Value, i int) value.Value {
	if i >= len(args) || len(args[i]) == 0 {
		return value.NewNull()
	}
	return args[i][0]
}

func lookupFunction(name string) (builtin, bool) {
	b, ok := functionTable[strings.ToUpper(name)]
	return b, ok
}
