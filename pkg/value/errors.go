package value

import "github.com/quiverdb/quiverdb/pkg/quiverr"

func errInvalidNullCharInKey(key string) error {
	return quiverr.New(quiverr.InvalidNullCharInString, "document key %q contains a NUL character", key)
}
