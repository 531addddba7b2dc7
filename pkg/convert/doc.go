// Package convert provides the type-conversion capability registry used by
// binding layers to adapt a cell's element type to a consumer's input type.
//
// Converters are registered explicitly, keyed by their exact
// (source, destination) type pair:
//
//	r := convert.New(convert.WithDefaults())
//	convert.Register(r, func(hp HitPoints) (string, error) {
//		return strconv.Itoa(int(hp)) + " HP", nil
//	})
//
// Lookup is an exact-pair match with no inheritance or coercion fallback; a
// miss is reported, not guessed around:
//
//	s, err := convert.To[string](r, 42)
package convert
