package capability

// Equaler is implemented by configuration types that support equality.
// Equality is opt-in: a config type with native == is still unequal to
// itself under [CompareConfigs] until it declares
//
//	func (c MyConfig) Equal(o MyConfig) bool { return capability.Comparable(c, o) }
//
// [Comparable] only compiles for comparable types, so the choice stays
// static.  Types holding slices or maps write their own Equal.
type Equaler[C any] interface {
	Equal(other C) bool
}

// Comparable compares two values of a comparable type with ==.
func Comparable[C comparable](a, b C) bool {
	return a == b
}

// CompareConfigs reports whether a and b are the same configuration.
// Configuration types without an Equal method always compare unequal,
// including identical values, so generic code never needs every
// configuration type to be comparable.
func CompareConfigs[C any](a, b C) bool {
	if eq, ok := any(a).(Equaler[C]); ok {
		return eq.Equal(b)
	}
	return false
}
