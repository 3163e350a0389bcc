// Package units provides Prefix-scaled value conversion for cc-perf's
// reporter, trimmed from cc-backend's pkg/units (which also parses
// free-form cluster-metric unit strings like "MFlops/s" or "degC" into a
// Measure+Prefix pair) down to the part cc-perf's own fixed Component
// categories actually need: converting a value from one metric prefix to
// another. Timing values scale through the decimal SI prefixes (Milli,
// Micro, Nano); memory values, stored by MemoryComponent in binary KB
// (bytes/1024), scale through the binary Kibi/Mebi/Gibi family instead.
package units

// GetPrefixPrefixFactor creates the default conversion function between two
// prefixes. It returns a conversion function for the value.
func GetPrefixPrefixFactor(in Prefix, out Prefix) func(value interface{}) interface{} {
	factor := float64(in) / float64(out)
	conv := func(value interface{}) interface{} {
		switch v := value.(type) {
		case float64:
			return v * factor
		case float32:
			return float32(float64(v) * factor)
		case int:
			return int(float64(v) * factor)
		case int32:
			return int32(float64(v) * factor)
		case int64:
			return int64(float64(v) * factor)
		case uint:
			return uint(float64(v) * factor)
		case uint32:
			return uint32(float64(v) * factor)
		case uint64:
			return uint64(float64(v) * factor)
		}
		return value
	}
	return conv
}

// GetPrefixStringPrefixStringFactor is a wrapper for GetPrefixPrefixFactor
// with string inputs instead of Prefix values.
func GetPrefixStringPrefixStringFactor(in string, out string) func(value interface{}) interface{} {
	return GetPrefixPrefixFactor(NewPrefix(in), NewPrefix(out))
}
