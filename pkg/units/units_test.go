package units

import (
	"regexp"
	"testing"
)

func TestPrefixPrefixConversion(t *testing.T) {
	testCases := []struct {
		in           string
		want         string
		prefixFactor float64
	}{
		{"K", "", 1000},
		{"M", "", 1e6},
		{"M", "G", 1e-3},
		{"", "M", 1e-6},
		{"", "m", 1e3},
		{"m", "n", 1e6},
		//{"", "n", 1e9}, //does not work because of IEEE rounding problems
	}
	for _, c := range testCases {
		i := NewPrefix(c.in)
		o := NewPrefix(c.want)
		if i != InvalidPrefix && o != InvalidPrefix {
			conv := GetPrefixPrefixFactor(i, o)
			value := conv(1.0)
			if value != c.prefixFactor {
				t.Errorf("GetPrefixPrefixFactor(%q, %q) invalid, want %q with factor %g but got %g", c.in, c.want, o.Prefix(), c.prefixFactor, value)
			} else {
				t.Logf("GetPrefixPrefixFactor(%q, %q) = %g", c.in, c.want, c.prefixFactor)
			}
		}
	}
}

func TestPrefixRegex(t *testing.T) {
	for _, data := range PrefixDataMap {
		_, err := regexp.Compile(data.Regex)
		if err != nil {
			t.Errorf("failed to compile regex '%s': %s", data.Regex, err.Error())
		}
		t.Logf("succussfully compiled regex '%s' for prefix %s", data.Regex, data.Long)
	}
}

func TestPrefixStringPrefixStringFactor(t *testing.T) {
	testCases := []struct {
		in, out string
		want    float64
	}{
		{"", "m", 1e3},
		{"m", "", 1e-3},
		{"u", "m", 1e-3},
	}
	for _, c := range testCases {
		conv := GetPrefixStringPrefixStringFactor(c.in, c.out)
		got := conv(1.0)
		if got != c.want {
			t.Errorf("GetPrefixStringPrefixStringFactor(%q, %q)(1.0) = %v, want %v", c.in, c.out, got, c.want)
		}
	}
}

// memory-unit scaling (pkg/perf/report) stores values in binary KB and
// converts to KB/MB/GB via the Kibi/Mebi/Gibi prefix family, not the decimal
// Kilo/Mega/Giga one. These factors match report.go's scaledValue exactly.
func TestBinaryPrefixConversionForMemoryUnits(t *testing.T) {
	testCases := []struct {
		out  Prefix
		want float64
	}{
		{Kibi, 1},
		{Mebi, 1.0 / 1024},
		{Gibi, 1.0 / (1024 * 1024)},
	}
	for _, c := range testCases {
		conv := GetPrefixPrefixFactor(Kibi, c.out)
		got := conv(2048.0).(float64)
		want := 2048.0 * c.want
		if got != want {
			t.Errorf("GetPrefixPrefixFactor(Kibi, %v)(2048) = %v, want %v", c.out, got, want)
		}
	}
}
