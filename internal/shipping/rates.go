package shipping

import "github.com/shopspring/decimal"

// rates maps a delivery governorate to its flat shipping fee. The set of keys
// doubles as the list of governorates the store delivers to.
var rates = map[string]int64{
	"Cairo":            70,
	"Tagamoa":          70,
	"Rehab":            70,
	"New Cairo City":   90,
	"Madinaty":         90,
	"Shorouk":          90,
	"Obour":            90,
	"Mostakbal City":   90,
	"Badr":             90,
	"Giza":             80,
	"Mohandessin":      80,
	"Al Haram":         80,
	"Al Agouzah":       80,
	"Dokki":            80,
	"6th of October":   90,
	"October Gardens":  90,
	"Pyramids Gardens": 90,
}

// Valid reports whether the store ships to the given governorate.
func Valid(governorate string) bool {
	_, ok := rates[governorate]
	return ok
}

// Fee returns the flat shipping fee for a governorate. The second return is
// false for governorates the store does not ship to.
func Fee(governorate string) (decimal.Decimal, bool) {
	fee, ok := rates[governorate]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(fee), true
}

// Governorates returns all deliverable governorates, in no particular order.
func Governorates() []string {
	out := make([]string, 0, len(rates))
	for g := range rates {
		out = append(out, g)
	}
	return out
}
