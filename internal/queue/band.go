package queue

// Band is a party-size bucket. Each band keeps its own independent position
// sequence, so two tickets in different bands can both hold rank 1.
type Band string

const (
	Band1to2  Band = "1-2"
	Band3to4  Band = "3-4"
	Band5to6  Band = "5-6"
	Band7to8  Band = "7-8"
	Band9to10 Band = "9-10"
	Band10Up  Band = "10+"
)

// Bands lists all bands in display order.
var Bands = []Band{Band1to2, Band3to4, Band5to6, Band7to8, Band9to10, Band10Up}

// ClassifyPartySize maps a party size to its band. A size below 1 is not
// classifiable and returns ok=false; enqueue validation rejects it before a
// ticket ever carries one.
func ClassifyPartySize(size int) (Band, bool) {
	switch {
	case size < 1:
		return "", false
	case size <= 2:
		return Band1to2, true
	case size <= 4:
		return Band3to4, true
	case size <= 6:
		return Band5to6, true
	case size <= 8:
		return Band7to8, true
	case size <= 10:
		return Band9to10, true
	default:
		return Band10Up, true
	}
}
