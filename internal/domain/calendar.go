package domain

// Season is the meteorological season of a calendar month.
// The numeric values are part of the wire format.
type Season int

const (
	SeasonWinter Season = iota
	SeasonSpring
	SeasonSummer
	SeasonFall
)

func (s Season) String() string {
	switch s {
	case SeasonWinter:
		return "WINTER"
	case SeasonSpring:
		return "SPRING"
	case SeasonSummer:
		return "SUMMER"
	case SeasonFall:
		return "FALL"
	default:
		return "UNKNOWN"
	}
}

// TimeSnapshot holds UTC calendar fields of a single instant.
type TimeSnapshot struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Second int    `json:"second"`
	Unix   int64  `json:"unix"`
	Season Season `json:"season"`
}
