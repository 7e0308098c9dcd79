package notam

// Source is one configured upstream partition. Each source owns an
// independent snapshot partition and runs its acquisition cycles
// independently of the others.
type Source struct {
	// Code identifies the source ("domestic", "international", ...).
	Code string

	// Scope is the portal's in/out discriminator: "D" for domestic
	// notices, "I" for international.
	Scope string

	// Stations are the ICAO station codes the source queries. An empty
	// list means no station filter (full search).
	Stations []string

	// Series are the notice categories to request.
	Series []string
}

// DefaultStations lists the Korean aerodromes plus the Incheon FIR code
// (RKRR, required for E/D series notices).
var DefaultStations = []string{
	"RKRR",
	"RKSI", "RKSS", "RKPK", "RKPC", "RKPS", "RKPU",
	"RKSM", "RKTH", "RKPD", "RKTL", "RKNW", "RKJK",
	"RKJB", "RKJY", "RKJJ", "RKTN", "RKTU", "RKNY",
}

// DefaultSeries lists the notice series requested by default. SNOWTAM is
// carried in a separate request field by the portal and is handled by the
// transports.
var DefaultSeries = []string{"A", "C", "D", "E", "G", "Z", "SNOWTAM"}

// DefaultSources returns the standard domestic and international source
// pair over the default stations and series.
func DefaultSources() []Source {
	return []Source{
		{Code: "domestic", Scope: "D", Stations: DefaultStations, Series: DefaultSeries},
		{Code: "international", Scope: "I", Stations: DefaultStations, Series: DefaultSeries},
	}
}
