package geo

// State identifies one US state (or DC) in the rollup hierarchy.
type State struct {
	FIPS   string `json:"fips"`
	Postal string `json:"postal"`
	Name   string `json:"name"`
}

// The standard census table: 50 states plus the District of Columbia.
// FIPS codes 03, 07, 14, 43, and 52 were never assigned.
var states = []State{ //nolint:gochecknoglobals // static reference table
	{FIPS: "01", Postal: "AL", Name: "Alabama"},
	{FIPS: "02", Postal: "AK", Name: "Alaska"},
	{FIPS: "04", Postal: "AZ", Name: "Arizona"},
	{FIPS: "05", Postal: "AR", Name: "Arkansas"},
	{FIPS: "06", Postal: "CA", Name: "California"},
	{FIPS: "08", Postal: "CO", Name: "Colorado"},
	{FIPS: "09", Postal: "CT", Name: "Connecticut"},
	{FIPS: "10", Postal: "DE", Name: "Delaware"},
	{FIPS: "11", Postal: "DC", Name: "District of Columbia"},
	{FIPS: "12", Postal: "FL", Name: "Florida"},
	{FIPS: "13", Postal: "GA", Name: "Georgia"},
	{FIPS: "15", Postal: "HI", Name: "Hawaii"},
	{FIPS: "16", Postal: "ID", Name: "Idaho"},
	{FIPS: "17", Postal: "IL", Name: "Illinois"},
	{FIPS: "18", Postal: "IN", Name: "Indiana"},
	{FIPS: "19", Postal: "IA", Name: "Iowa"},
	{FIPS: "20", Postal: "KS", Name: "Kansas"},
	{FIPS: "21", Postal: "KY", Name: "Kentucky"},
	{FIPS: "22", Postal: "LA", Name: "Louisiana"},
	{FIPS: "23", Postal: "ME", Name: "Maine"},
	{FIPS: "24", Postal: "MD", Name: "Maryland"},
	{FIPS: "25", Postal: "MA", Name: "Massachusetts"},
	{FIPS: "26", Postal: "MI", Name: "Michigan"},
	{FIPS: "27", Postal: "MN", Name: "Minnesota"},
	{FIPS: "28", Postal: "MS", Name: "Mississippi"},
	{FIPS: "29", Postal: "MO", Name: "Missouri"},
	{FIPS: "30", Postal: "MT", Name: "Montana"},
	{FIPS: "31", Postal: "NE", Name: "Nebraska"},
	{FIPS: "32", Postal: "NV", Name: "Nevada"},
	{FIPS: "33", Postal: "NH", Name: "New Hampshire"},
	{FIPS: "34", Postal: "NJ", Name: "New Jersey"},
	{FIPS: "35", Postal: "NM", Name: "New Mexico"},
	{FIPS: "36", Postal: "NY", Name: "New York"},
	{FIPS: "37", Postal: "NC", Name: "North Carolina"},
	{FIPS: "38", Postal: "ND", Name: "North Dakota"},
	{FIPS: "39", Postal: "OH", Name: "Ohio"},
	{FIPS: "40", Postal: "OK", Name: "Oklahoma"},
	{FIPS: "41", Postal: "OR", Name: "Oregon"},
	{FIPS: "42", Postal: "PA", Name: "Pennsylvania"},
	{FIPS: "44", Postal: "RI", Name: "Rhode Island"},
	{FIPS: "45", Postal: "SC", Name: "South Carolina"},
	{FIPS: "46", Postal: "SD", Name: "South Dakota"},
	{FIPS: "47", Postal: "TN", Name: "Tennessee"},
	{FIPS: "48", Postal: "TX", Name: "Texas"},
	{FIPS: "49", Postal: "UT", Name: "Utah"},
	{FIPS: "50", Postal: "VT", Name: "Vermont"},
	{FIPS: "51", Postal: "VA", Name: "Virginia"},
	{FIPS: "53", Postal: "WA", Name: "Washington"},
	{FIPS: "54", Postal: "WV", Name: "West Virginia"},
	{FIPS: "55", Postal: "WI", Name: "Wisconsin"},
	{FIPS: "56", Postal: "WY", Name: "Wyoming"},
}

var (
	byFIPS   = make(map[string]State, len(states)) //nolint:gochecknoglobals // lookup index
	byPostal = make(map[string]State, len(states)) //nolint:gochecknoglobals // lookup index
)

func init() { //nolint:gochecknoinits // builds static lookup indexes
	for _, s := range states {
		byFIPS[s.FIPS] = s
		byPostal[s.Postal] = s
	}
}
