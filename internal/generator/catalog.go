package generator

import "fmt"

const (
	AccountVerified = "VERIFIED_LINKED"
	AccountGuest    = "GUEST"
)

// Regions lists the theater and fan regions in draw order.
var Regions = []string{"North America", "Europe", "Asia Pacific", "Latin America"}

// CountriesByRegion maps each region to its ISO alpha-3 country codes.
var CountriesByRegion = map[string][]string{
	"North America": {"USA", "CAN", "MEX"},
	"Europe":        {"GBR", "DEU", "FRA", "ESP"},
	"Asia Pacific":  {"JPN", "AUS", "KOR", "IND"},
	"Latin America": {"BRA", "ARG", "COL"},
}

var (
	Devices      = []string{"iOS", "Android", "Web", "SmartTV", "PlayStation", "Xbox"}
	EventTypes   = []string{"STREAM", "BROWSE", "PURCHASE", "REVIEW", "SHARE", "WISHLIST"}
	AccountTypes = []string{AccountVerified, AccountGuest}

	FirstNames = []string{
		"James", "Emma", "Liam", "Olivia", "Noah", "Ava", "Oliver", "Sophia", "Elijah", "Isabella",
		"Lucas", "Mia", "Mason", "Charlotte", "Ethan", "Amelia", "Aiden", "Harper", "Logan", "Evelyn",
	}
	LastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Martinez", "Wilson",
	}

	// TitleIDs is SPE001 through SPE015.
	TitleIDs = titleIDs(15)
)

// Theater is a cinema that reports box office numbers.
type Theater struct {
	Name string
	Code string
}

var Theaters = []Theater{
	{Name: "AMC Downtown", Code: "THR-100"},
	{Name: "Regal Mall Plaza", Code: "THR-101"},
	{Name: "Cinemark Central", Code: "THR-102"},
	{Name: "Vue Cinema", Code: "THR-103"},
	{Name: "Odeon Luxe", Code: "THR-104"},
	{Name: "TOHO Cinemas", Code: "THR-105"},
}

// Currency is a local currency and its USD conversion rate.
type Currency struct {
	Code    string
	RateUSD float64
}

// DefaultCurrency is used for countries missing from Currencies.
var DefaultCurrency = Currency{Code: "USD", RateUSD: 1.0}

var Currencies = map[string]Currency{
	"USA": {"USD", 1.0},
	"CAN": {"CAD", 0.74},
	"MEX": {"MXN", 0.058},
	"GBR": {"GBP", 1.27},
	"DEU": {"EUR", 1.08},
	"FRA": {"EUR", 1.08},
	"ESP": {"EUR", 1.08},
	"JPN": {"JPY", 0.0067},
	"AUS": {"AUD", 0.65},
	"KOR": {"KRW", 0.00075},
	"IND": {"INR", 0.012},
	"BRA": {"BRL", 0.20},
	"ARG": {"ARS", 0.0012},
	"COL": {"COP", 0.00025},
}

// CurrencyFor returns the currency code and USD rate for a country,
// falling back to DefaultCurrency.
func CurrencyFor(country string) (string, float64) {
	c, ok := Currencies[country]
	if !ok {
		c = DefaultCurrency
	}
	return c.Code, c.RateUSD
}

func titleIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("SPE%03d", i+1)
	}
	return ids
}
