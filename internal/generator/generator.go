// Package generator synthesizes fan interaction and box office records
// for the raw landing tables.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TimestampLayout is the event_timestamp format.
	TimestampLayout = "2006-01-02 15:04:05"
	// DateLayout is the report_date format.
	DateLayout = "2006-01-02"

	MaxEventAgeHours = 48
	MaxReportAgeDays = 7
	MinTickets       = 50
	MaxTickets       = 500
	MinUnitPrice     = 8.0
	MaxUnitPrice     = 18.0
	MinScreens       = 1
	MaxScreens       = 10
	MinShowtimes     = 3
	MaxShowtimes     = 15
)

// FanInteraction is one fan event as landed in RAW_FAN_INTERACTIONS.
// Personal fields are nil for guest accounts and serialize as null.
type FanInteraction struct {
	InteractionID  string  `json:"interaction_id"`
	FanID          string  `json:"fan_id"`
	SessionID      string  `json:"session_id"`
	AccountType    string  `json:"account_type"`
	Email          *string `json:"email"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	IPAddress      string  `json:"ip_address"`
	Region         string  `json:"region"`
	CountryCode    string  `json:"country_code"`
	EventType      string  `json:"event_type"`
	EventTimestamp string  `json:"event_timestamp"`
	TitleID        string  `json:"title_id"`
	DeviceType     string  `json:"device_type"`
}

// Verified reports whether the fan has a linked account.
func (f FanInteraction) Verified() bool {
	return f.AccountType == AccountVerified
}

// BoxOfficeRecord is one theater report as landed in RAW_BOX_OFFICE.
type BoxOfficeRecord struct {
	RecordID          string  `json:"record_id"`
	TitleID           string  `json:"title_id"`
	TheaterID         string  `json:"theater_id"`
	TheaterName       string  `json:"theater_name"`
	TheaterRegion     string  `json:"theater_region"`
	TheaterCountry    string  `json:"theater_country"`
	ReportDate        string  `json:"report_date"`
	TicketsSold       int     `json:"tickets_sold"`
	UnitPrice         float64 `json:"unit_price"`
	GrossRevenueLocal float64 `json:"gross_revenue_local"`
	LocalCurrency     string  `json:"local_currency"`
	ExchangeRateUSD   float64 `json:"exchange_rate_usd"`
	GrossRevenueUSD   float64 `json:"gross_revenue_usd"`
	ScreenCount       int     `json:"screen_count"`
	ShowtimeCount     int     `json:"showtime_count"`
}

// Generator draws records from the fixed catalogs. It is safe for
// concurrent use; all randomness comes from one guarded source.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock func() time.Time
}

// New creates a generator over src. A nil clock means time.Now.
func New(src rand.Source, clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{rng: rand.New(src), clock: clock}
}

// NewDefault creates a generator seeded from the current time.
func NewDefault() *Generator {
	return New(rand.NewSource(time.Now().UnixNano()), time.Now)
}

// NewSeeded returns a reproducible generator when seed is non-zero and a
// time-seeded one otherwise.
func NewSeeded(seed int64) *Generator {
	if seed == 0 {
		return NewDefault()
	}
	return New(rand.NewSource(seed), time.Now)
}

// FanInteraction generates one fan interaction for a batch.
func (g *Generator) FanInteraction(batch int) FanInteraction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fanInteraction(batch, g.clock())
}

// BoxOffice generates one box office record for a batch.
func (g *Generator) BoxOffice(batch int) BoxOfficeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.boxOffice(batch, g.clock())
}

// FanInteractions generates n fan interactions for a batch.
func (g *Generator) FanInteractions(batch, n int) []FanInteraction {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]FanInteraction, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, g.fanInteraction(batch, g.clock()))
	}
	return out
}

// BoxOfficeRecords generates n box office records for a batch.
func (g *Generator) BoxOfficeRecords(batch, n int) []BoxOfficeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]BoxOfficeRecord, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, g.boxOffice(batch, g.clock()))
	}
	return out
}

func (g *Generator) fanInteraction(batch int, now time.Time) FanInteraction {
	region := g.pick(Regions)
	country := g.pick(CountriesByRegion[region])
	account := g.pick(AccountTypes)
	fanID := fmt.Sprintf("FAN-BATCH%d-%s", batch, g.uuid()[:8])

	f := FanInteraction{
		InteractionID: g.uuid(),
		FanID:         fanID,
		SessionID:     g.uuid(),
		AccountType:   account,
	}
	if account == AccountVerified {
		email := strings.ToLower(fanID) + "@example.com"
		first := g.pick(FirstNames)
		last := g.pick(LastNames)
		f.Email, f.FirstName, f.LastName = &email, &first, &last
	}

	f.IPAddress = fmt.Sprintf("%d.%d.%d.%d", g.between(1, 255), g.between(1, 255), g.between(1, 255), g.between(1, 255))
	f.Region = region
	f.CountryCode = country
	f.EventType = g.pick(EventTypes)
	f.EventTimestamp = now.Add(-time.Duration(g.between(0, MaxEventAgeHours)) * time.Hour).Format(TimestampLayout)
	f.TitleID = g.pick(TitleIDs)
	f.DeviceType = g.pick(Devices)
	return f
}

func (g *Generator) boxOffice(batch int, now time.Time) BoxOfficeRecord {
	region := g.pick(Regions)
	country := g.pick(CountriesByRegion[region])
	theater := Theaters[g.rng.Intn(len(Theaters))]
	tickets := g.between(MinTickets, MaxTickets)
	price := Round2(MinUnitPrice + g.rng.Float64()*(MaxUnitPrice-MinUnitPrice))
	currency, rate := CurrencyFor(country)
	grossLocal := Round2(float64(tickets) * price)

	return BoxOfficeRecord{
		RecordID:          g.uuid(),
		TitleID:           g.pick(TitleIDs),
		TheaterID:         fmt.Sprintf("%s-B%d", theater.Code, batch),
		TheaterName:       theater.Name,
		TheaterRegion:     region,
		TheaterCountry:    country,
		ReportDate:        now.AddDate(0, 0, -g.between(0, MaxReportAgeDays)).Format(DateLayout),
		TicketsSold:       tickets,
		UnitPrice:         price,
		GrossRevenueLocal: grossLocal,
		LocalCurrency:     currency,
		ExchangeRateUSD:   rate,
		GrossRevenueUSD:   Round2(grossLocal * rate),
		ScreenCount:       g.between(MinScreens, MaxScreens),
		ShowtimeCount:     g.between(MinShowtimes, MaxShowtimes),
	}
}

// uuid draws a v4 UUID from the generator's source so seeded runs repeat.
func (g *Generator) uuid() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// *rand.Rand never fails to read
		return uuid.NewString()
	}
	return id.String()
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

// between returns an int in [lo, hi], both inclusive.
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
