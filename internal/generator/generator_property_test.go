package generator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_BoxOfficeGross(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("local gross is tickets times unit price rounded", prop.ForAll(
		func(seed int64, batch int) bool {
			r := newTestGenerator(seed).BoxOffice(batch)
			return r.GrossRevenueLocal == Round2(float64(r.TicketsSold)*r.UnitPrice)
		},
		gen.Int64(),
		gen.IntRange(1, 1000),
	))

	properties.Property("usd gross is local gross times rate rounded", prop.ForAll(
		func(seed int64, batch int) bool {
			r := newTestGenerator(seed).BoxOffice(batch)
			return r.GrossRevenueUSD == Round2(r.GrossRevenueLocal*r.ExchangeRateUSD)
		},
		gen.Int64(),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestProperty_PersonalFields(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("personal fields are set iff the account is verified", prop.ForAll(
		func(seed int64) bool {
			f := newTestGenerator(seed).FanInteraction(1)
			personal := f.Email != nil && f.FirstName != nil && f.LastName != nil
			none := f.Email == nil && f.FirstName == nil && f.LastName == nil
			if f.AccountType == AccountVerified {
				return personal
			}
			return f.AccountType == AccountGuest && none
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_TimeWindows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("event timestamp lies within 48 hours before now", prop.ForAll(
		func(seed int64) bool {
			f := newTestGenerator(seed).FanInteraction(1)
			ts, err := time.ParseInLocation(TimestampLayout, f.EventTimestamp, time.UTC)
			if err != nil {
				return false
			}
			age := fixedNow.Sub(ts)
			return age >= 0 && age <= MaxEventAgeHours*time.Hour && age%time.Hour == 0
		},
		gen.Int64(),
	))

	properties.Property("report date lies within 7 days before now", prop.ForAll(
		func(seed int64) bool {
			r := newTestGenerator(seed).BoxOffice(1)
			d, err := time.ParseInLocation(DateLayout, r.ReportDate, time.UTC)
			if err != nil {
				return false
			}
			today := time.Date(fixedNow.Year(), fixedNow.Month(), fixedNow.Day(), 0, 0, 0, 0, time.UTC)
			days := int(today.Sub(d) / (24 * time.Hour))
			return days >= 0 && days <= MaxReportAgeDays
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_CurrencyFallback(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unlisted countries fall back to USD at 1.0", prop.ForAll(
		func(country string) bool {
			if _, listed := Currencies[country]; listed {
				return true
			}
			currency, rate := CurrencyFor(country)
			return currency == DefaultCurrency.Code && rate == DefaultCurrency.RateUSD
		},
		gen.AlphaString(),
	))

	properties.Property("listed countries return their tabulated pair", prop.ForAll(
		func(i int) bool {
			countries := make([]string, 0, len(Currencies))
			for _, region := range Regions {
				countries = append(countries, CountriesByRegion[region]...)
			}
			country := countries[i%len(countries)]
			currency, rate := CurrencyFor(country)
			return currency == Currencies[country].Code && rate == Currencies[country].RateUSD
		},
		gen.IntRange(0, 1000),
	))

	properties.Property("fan records draw from the fixed catalogs", prop.ForAll(
		func(seed int64, batch int) bool {
			g := New(rand.NewSource(seed), func() time.Time { return fixedNow })
			f := g.FanInteraction(batch)
			return contains(Regions, f.Region) &&
				contains(CountriesByRegion[f.Region], f.CountryCode) &&
				contains(EventTypes, f.EventType) &&
				contains(Devices, f.DeviceType) &&
				contains(TitleIDs, f.TitleID)
		},
		gen.Int64(),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
