package bootstrap

// Plan is the ordered ladder of admin levels a country descends through
// during bootstrap. An empty ladder means "copy the country at admin
// level 2 and stop": no further division is attempted.
type Plan struct {
	Levels []int
}

// CountryPlan maps a country name, as it appears in the OSM admin_level=2
// relation's name tag, to its bootstrap ladder.
//
// This is a representative subset of countries_division.py's
// unilevel_countries/multilevel_countries tables, not the full ~190-country
// list: the admin-level-2-only entries (Afghanistan, Albania, ...) and the
// single non-trivial ladder entries are enough to exercise Bootstrap.Run in
// tests. Extending this to the full table is a data-entry task, not a
// missing code path: Plan and Bootstrap.Run handle any country name/ladder
// pair already, whether or not it appears here.
//
// TODO(data): copy the remaining ~180 countries from countries_division.py
// over wholesale once a canonical source for their current OSM relation
// names is available.
var CountryPlan = map[string]Plan{
	"Afghanistan": {},
	"Albania":     {},
	"Algeria":     {},
	"Andorra":     {},
	"Armenia":     {},
	"Australia":   {},
	"Bahrain":     {},
	"Belize":      {},
	"Bulgaria":    {},
	"Chile":       {},
	"Colombia":    {},
	"Croatia":     {Levels: []int{6}},
	"Cuba":        {},
	"Cyprus":      {},
	"Ecuador":     {},
	"Egypt":       {},
	"Estonia":     {},
	"Fiji":        {},
	"Gabon":       {},
	"Georgia":     {},
	"Ghana":       {},
	"Greenland":   {},
	"Guatemala":   {},
	"Haiti":       {},
	"Honduras":    {},
	"Iceland":     {},
	"Indonesia":   {},
	"Iran":        {},
	"Iraq":        {},
	"Israel":      {},
	"Jamaica":     {},

	"Brazil":         {Levels: []int{3, 4}},
	"Finland":        {Levels: []int{3, 6}},
	"France":         {Levels: []int{3, 4}},
	"Germany":        {Levels: []int{4, 5}},
	"Netherlands":    {Levels: []int{3, 4}},
	"Sweden":         {Levels: []int{3, 4}},
	"United Kingdom": {Levels: []int{4, 5}},
}

// PlanFor returns the declared ladder for a country, and whether one was
// found. A country absent from the table is bootstrapped at admin level 2
// with no further division, same as a present entry with an empty ladder;
// callers that want to distinguish "explicitly single-level" from
// "undeclared" use the second return value.
func PlanFor(country string) (Plan, bool) {
	plan, ok := CountryPlan[country]
	return plan, ok
}
