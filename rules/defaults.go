package rules

import "time"

func short(threshold float64, form string, days int) *Band {
	return &Band{ThresholdPercent: threshold, Form: form, DeadlineDays: days}
}

// DefaultRules is the built-in rule set. Every warning floor is 90% of the
// threshold.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "SEC-13D", Name: "Schedule 13D beneficial ownership", Jurisdiction: "US",
			Long: Band{ThresholdPercent: 5, Form: "Schedule 13D", DeadlineDays: 5}},
		{Code: "FCA-DTR5", Name: "DTR 5 major shareholding", Jurisdiction: "UK",
			Long:  Band{ThresholdPercent: 3, Form: "TR-1", DeadlineDays: 2},
			Short: short(0.2, "Net Short Position Notification", 1)},
		{Code: "EU-TD", Name: "Transparency Directive", Jurisdiction: "EU",
			Long:  Band{ThresholdPercent: 5, Form: "TD Major Holding Notification", DeadlineDays: 4},
			Short: short(0.1, "SSR Net Short Position Notification", 1)},
		{Code: "DE-WPHG", Name: "WpHG voting rights notification", Jurisdiction: "DE",
			Long: Band{ThresholdPercent: 3, Form: "WpHG Stimmrechtsmitteilung", DeadlineDays: 4}},
		{Code: "FR-AMF", Name: "AMF threshold crossing", Jurisdiction: "FR",
			Long: Band{ThresholdPercent: 5, Form: "AMF Déclaration de franchissement de seuil", DeadlineDays: 4}},
		{Code: "HK-SFO-XV", Name: "SFO Part XV disclosure of interests", Jurisdiction: "HK",
			Long:  Band{ThresholdPercent: 5, Form: "Form 2 (Corporate Substantial Shareholder)", DeadlineDays: 3},
			Short: short(0.02, "Short Position Report", 2)},
		{Code: "JP-LSR", Name: "Large Shareholding Report", Jurisdiction: "JP",
			Long: Band{ThresholdPercent: 5, Form: "Large Shareholding Report", DeadlineDays: 5}},
		{Code: "AU-603", Name: "Substantial holder notice", Jurisdiction: "AU",
			Long: Band{ThresholdPercent: 5, Form: "Form 603", DeadlineDays: 2}},
		{Code: "CA-EWR", Name: "Early warning report", Jurisdiction: "CA",
			Long: Band{ThresholdPercent: 10, Form: "Early Warning Report", DeadlineDays: 2}},
		{Code: "IN-SAST", Name: "SEBI SAST disclosure", Jurisdiction: "IN",
			Long: Band{ThresholdPercent: 5, Form: "SAST Regulation 29(1)", DeadlineDays: 2}},
		{Code: "SG-SFA", Name: "Substantial shareholder notice", Jurisdiction: "SG",
			Long: Band{ThresholdPercent: 5, Form: "Form 3", DeadlineDays: 2}},
		{Code: "CH-FINFRAG", Name: "FinfraG disclosure of shareholdings", Jurisdiction: "CH",
			Long: Band{ThresholdPercent: 3, Form: "SIX Disclosure Notification", DeadlineDays: 4}},
	}
}

func dates(list ...string) []time.Time {
	out := make([]time.Time, 0, len(list))
	for _, s := range list {
		d, err := time.Parse(dateKey, s)
		if err != nil {
			panic(err)
		}
		out = append(out, d)
	}
	return out
}

// DefaultHolidays covers 2025 and 2026 market holidays.
func DefaultHolidays() map[string][]time.Time {
	return map[string][]time.Time{
		"US": dates(
			"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26",
			"2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
			"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
			"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
		),
		"UK": dates(
			"2025-01-01", "2025-04-18", "2025-04-21", "2025-05-05", "2025-05-26",
			"2025-08-25", "2025-12-25", "2025-12-26",
			"2026-01-01", "2026-04-03", "2026-04-06", "2026-05-04", "2026-05-25",
			"2026-08-31", "2026-12-25", "2026-12-28",
		),
		"EU": dates(
			"2025-01-01", "2025-04-18", "2025-04-21", "2025-05-01", "2025-12-25", "2025-12-26",
			"2026-01-01", "2026-04-03", "2026-04-06", "2026-05-01", "2026-12-25", "2026-12-26",
		),
		"DE": dates(
			"2025-01-01", "2025-04-18", "2025-04-21", "2025-05-01", "2025-05-29",
			"2025-06-09", "2025-10-03", "2025-12-25", "2025-12-26",
			"2026-01-01", "2026-04-03", "2026-04-06", "2026-05-01", "2026-05-14",
			"2026-05-25", "2026-10-03", "2026-12-25", "2026-12-26",
		),
		"HK": dates(
			"2025-01-01", "2025-01-29", "2025-01-30", "2025-01-31", "2025-04-04",
			"2025-04-18", "2025-04-21", "2025-05-01", "2025-05-05", "2025-07-01",
			"2025-10-01", "2025-10-07", "2025-10-29", "2025-12-25", "2025-12-26",
			"2026-01-01", "2026-02-17", "2026-02-18", "2026-02-19", "2026-04-03",
			"2026-04-06", "2026-04-07", "2026-05-01", "2026-05-25", "2026-06-19",
			"2026-07-01", "2026-10-01", "2026-10-19", "2026-12-25",
		),
		"JP": dates(
			"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-13", "2025-02-11",
			"2025-02-24", "2025-03-20", "2025-04-29", "2025-05-05", "2025-05-06",
			"2025-07-21", "2025-08-11", "2025-09-15", "2025-09-23", "2025-10-13",
			"2025-11-03", "2025-11-24", "2025-12-31",
			"2026-01-01", "2026-01-02", "2026-01-12", "2026-02-11", "2026-02-23",
			"2026-03-20", "2026-04-29", "2026-05-04", "2026-05-05", "2026-05-06",
			"2026-07-20", "2026-08-11", "2026-09-21", "2026-09-22", "2026-09-23",
			"2026-10-12", "2026-11-03", "2026-11-23", "2026-12-31",
		),
	}
}

// DefaultTable builds the built-in table.
func DefaultTable() *Table {
	return NewTable(DefaultRules(), DefaultHolidays())
}
