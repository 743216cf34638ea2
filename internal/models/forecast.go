package models

// CityEntry maps a lowercase ASCII city key to the canonical localized
// name the upstream API expects as locationName.
type CityEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ForecastPeriod is one upstream time-series slot (typically 12 hours).
// Fields left empty when the upstream omits the element for that period.
type ForecastPeriod struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Weather   string `json:"weather"`
	Rain      string `json:"rain"`
	MinTemp   string `json:"minTemp"`
	MaxTemp   string `json:"maxTemp"`
	Comfort   string `json:"comfort"`
	WindSpeed string `json:"windSpeed"`
}

// ForecastResult is the flattened forecast for one city. Immutable once
// built; Forecasts keep the upstream chronological order.
type ForecastResult struct {
	City       string           `json:"city"`
	CityKey    string           `json:"cityKey"`
	UpdateTime string           `json:"updateTime"`
	Forecasts  []ForecastPeriod `json:"forecasts"`
}
