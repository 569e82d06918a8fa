package market

// Candle is one OHLCV bar. Time is the bar open in unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ChartMeta is the descriptive block returned alongside a candle series.
type ChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ExchangeName       string  `json:"exchangeName"`
	Timezone           string  `json:"timezone"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

// Range is a coarse chart window selected by the caller.
type Range string

const (
	Range1D Range = "1d"
	Range5D Range = "5d"
	Range1M Range = "1mo"
	Range3M Range = "3mo"
	Range1Y Range = "1y"
)

var rangeIntervals = map[Range]string{
	Range1D: "2m",
	Range5D: "15m",
	Range1M: "1h",
	Range3M: "1d",
	Range1Y: "1d",
}

// Interval returns the sampling interval used for r.
func (r Range) Interval() (string, bool) {
	iv, ok := rangeIntervals[r]
	return iv, ok
}

func ParseRange(s string) (Range, error) {
	r := Range(s)
	if _, ok := rangeIntervals[r]; !ok {
		return "", &RangeError{Range: s}
	}
	return r, nil
}
