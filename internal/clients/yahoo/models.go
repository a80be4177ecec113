package yahoo

// Bar is one daily closing price.
type Bar struct {
	Date  string // ISO calendar date
	Close float64
}

// chartResponse mirrors the Yahoo Finance v8 chart API payload, reduced to
// the fields we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}
