package coingecko

// simplePriceResponse represents the response from the /simple/price endpoint.
// Example response:
//
//	{
//	  "ethereum": {
//	    "usd": 3456.78,
//	    "last_updated_at": 1704067200
//	  }
//	}
type simplePriceResponse map[string]simplePriceData

type simplePriceData struct {
	USD         float64 `json:"usd"`
	LastUpdated int64   `json:"last_updated_at"`
}

// coinGeckoError represents an error response from the CoinGecko API.
type coinGeckoError struct {
	Error string `json:"error"`
}
