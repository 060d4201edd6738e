package domain

// MarketInfo is the metadata fetched from the market API when a
// position is created.
type MarketInfo struct {
	ID       string
	Question string
	Outcomes []string
	Active   bool
}
