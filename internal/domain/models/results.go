package models

// SaleCreated is the payload of a recordCreated event.
type SaleCreated struct {
	SaleInput
	DocID string `json:"docID,omitempty"`
}

// SaleDeleted is the payload of a recordDeleted event: the negated aggregate
// deltas plus the stock reversal, for optimistic presentation updates.
type SaleDeleted struct {
	DocID string `json:"docID"`
	Delta
	StockDelta
}

// DailyMetadata is the phase-one payload of a daily fetch.
type DailyMetadata struct {
	Date string `json:"date"`
	DailyAggregate
}

// CustomerMetadata is the phase-one payload of a customer fetch.
type CustomerMetadata struct {
	CustomerAggregate
}

// EntryList is the phase-two payload of either fetch.
type EntryList struct {
	Records []Entry `json:"records"`
	Message string  `json:"message,omitempty"`
}

// CustomerList is the payload of a customers event.
type CustomerList struct {
	Users []Customer `json:"users"`
}

// MonthlyTotals is the payload of a monthlyTotals event.
type MonthlyTotals struct {
	Month int `json:"month"`
	Year  int `json:"year"`
	Totals
}
