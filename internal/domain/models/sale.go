package models

// SaleInput carries everything the presentation layer supplies to record a sale.
type SaleInput struct {
	Date           string  `json:"date" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Phone          string  `json:"phone"`
	BaleSold       int64   `json:"baleSold"`
	WeightSold     int64   `json:"weightSold"`
	Amount         int64   `json:"amount"`
	ReceivedAmount int64   `json:"receivedAmount"`
	Rate           float64 `json:"rate"`
}

// Delta returns the increments a sale applies to its daily and customer aggregates.
func (in SaleInput) Delta() Delta {
	return Delta{
		BaleSold:       in.BaleSold,
		WeightSold:     in.WeightSold,
		Amount:         in.Amount,
		ReceivedAmount: in.ReceivedAmount,
	}
}

// Entry builds the entry document shared by the daily and customer views.
func (in SaleInput) Entry(id string) Entry {
	return Entry{
		DocID:          id,
		Date:           in.Date,
		BaleSold:       in.BaleSold,
		WeightSold:     in.WeightSold,
		Rate:           in.Rate,
		Amount:         in.Amount,
		ReceivedAmount: in.ReceivedAmount,
		Name:           in.Name,
	}
}

// DeleteInput identifies a previously recorded sale. The numeric fields must
// be the ones originally recorded; they are not verified against the store.
type DeleteInput struct {
	DocID          string `json:"docID"`
	Date           string `json:"date" binding:"required"`
	Name           string `json:"name" binding:"required"`
	BaleSold       int64  `json:"baleSold"`
	WeightSold     int64  `json:"weightSold"`
	Amount         int64  `json:"amount"`
	ReceivedAmount int64  `json:"receivedAmount"`
}

// Delta returns the increments originally applied by the sale.
func (in DeleteInput) Delta() Delta {
	return Delta{
		BaleSold:       in.BaleSold,
		WeightSold:     in.WeightSold,
		Amount:         in.Amount,
		ReceivedAmount: in.ReceivedAmount,
	}
}

// Entry is one sale transaction as stored under both its day and its customer.
type Entry struct {
	DocID          string  `json:"docID"`
	Date           string  `json:"date"`
	BaleSold       int64   `json:"baleSold"`
	WeightSold     int64   `json:"weightSold"`
	Rate           float64 `json:"rate"`
	Amount         int64   `json:"amount"`
	ReceivedAmount int64   `json:"receivedAmount"`
	Name           string  `json:"name"`
}

// Fields returns the document fields of the entry. The id is the document key, not a field.
func (e Entry) Fields() map[string]interface{} {
	return map[string]interface{}{
		"date":           e.Date,
		"baleSold":       e.BaleSold,
		"weightSold":     e.WeightSold,
		"rate":           e.Rate,
		"amount":         e.Amount,
		"receivedAmount": e.ReceivedAmount,
		"name":           e.Name,
	}
}
