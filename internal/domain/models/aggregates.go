package models

// Stock field names, shared by reads and writes of the singleton document.
const (
	FieldBaleAmount = "baleAmount"
	FieldBaleWeight = "baleWeight"
)

// Aggregate field names shared by daily and customer documents.
const (
	FieldTotalBaleSold       = "totalBaleSold"
	FieldTotalWeightSold     = "totalWeightSold"
	FieldTotalAmount         = "totalAmount"
	FieldTotalReceivedAmount = "totalReceivedAmount"
	FieldDebt                = "debt"
	FieldName                = "name"
	FieldPhone               = "phone"
)

// StockAggregate is the process-wide inventory singleton.
type StockAggregate struct {
	BaleAmount int64 `json:"baleAmount"`
	BaleWeight int64 `json:"baleWeight"`
}

// Totals are the four running sums kept by daily and customer aggregates.
type Totals struct {
	TotalBaleSold       int64 `json:"totalBaleSold"`
	TotalWeightSold     int64 `json:"totalWeightSold"`
	TotalAmount         int64 `json:"totalAmount"`
	TotalReceivedAmount int64 `json:"totalReceivedAmount"`
}

// Add folds other into t.
func (t *Totals) Add(other Totals) {
	t.TotalBaleSold += other.TotalBaleSold
	t.TotalWeightSold += other.TotalWeightSold
	t.TotalAmount += other.TotalAmount
	t.TotalReceivedAmount += other.TotalReceivedAmount
}

// DailyAggregate holds the totals of one calendar day.
type DailyAggregate struct {
	Totals
}

// CustomerAggregate holds the totals and outstanding debt of one customer.
type CustomerAggregate struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Totals
	Debt int64 `json:"debt"`
}

// Customer is the search projection of a customer aggregate.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Delta is a signed change applied to the aggregates by one sale.
type Delta struct {
	BaleSold       int64 `json:"totalBaleSoldDelta"`
	WeightSold     int64 `json:"totalWeightSoldDelta"`
	Amount         int64 `json:"totalAmountDelta"`
	ReceivedAmount int64 `json:"totalReceivedAmountDelta"`
}

// Negate returns the inverse delta.
func (d Delta) Negate() Delta {
	return Delta{
		BaleSold:       -d.BaleSold,
		WeightSold:     -d.WeightSold,
		Amount:         -d.Amount,
		ReceivedAmount: -d.ReceivedAmount,
	}
}

// Debt is the outstanding amount the delta adds to a customer.
func (d Delta) Debt() int64 {
	return d.Amount - d.ReceivedAmount
}

// Stock is the change to the inventory singleton: selling removes stock.
func (d Delta) Stock() StockDelta {
	return StockDelta{BaleAmount: -d.BaleSold, BaleWeight: -d.WeightSold}
}

// StockDelta is a signed change to the inventory singleton.
type StockDelta struct {
	BaleAmount int64 `json:"baleAmountDelta"`
	BaleWeight int64 `json:"baleWeightDelta"`
}
