package models

// Result event names delivered to the presentation layer.
const (
	EventStock            = "stock"
	EventStockWritten     = "stockWritten"
	EventRecordCreated    = "recordCreated"
	EventDailyMetadata    = "dailyMetadata"
	EventDailyRecords     = "dailyRecords"
	EventCustomerMetadata = "customerMetadata"
	EventCustomerRecords  = "customerRecords"
	EventRecordDeleted    = "recordDeleted"
	EventCustomers        = "customers"
	EventMonthlyTotals    = "monthlyTotals"
)
