package domain

type LineStatus string

const (
	LineStatusNormal   LineStatus = "NORMAL"
	LineStatusTakenOff LineStatus = "TAKEN_OFF"
)

// LineView is the read projection of a cart line priced against the current catalog.
type LineView struct {
	Line      CartLine
	VariantID string
	Status    LineStatus
	Cost      Money
	CostFinal Money
	CostSale  Money

	// Set only while the line is NORMAL.
	VariantPrice      *Money
	VariantPriceSale  *Money
	VariantPriceFinal *Money
}

type CartSummary struct {
	CostFinal    Money
	CostShipment Money
	CostTotal    Money
	Quantity     int
}
