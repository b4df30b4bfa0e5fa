package types

// OCOPair links two pending orders so that filling one cancels the other.
type OCOPair struct {
	GroupID      string
	Symbol       string
	OrderATicket uint64
	OrderBTicket uint64
	SideA        OrderSide
	SideB        OrderSide
	State        OCOPairState
	CreatedAt    int64
	UpdatedAt    int64
	Retries      int
}
