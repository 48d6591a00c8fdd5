package api

// Request/response shapes for the REST surface. The caller identity arrives
// in the X-Account header, authenticated by the deployment environment; the
// handlers only pass it through for authorization.

type depositRequest struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

type balanceResponse struct {
	Token      string `json:"token"`
	Account    string `json:"account"`
	NewBalance int64  `json:"new_balance"`
}

type createOrderRequest struct {
	WantedToken   string `json:"wanted_token"`
	WantedAmount  int64  `json:"wanted_amount"`
	OfferedToken  string `json:"offered_token"`
	OfferedAmount int64  `json:"offered_amount"`
}

type tradeResponse struct {
	OrderID       uint64 `json:"order_id"`
	Owner         string `json:"owner"`
	Filler        string `json:"filler"`
	WantedToken   string `json:"wanted_token"`
	WantedAmount  int64  `json:"wanted_amount"`
	OfferedToken  string `json:"offered_token"`
	OfferedAmount int64  `json:"offered_amount"`
	FeeAmount     int64  `json:"fee_amount,omitempty"`
}

type accountBalancesResponse struct {
	Account  string           `json:"account"`
	Balances map[string]int64 `json:"balances"`
}

type errorResponse struct {
	Error string `json:"error"`
}
