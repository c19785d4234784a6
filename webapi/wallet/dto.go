package wallet

// TransferRequest is the body for wallet-to-wallet transfers. Amounts ride
// as decimal strings so precision survives the wire.
type TransferRequest struct {
	ReceiverWalletID string `json:"receiver_wallet_id" validate:"required,uuid4"`
	Amount           string `json:"amount" validate:"required"`
	Note             string `json:"note" validate:"omitempty,max=255"`
}

// WithdrawRequest is the body for withdrawals.
type WithdrawRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// ListQuery carries the shared pagination parameters.
type ListQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// Clamp bounds the pagination to sane values.
func (q *ListQuery) Clamp() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}
