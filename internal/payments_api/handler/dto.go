package handler

import "github.com/shopspring/decimal"

// CreateDepositRequest represents a request to initiate a wallet deposit.
// Amount is decimal GHS; conversion to pesewas happens at the service boundary.
type CreateDepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// DepositResponse represents a deposit in API responses
type DepositResponse struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"` // Decimal GHS
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// VerificationResponse represents the outcome of a deposit verification
type VerificationResponse struct {
	Reference  string  `json:"reference"`
	Status     string  `json:"status"`
	Flagged    bool    `json:"flagged,omitempty"`
	NewBalance *string `json:"new_balance,omitempty"` // Decimal GHS, set when the verification completed the deposit
}

// BalanceResponse represents a wallet balance in API responses
type BalanceResponse struct {
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"` // Decimal GHS
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse represents a wallet history entry in API responses
type TransactionResponse struct {
	Reference    string `json:"reference"`
	Type         string `json:"type"`
	Amount       string `json:"amount"` // Decimal GHS
	Currency     string `json:"currency"`
	BalanceAfter string `json:"balance_after"` // Decimal GHS
	Reason       string `json:"reason,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// TransactionListResponse represents a page of wallet history entries
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// AdjustmentRequest represents an admin balance adjustment
type AdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"required"`
}

// AdjustmentResponse represents the result of an admin adjustment
type AdjustmentResponse struct {
	Reference  string `json:"reference"`
	UserID     string `json:"user_id"`
	NewBalance string `json:"new_balance"` // Decimal GHS
}

// WebhookPayload is the body Paystack posts to the webhook endpoint. Amount is
// in minor units, exactly as the provider reports it.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
