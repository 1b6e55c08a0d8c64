package domain

import (
	"context"
	"fmt"
)

type PaymentMethod string

const (
	PaymentGatewayMethod PaymentMethod = "paystack"
	PaymentOffline       PaymentMethod = "offline"
)

// TransactionSuccess is the only gateway status treated as a completed payment.
const TransactionSuccess = "success"

type MetadataItem struct {
	ID              string   `json:"id,omitempty"`
	ProductID       string   `json:"productId,omitempty"`
	Product         *Product `json:"product,omitempty"`
	SelectedModules []string `json:"selectedModules,omitempty"`
	Qty             *int     `json:"qty,omitempty"`
	Quantity        *int     `json:"quantity,omitempty"`
}

func (m MetadataItem) Units() int {
	if m.Qty != nil {
		return *m.Qty
	}
	if m.Quantity != nil {
		return *m.Quantity
	}
	return 1
}

// PaymentMetadata is sent on initialize and echoed back on verify.
// Nil amounts mean the field was absent.
type PaymentMetadata struct {
	Items    []MetadataItem `json:"items,omitempty"`
	Subtotal *float64       `json:"subtotal,omitempty"`
	Shipping *float64       `json:"shipping,omitempty"`
	Total    *float64       `json:"total,omitempty"`
}

type InitializeRequest struct {
	Email       string           `json:"email"`
	Amount      int64            `json:"amount"`
	Currency    string           `json:"currency,omitempty"`
	CallbackURL string           `json:"callback_url,omitempty"`
	Reference   string           `json:"reference,omitempty"`
	Metadata    *PaymentMetadata `json:"metadata,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Transaction struct {
	Reference       string           `json:"reference"`
	Status          string           `json:"status"`
	GatewayResponse string           `json:"gateway_response"`
	Message         string           `json:"message"`
	Amount          int64            `json:"amount"`
	Currency        string           `json:"currency"`
	Metadata        *PaymentMetadata `json:"metadata,omitempty"`
}

type PaymentGateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	Verify(ctx context.Context, reference string) (Transaction, error)
}

// GatewayError is a non-success provider response; Message is surfaced verbatim.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Message)
}
