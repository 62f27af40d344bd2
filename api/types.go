// Package api holds the request and response shapes of the HTTP surface.
package api

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type CardDetails struct {
	Brand          string `json:"brand" validate:"required"`
	Last4          string `json:"last4" validate:"required,len=4,numeric"`
	ExpirationDate string `json:"expirationDate" validate:"required"`
}

type BankTransferDetails struct {
	RoutingNumber string `json:"routingNumber" validate:"required,len=9,numeric"`
	AccountLast4  string `json:"accountLast4" validate:"required,len=4,numeric"`
	BankName      string `json:"bankName" validate:"required"`
}

type WalletDetails struct {
	WalletID string `json:"walletId" validate:"required"`
}

type CreatePaymentRequest struct {
	OwnerID      int64                `json:"ownerId" validate:"required,gt=0"`
	Amount       int64                `json:"amount" validate:"required,gt=0"`
	Currency     string               `json:"currency" validate:"required,currency_code"`
	Provider     string               `json:"provider" validate:"required,payment_provider"`
	MethodType   string               `json:"methodType" validate:"required,oneof=credit_card bank_transfer wallet"`
	Card         *CardDetails         `json:"card,omitempty" validate:"omitempty"`
	BankTransfer *BankTransferDetails `json:"bankTransfer,omitempty" validate:"omitempty"`
	Wallet       *WalletDetails       `json:"wallet,omitempty" validate:"omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	Locale       *string              `json:"locale,omitempty" validate:"omitempty,max=5"`
}

type PaymentResponse struct {
	TransactionID string            `json:"transactionId"`
	ProviderRef   *string           `json:"providerRef,omitempty"`
	OwnerID       int64             `json:"ownerId"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Provider      string            `json:"provider"`
	MethodType    string            `json:"methodType"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Locale        *string           `json:"locale,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

type PaymentListResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Metadata PaginationMeta    `json:"metadata"`
}

type PaginationMeta struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type RefundRequest struct {
	// Amount in minor units; nil refunds the full remaining balance.
	Amount *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

type RefundResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	RefundedAt    time.Time `json:"refundedAt"`
}

type WebhookRequest struct {
	EventID       string          `json:"eventId" validate:"required"`
	TransactionID string          `json:"transactionId" validate:"required"`
	Status        string          `json:"status" validate:"required"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type WebhookResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

type RefundListResponse struct {
	Refunds []RefundResponse `json:"refunds"`
}

type ExchangeRateResponse struct {
	Base   string    `json:"base"`
	Target string    `json:"target"`
	Rate   string    `json:"rate"`
	AsOf   time.Time `json:"asOf"`
	Stale  bool      `json:"stale"`
}

type ExchangeRateListResponse struct {
	Rates []ExchangeRateResponse `json:"rates"`
}

type ConversionResponse struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

type RateRefreshResponse struct {
	Status string `json:"status"`
}
