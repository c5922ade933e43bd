// Package domain defines the records shared by the microloan services.
package domain

import "time"

// KYCStatus tracks identity verification.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// Borrower is a client of the lender.
type Borrower struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone"`
	NationalID    string    `json:"nationalId"`
	BusinessName  string    `json:"businessName,omitempty"`
	CreditScore   int       `json:"creditScore"`
	KYCStatus     KYCStatus `json:"kycStatus"`
	MonthlyIncome float64   `json:"monthlyIncome"`
	CreatedAt     time.Time `json:"createdAt"`
}
