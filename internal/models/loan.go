package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientStatus статус клиента
type ClientStatus string

const (
	ClientActive   ClientStatus = "ACTIVE"
	ClientInactive ClientStatus = "INACTIVE"
	ClientBanned   ClientStatus = "BANNED"
)

// CreditStatus статус кредита
type CreditStatus string

const (
	CreditActive    CreditStatus = "ACTIVE"
	CreditPaidOff   CreditStatus = "PAID_OFF"
	CreditWrittenOf CreditStatus = "WRITTEN_OFF"
	CreditRenewed   CreditStatus = "RENEWED"
)

// InstallmentStatus статус платежа по графику
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// PaymentKind вид платежа
type PaymentKind string

const (
	PaymentRegular PaymentKind = "REGULAR"
	PaymentPartial PaymentKind = "PARTIAL"
	PaymentExtra   PaymentKind = "EXTRA"
	PaymentAdvance PaymentKind = "ADVANCE"
)

// Frequency периодичность платежей кредитного продукта
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// Route представляет маршрут сборщика платежей.
type Route struct {
	Name  string `json:"name" validate:"required,min=3"` // Name название маршрута
	Color string `json:"color,omitempty"`                // Color цвет маршрута в формате #RRGGBB
	Base
	Active bool `json:"active"` // Active маршрут используется
}

// EntityType implements Record
func (*Route) EntityType() EntityType { return EntityRoute }

// Client представляет заемщика.
type Client struct {
	Latitude         *float64     `json:"latitude,omitempty"`  // Latitude GPS широта адреса клиента
	Longitude        *float64     `json:"longitude,omitempty"` // Longitude GPS долгота адреса клиента
	RouteID          string       `json:"routeId,omitempty"`
	Name             string       `json:"name" validate:"required,min=3"`
	Document         string       `json:"document" validate:"required,min=5"`
	Phone            string       `json:"phone,omitempty"`
	Address          string       `json:"address,omitempty"`
	Neighborhood     string       `json:"neighborhood,omitempty"`
	Reference        string       `json:"reference,omitempty"`
	GuarantorName    string       `json:"guarantorName,omitempty"`
	GuarantorPhone   string       `json:"guarantorPhone,omitempty"`
	GuarantorAddress string       `json:"guarantorAddress,omitempty"`
	Status           ClientStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE BANNED"`
	Notes            string       `json:"notes,omitempty"` // Notes свободные заметки сборщика
	Base
}

// EntityType implements Record
func (*Client) EntityType() EntityType { return EntityClient }

// Product представляет кредитный продукт (условия выдачи).
type Product struct {
	InterestPercent  decimal.Decimal     `json:"interestPercent"`
	MinAmount        decimal.NullDecimal `json:"minAmount"`
	MaxAmount        decimal.NullDecimal `json:"maxAmount"`
	Name             string              `json:"name" validate:"required,min=3"`
	Frequency        Frequency           `json:"frequency" validate:"required,oneof=DAILY WEEKLY BIWEEKLY MONTHLY"`
	Base
	InstallmentCount int  `json:"installmentCount" validate:"gte=1,lte=365"`
	ExcludeSundays   bool `json:"excludeSundays"`
	RequiresApproval bool `json:"requiresApproval"`
	Active           bool `json:"active"`
}

// EntityType implements Record
func (*Product) EntityType() EntityType { return EntityProduct }

// Credit представляет выданный кредит.
// OutstandingBalance авторитетен на сервере.
type Credit struct {
	DisbursedAt         time.Time       `json:"disbursedAt"`
	FirstDueDate        time.Time       `json:"firstDueDate"`
	LastDueDate         time.Time       `json:"lastDueDate"`
	PrincipalAmount     decimal.Decimal `json:"principalAmount"`
	InterestPercent     decimal.Decimal `json:"interestPercent"`
	TotalDue            decimal.Decimal `json:"totalDue"`
	InstallmentAmount   decimal.Decimal `json:"installmentAmount"`
	OutstandingBalance  decimal.Decimal `json:"outstandingBalance"`
	ClientID            string          `json:"clientId" validate:"required"`
	ProductID           string          `json:"productId" validate:"required"`
	CollectorID         string          `json:"collectorId,omitempty"`
	Status              CreditStatus    `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE PAID_OFF WRITTEN_OFF RENEWED"`
	ApprovedBy          string          `json:"approvedBy,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	Base
	InstallmentCount    int `json:"installmentCount"`
	InstallmentsPaid    int `json:"installmentsPaid"`
	InstallmentsPending int `json:"installmentsPending"`
	DaysOverdue         int `json:"daysOverdue"`
}

// EntityType implements Record
func (*Credit) EntityType() EntityType { return EntityCredit }

// Installment представляет один платеж по графику кредита.
type Installment struct {
	DueDate            time.Time         `json:"dueDate"`
	PaidAt             *time.Time        `json:"paidAt,omitempty"`
	ScheduledAmount    decimal.Decimal   `json:"scheduledAmount"`
	PaidAmount         decimal.Decimal   `json:"paidAmount"`
	OutstandingBalance decimal.Decimal   `json:"outstandingBalance"`
	CreditID           string            `json:"creditId" validate:"required"`
	ClientID           string            `json:"clientId" validate:"required"`
	RouteID            string            `json:"routeId,omitempty"`
	Status             InstallmentStatus `json:"status,omitempty" validate:"omitempty,oneof=PENDING PAID PARTIAL OVERDUE"`
	Notes              string            `json:"notes,omitempty"`
	Base
	Number      int  `json:"number" validate:"gte=1"`
	DaysOverdue int  `json:"daysOverdue"`
	RouteOrder  int  `json:"routeOrder"`
	Visited     bool `json:"visited"`
}

// EntityType implements Record
func (*Installment) EntityType() EntityType { return EntityInstallment }

// Due returns what is still owed on the installment: the outstanding balance when set,
// otherwise the scheduled amount.
func (i *Installment) Due() decimal.Decimal {
	if i.OutstandingBalance.IsPositive() {
		return i.OutstandingBalance
	}
	if i.PaidAmount.IsPositive() {
		return decimal.Max(i.ScheduledAmount.Sub(i.PaidAmount), decimal.Zero)
	}
	return i.ScheduledAmount
}

// Payment представляет платеж, полученный сборщиком в поле.
// Данные, собранные в поле, никогда не перезаписываются серверной копией.
type Payment struct {
	PaidAt        time.Time       `json:"paidAt"`
	Latitude      *float64        `json:"latitude,omitempty"`
	Longitude     *float64        `json:"longitude,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	CreditID      string          `json:"creditId" validate:"required"`
	InstallmentID string          `json:"installmentId" validate:"required"`
	ClientID      string          `json:"clientId" validate:"required"`
	CollectorID   string          `json:"collectorId,omitempty"`
	RouteID       string          `json:"routeId,omitempty"`
	Kind          PaymentKind     `json:"kind,omitempty" validate:"omitempty,oneof=REGULAR PARTIAL EXTRA ADVANCE"`
	Notes         string          `json:"notes,omitempty"`
	Base
}

// EntityType implements Record
func (*Payment) EntityType() EntityType { return EntityPayment }
