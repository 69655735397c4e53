package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthcare    Category = "Healthcare"
	CategoryOther         Category = "Other"
)

const (
	PaymentCreditCard   PaymentType = "Credit Card"
	PaymentDebitCard    PaymentType = "Debit Card"
	PaymentCash         PaymentType = "Cash"
	PaymentUPI          PaymentType = "UPI"
	PaymentBankTransfer PaymentType = "Bank Transfer"
)

type (
	Category    string
	PaymentType string

	Money struct {
		Cents int64
	}

	// Expense is a single recorded transaction. The analytics engine only
	// ever reads these; mutation happens in the storage layer.
	Expense struct {
		ID          string
		Date        time.Time
		Description string
		Amount      Money
		Category    Category
		PaymentType PaymentType
		Tags        []string
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidPaymentType = errors.New("invalid payment type")
)

// Categories returns every known expense category in display order.
func Categories() []Category {
	return []Category{
		CategoryFood, CategoryTransport, CategoryShopping, CategoryBills,
		CategoryEntertainment, CategoryHealthcare, CategoryOther,
	}
}

// PaymentTypes returns every known payment method.
func PaymentTypes() []PaymentType {
	return []PaymentType{
		PaymentCreditCard, PaymentDebitCard, PaymentCash,
		PaymentUPI, PaymentBankTransfer,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryTransport, CategoryShopping, CategoryBills,
		CategoryEntertainment, CategoryHealthcare, CategoryOther:
		return true
	}
	return false
}

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentDebitCard, PaymentCash,
		PaymentUPI, PaymentBankTransfer:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if !e.PaymentType.Valid() {
		return ErrInvalidPaymentType
	}
	return nil
}

// IsWeekend reports whether the expense falls on a Saturday or Sunday.
func (e Expense) IsWeekend() bool {
	wd := e.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Day returns the expense date truncated to midnight UTC, used for
// daily grouping across the analytics engine.
func (e Expense) Day() time.Time {
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
