// Package payroll loads payroll eligibility rows from CSV into Postgres.
package payroll

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidData = errors.New("invalid data")

// Record is one employee's payroll deduction eligibility.
type Record struct {
	EmployeeID        string
	FirstName         string
	LastName          string
	Eligible          bool
	LimitPerPayPeriod decimal.Decimal
}

// Validate rejects rows without an employee id or with a negative limit.
func (r Record) Validate() error {
	if strings.TrimSpace(r.EmployeeID) == "" || r.LimitPerPayPeriod.IsNegative() {
		return ErrInvalidData
	}
	return nil
}
