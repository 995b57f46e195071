package payroll

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	colEmployeeID        = "employeeid"
	colFirstName         = "firstname"
	colLastName          = "lastname"
	colEligible          = "eligible"
	colLimitPerPayPeriod = "limitperpayperiod"
)

var requiredColumns = []string{colEmployeeID, colFirstName, colLastName, colEligible, colLimitPerPayPeriod}

// RowError reports a row that could not be turned into a Record.
type RowError struct {
	Line       int
	EmployeeID string
	Err        error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader yields Records from a CSV stream whose first row is a header.
// Header names are trimmed and matched case-insensitively.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	return &Reader{csv: cr, columns: columns}, nil
}

// Next returns the next Record, a *RowError for a row that cannot be
// parsed, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Record{}, &RowError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return Record{}, err
	}
	line, _ := r.csv.FieldPos(0)

	get := func(col string) string {
		i := r.columns[col]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	rec := Record{
		EmployeeID: get(colEmployeeID),
		FirstName:  get(colFirstName),
		LastName:   get(colLastName),
	}

	eligible, err := parseBool(get(colEligible))
	if err != nil {
		return Record{}, &RowError{Line: line, EmployeeID: rec.EmployeeID, Err: fmt.Errorf("eligible: %w", err)}
	}
	rec.Eligible = eligible

	limit, err := decimal.NewFromString(get(colLimitPerPayPeriod))
	if err != nil {
		return Record{}, &RowError{Line: line, EmployeeID: rec.EmployeeID, Err: fmt.Errorf("limit per pay period: %w", err)}
	}
	rec.LimitPerPayPeriod = limit

	return rec, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
