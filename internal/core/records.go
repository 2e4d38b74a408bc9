package core

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Field keys understood by the record builders. Schemas may declare other
// optional fields; those are validated but not carried into records.
const (
	KeyName        = "name"
	KeyWage        = "wage"
	KeyRole        = "role"
	KeyEmail       = "email"
	KeyPhone       = "phone"
	KeyStartDate   = "start_date"
	KeyContact     = "contact"
	KeyTaxID       = "tax_id"
	KeyAccount     = "account"
	KeyDate        = "date"
	KeyDescription = "description"
	KeyAmount      = "amount"
	KeyCategory    = "category"
	KeyReference   = "reference"
)

// ParsedValues holds validated values by field key: string for text,
// pgtype.Numeric for amounts, pgtype.Date for dates.
type ParsedValues map[string]any

// Text returns a text value or "".
func (v ParsedValues) Text(key string) string {
	s, _ := v[key].(string)
	return s
}

// Amount returns an amount value; Valid is false when absent.
func (v ParsedValues) Amount(key string) pgtype.Numeric {
	n, _ := v[key].(pgtype.Numeric)
	return n
}

// Date returns a date value; Valid is false when absent.
func (v ParsedValues) Date(key string) pgtype.Date {
	d, _ := v[key].(pgtype.Date)
	return d
}

// Record is one typed entity ready for the store. The set of variants is
// closed: EmployeeRecord, VendorRecord, CustomerRecord and TransactionRecord.
type Record interface {
	Kind() Kind
	NaturalKey() NaturalKey
	Fields() map[string]any
	sealed()
}

// EmployeeRecord is a person on the payroll.
type EmployeeRecord struct {
	Name      string
	Wage      pgtype.Numeric
	Role      string
	Email     string
	StartDate pgtype.Date
}

func (EmployeeRecord) Kind() Kind { return KindEmployee }
func (EmployeeRecord) sealed()    {}

func (r EmployeeRecord) NaturalKey() NaturalKey {
	return NaturalKey{{Field: KeyName, Value: NormalizeText(r.Name)}}
}

func (r EmployeeRecord) Fields() map[string]any {
	f := map[string]any{KeyName: r.Name, KeyWage: AmountString(r.Wage)}
	putText(f, KeyRole, r.Role)
	putText(f, KeyEmail, r.Email)
	putText(f, KeyStartDate, DateString(r.StartDate))
	return f
}

// VendorRecord is a supplier organization.
type VendorRecord struct {
	Name    string
	Contact string
	Email   string
	Phone   string
	TaxID   string
}

func (VendorRecord) Kind() Kind { return KindVendor }
func (VendorRecord) sealed()    {}

func (r VendorRecord) NaturalKey() NaturalKey {
	return NaturalKey{{Field: KeyName, Value: NormalizeText(r.Name)}}
}

func (r VendorRecord) Fields() map[string]any {
	f := map[string]any{KeyName: r.Name}
	putText(f, KeyContact, r.Contact)
	putText(f, KeyEmail, r.Email)
	putText(f, KeyPhone, r.Phone)
	putText(f, KeyTaxID, r.TaxID)
	return f
}

// CustomerRecord is a client organization or person.
type CustomerRecord struct {
	Name    string
	Email   string
	Phone   string
	Account string
}

func (CustomerRecord) Kind() Kind { return KindCustomer }
func (CustomerRecord) sealed()    {}

func (r CustomerRecord) NaturalKey() NaturalKey {
	return NaturalKey{{Field: KeyName, Value: NormalizeText(r.Name)}}
}

func (r CustomerRecord) Fields() map[string]any {
	f := map[string]any{KeyName: r.Name}
	putText(f, KeyEmail, r.Email)
	putText(f, KeyPhone, r.Phone)
	putText(f, KeyAccount, r.Account)
	return f
}

// TransactionRecord is one ledger line.
type TransactionRecord struct {
	Date        pgtype.Date
	Description string
	Amount      pgtype.Numeric
	Category    string
	Reference   string
}

func (TransactionRecord) Kind() Kind { return KindTransaction }
func (TransactionRecord) sealed()    {}

// NaturalKey is amount + month + year + normalized description, so the same
// charge re-exported on a different day of the month still collides.
func (r TransactionRecord) NaturalKey() NaturalKey {
	return NaturalKey{
		{Field: KeyAmount, Value: AmountString(r.Amount)},
		{Field: "month", Value: fmt.Sprintf("%02d", int(r.Date.Time.Month()))},
		{Field: "year", Value: fmt.Sprintf("%04d", r.Date.Time.Year())},
		{Field: KeyDescription, Value: NormalizeText(r.Description)},
	}
}

func (r TransactionRecord) Fields() map[string]any {
	f := map[string]any{
		KeyDate:        DateString(r.Date),
		KeyDescription: r.Description,
		KeyAmount:      AmountString(r.Amount),
	}
	putText(f, KeyCategory, r.Category)
	putText(f, KeyReference, r.Reference)
	return f
}

func putText(f map[string]any, key, value string) {
	if value != "" {
		f[key] = value
	}
}

// BuildRecord constructs the typed record for a kind from validated values.
func BuildRecord(kind Kind, v ParsedValues) (Record, error) {
	switch kind {
	case KindEmployee:
		r := EmployeeRecord{
			Name:      v.Text(KeyName),
			Wage:      v.Amount(KeyWage),
			Role:      v.Text(KeyRole),
			Email:     v.Text(KeyEmail),
			StartDate: v.Date(KeyStartDate),
		}
		if r.Name == "" || !r.Wage.Valid {
			return nil, fmt.Errorf("employee record needs %s and %s", KeyName, KeyWage)
		}
		return r, nil

	case KindVendor:
		r := VendorRecord{
			Name:    v.Text(KeyName),
			Contact: v.Text(KeyContact),
			Email:   v.Text(KeyEmail),
			Phone:   v.Text(KeyPhone),
			TaxID:   v.Text(KeyTaxID),
		}
		if r.Name == "" {
			return nil, fmt.Errorf("vendor record needs %s", KeyName)
		}
		return r, nil

	case KindCustomer:
		r := CustomerRecord{
			Name:    v.Text(KeyName),
			Email:   v.Text(KeyEmail),
			Phone:   v.Text(KeyPhone),
			Account: v.Text(KeyAccount),
		}
		if r.Name == "" {
			return nil, fmt.Errorf("customer record needs %s", KeyName)
		}
		return r, nil

	case KindTransaction:
		r := TransactionRecord{
			Date:        v.Date(KeyDate),
			Description: v.Text(KeyDescription),
			Amount:      v.Amount(KeyAmount),
			Category:    v.Text(KeyCategory),
			Reference:   v.Text(KeyReference),
		}
		if !r.Date.Valid || r.Description == "" || !r.Amount.Valid {
			return nil, fmt.Errorf("transaction record needs %s, %s and %s", KeyDate, KeyDescription, KeyAmount)
		}
		return r, nil
	}

	return nil, fmt.Errorf("unknown kind %q", kind)
}
