// Package datasets defines the built-in dataset schemas.
//
// Default registry order is vendor, customer, employee, transaction. Order is
// the classifier's tie-break. Employee carries the generic "name" keyword, so
// it follows the schemas whose own keyword ("Vendor Name", "Customer Name")
// should win that tie.
package datasets

import "github.com/JonMunkholm/sheetimport/internal/core"

// Store ids of the built-in schemas.
const (
	StoreEmployees    = "employees"
	StoreVendors      = "vendors"
	StoreCustomers    = "customers"
	StoreTransactions = "transactions"
)

// Default returns the built-in registry.
func Default() *core.Registry {
	return core.MustRegistry(Schemas()...)
}

// Schemas returns fresh copies of the built-in schemas in registry order.
func Schemas() []core.DatasetSchema {
	return []core.DatasetSchema{
		Vendor(),
		Customer(),
		Employee(),
		Transaction(),
	}
}

// Employee is a payroll roster: a person and what they are paid.
func Employee() core.DatasetSchema {
	return core.DatasetSchema{
		ID:      "employee",
		Kind:    core.KindEmployee,
		Label:   "Employees",
		StoreID: StoreEmployees,
		RequiredFields: []core.FieldSpec{
			{Key: core.KeyName, Label: "Name", Type: core.FieldText, MatchPatterns: []string{"name", "employee", "staff"}},
			{Key: core.KeyWage, Label: "Wage", Type: core.FieldAmount, MatchPatterns: []string{"wage", "rate", "salary", "pay"}},
		},
		OptionalFields: []core.FieldSpec{
			{Key: core.KeyRole, Label: "Role", Type: core.FieldText, MatchPatterns: []string{"role", "title", "position", "job"}},
			{Key: core.KeyEmail, Label: "Email", Type: core.FieldText, MatchPatterns: []string{"email", "e-mail"}},
			{Key: core.KeyStartDate, Label: "Start date", Type: core.FieldDate, MatchPatterns: []string{"start", "hire", "joined"}},
		},
		KeywordPatterns: []string{"employee", "staff", "wage", "salary", "hourly", "payroll", "name"},
	}
}

// Vendor is a supplier list.
func Vendor() core.DatasetSchema {
	return core.DatasetSchema{
		ID:      "vendor",
		Kind:    core.KindVendor,
		Label:   "Vendors",
		StoreID: StoreVendors,
		RequiredFields: []core.FieldSpec{
			{Key: core.KeyName, Label: "Vendor name", Type: core.FieldText, MatchPatterns: []string{"vendor", "supplier", "payee", "company", "name"}},
		},
		OptionalFields: []core.FieldSpec{
			{Key: core.KeyContact, Label: "Contact", Type: core.FieldText, MatchPatterns: []string{"contact", "representative"}},
			{Key: core.KeyEmail, Label: "Email", Type: core.FieldText, MatchPatterns: []string{"email", "e-mail"}},
			{Key: core.KeyPhone, Label: "Phone", Type: core.FieldText, MatchPatterns: []string{"phone", "tel", "mobile"}},
			{Key: core.KeyTaxID, Label: "Tax ID", Type: core.FieldText, MatchPatterns: []string{"tax", "vat", "ein", "abn"}},
		},
		KeywordPatterns: []string{"vendor", "supplier", "payee", "tax id", "vat"},
	}
}

// Customer is a client list.
func Customer() core.DatasetSchema {
	return core.DatasetSchema{
		ID:      "customer",
		Kind:    core.KindCustomer,
		Label:   "Customers",
		StoreID: StoreCustomers,
		RequiredFields: []core.FieldSpec{
			{Key: core.KeyName, Label: "Customer name", Type: core.FieldText, MatchPatterns: []string{"customer", "client", "name"}},
		},
		OptionalFields: []core.FieldSpec{
			{Key: core.KeyEmail, Label: "Email", Type: core.FieldText, MatchPatterns: []string{"email", "e-mail"}},
			{Key: core.KeyPhone, Label: "Phone", Type: core.FieldText, MatchPatterns: []string{"phone", "tel", "mobile"}},
			{Key: core.KeyAccount, Label: "Account", Type: core.FieldText, MatchPatterns: []string{"account", "acct"}},
		},
		KeywordPatterns: []string{"customer", "client", "account", "billing"},
	}
}

// Transaction is a bank or ledger export.
func Transaction() core.DatasetSchema {
	return core.DatasetSchema{
		ID:      "transaction",
		Kind:    core.KindTransaction,
		Label:   "Transactions",
		StoreID: StoreTransactions,
		RequiredFields: []core.FieldSpec{
			{Key: core.KeyDate, Label: "Date", Type: core.FieldDate, MatchPatterns: []string{"date", "posted", "booked"}},
			{Key: core.KeyDescription, Label: "Description", Type: core.FieldText, MatchPatterns: []string{"description", "memo", "details", "narrative", "payee"}},
			{Key: core.KeyAmount, Label: "Amount", Type: core.FieldAmount, MatchPatterns: []string{"amount", "value", "total", "debit", "credit"}},
		},
		OptionalFields: []core.FieldSpec{
			{Key: core.KeyCategory, Label: "Category", Type: core.FieldText, MatchPatterns: []string{"category", "type", "class"}},
			{Key: core.KeyReference, Label: "Reference", Type: core.FieldText, MatchPatterns: []string{"reference", "ref", "check no", "cheque"}},
		},
		KeywordPatterns: []string{"amount", "date", "description", "transaction", "memo", "balance", "debit", "credit"},
	}
}
