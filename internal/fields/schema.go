// Package fields maps the many external spellings of lead fields onto the
// fixed internal schema. Both the forward mapping (update payloads) and the
// reverse (legacy read shapes) are generated from one declarative table, so
// the two can never drift.
package fields

// Table says which relation a canonical field lives in.
type Table string

const (
	TableConversations Table = "conversations"
	TableLeadDetails   Table = "lead_details"
)

// Kind drives value coercion on write.
type Kind string

const (
	KindText  Kind = "text"
	KindMoney Kind = "money" // accepts numbers or currency-formatted strings
	KindFloat Kind = "float"
	KindInt   Kind = "int"
)

// Field is one canonical column and every external name that resolves to it.
// Alias order matters: when a payload carries two aliases of the same field,
// the earlier alias in this table wins and the later one is dropped. That is
// documented policy, not a bug.
type Field struct {
	Canonical string
	Table     Table
	Kind      Kind
	Aliases   []string
}

// Schema is the single source of truth for field-name resolution. Aliases
// collect every spelling observed in historical payloads: camelCase,
// snake_case, and UI labels.
var Schema = []Field{
	{Canonical: "business_name", Table: TableConversations, Kind: KindText,
		Aliases: []string{"business_name", "businessName", "Business Name", "company_name", "companyName", "company"}},
	{Canonical: "dba", Table: TableConversations, Kind: KindText,
		Aliases: []string{"dba", "DBA", "doing_business_as", "dba_name"}},
	{Canonical: "lead_phone", Table: TableConversations, Kind: KindText,
		Aliases: []string{"lead_phone", "leadPhone", "phone", "phone_number", "phoneNumber", "Phone", "cell_phone", "mobile"}},
	{Canonical: "email", Table: TableConversations, Kind: KindText,
		Aliases: []string{"email", "email_address", "emailAddress", "Email"}},
	{Canonical: "address", Table: TableConversations, Kind: KindText,
		Aliases: []string{"address", "street_address", "streetAddress", "address1", "Address"}},
	{Canonical: "city", Table: TableConversations, Kind: KindText,
		Aliases: []string{"city", "City"}},
	{Canonical: "us_state", Table: TableConversations, Kind: KindText,
		Aliases: []string{"us_state", "usState", "business_state", "State"}},
	{Canonical: "zip", Table: TableConversations, Kind: KindText,
		Aliases: []string{"zip", "zip_code", "zipCode", "postal_code", "postalCode", "Zip"}},
	{Canonical: "owner_name", Table: TableConversations, Kind: KindText,
		Aliases: []string{"owner_name", "ownerName", "owner", "Owner Name", "contact_name", "contactName"}},
	{Canonical: "state", Table: TableConversations, Kind: KindText,
		Aliases: []string{"state", "pipeline_state", "pipelineState"}},
	{Canonical: "current_step", Table: TableConversations, Kind: KindText,
		Aliases: []string{"current_step", "currentStep", "step"}},
	{Canonical: "priority", Table: TableConversations, Kind: KindInt,
		Aliases: []string{"priority", "Priority"}},

	{Canonical: "business_type", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"business_type", "businessType", "industry", "Industry", "business_category"}},
	{Canonical: "monthly_revenue", Table: TableLeadDetails, Kind: KindMoney,
		Aliases: []string{"monthly_revenue", "monthlyRevenue", "revenue", "avg_monthly_revenue", "avgMonthlyRevenue", "Monthly Revenue", "gross_monthly_revenue"}},
	{Canonical: "annual_revenue", Table: TableLeadDetails, Kind: KindMoney,
		Aliases: []string{"annual_revenue", "annualRevenue", "yearly_revenue", "Annual Revenue"}},
	{Canonical: "business_start_date", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"business_start_date", "businessStartDate", "start_date", "startDate", "date_business_started", "Business Start Date"}},
	{Canonical: "time_in_business_months", Table: TableLeadDetails, Kind: KindInt,
		Aliases: []string{"time_in_business_months", "timeInBusinessMonths", "tib_months", "tibMonths", "months_in_business", "time_in_business"}},
	{Canonical: "funding_amount", Table: TableLeadDetails, Kind: KindMoney,
		Aliases: []string{"funding_amount", "fundingAmount", "requested_amount", "requestedAmount", "amount_requested", "Funding Amount"}},
	{Canonical: "factor_rate", Table: TableLeadDetails, Kind: KindFloat,
		Aliases: []string{"factor_rate", "factorRate", "rate", "Factor Rate"}},
	{Canonical: "term_months", Table: TableLeadDetails, Kind: KindInt,
		Aliases: []string{"term_months", "termMonths", "term", "term_length", "Term"}},
	{Canonical: "fico_score", Table: TableLeadDetails, Kind: KindInt,
		Aliases: []string{"fico_score", "ficoScore", "fico", "credit_score", "creditScore", "FICO"}},
	{Canonical: "campaign", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"campaign", "Campaign", "campaign_name", "lead_source", "leadSource"}},
	{Canonical: "date_of_birth", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"date_of_birth", "dateOfBirth", "dob", "DOB"}},
	{Canonical: "tax_id", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"tax_id", "taxId", "ein", "EIN", "tax_id_number", "Tax ID"}},
	{Canonical: "ssn", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"ssn", "SSN", "social", "social_security_number", "socialSecurityNumber"}},
	{Canonical: "funding_date", Table: TableLeadDetails, Kind: KindText,
		Aliases: []string{"funding_date", "fundingDate", "Funding Date", "date_funded"}},
}

// byCanonical is built once for reverse lookups.
var byCanonical = func() map[string]*Field {
	m := make(map[string]*Field, len(Schema))
	for i := range Schema {
		f := &Schema[i]
		if _, dup := m[f.Canonical]; !dup {
			m[f.Canonical] = f
		}
	}
	return m
}()

// Lookup returns the schema entry for a canonical column, or nil.
func Lookup(canonical string) *Field {
	return byCanonical[canonical]
}

// AliasesFor returns every external spelling of a canonical column. Used to
// shape responses for legacy read paths.
func AliasesFor(canonical string) []string {
	if f := byCanonical[canonical]; f != nil {
		return f.Aliases
	}
	return nil
}
