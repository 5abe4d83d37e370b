package asset

// Asset is a catalog entry as seen by the reconciliation engine. The engine
// observes assets and never writes them.
type Asset struct {
	ID           string   `json:"id" yaml:"id"`
	TenantID     string   `json:"tenant_id" yaml:"tenant_id"`
	Code         string   `json:"code" yaml:"code"`
	Barcode      string   `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Name         string   `json:"name" yaml:"name"`
	LocationID   *string  `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	CategoryID   *string  `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	DepartmentID *string  `json:"department_id,omitempty" yaml:"department_id,omitempty"`
	Status       string   `json:"status" yaml:"status"`
}

// Location is a physical place assets are kept.
type Location struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Name     string `json:"name" yaml:"name"`
}

// ScopeType selects which foreign key a scope filters on.
type ScopeType string

const (
	ScopeAll        ScopeType = "all"
	ScopeLocation   ScopeType = "location"
	ScopeCategory   ScopeType = "category"
	ScopeDepartment ScopeType = "department"
)

// Valid reports whether t is a known scope type.
func (t ScopeType) Valid() bool {
	switch t {
	case ScopeAll, ScopeLocation, ScopeCategory, ScopeDepartment:
		return true
	}
	return false
}

// Scope declares the expected asset set of a session.
type Scope struct {
	Type ScopeType `json:"type" yaml:"type"`
	IDs  []string  `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// IdentifierField names one of the alternate identifiers a scan code may match.
type IdentifierField string

const (
	FieldBarcode IdentifierField = "barcode"
	FieldCode    IdentifierField = "code"
	FieldTag     IdentifierField = "tag"
)

// IdentifierPriority is the order scan codes are matched against asset
// identifiers. The first field with a match wins.
var IdentifierPriority = []IdentifierField{FieldBarcode, FieldCode, FieldTag}
