package overrides

// Resolver computes the corrected data type for a job result
type Resolver struct {
	table *TypeLookupTable
}

// NewResolver returns a Resolver backed by table
func NewResolver(table *TypeLookupTable) Resolver {
	return Resolver{table: table}
}

// Resolve returns the canonical type for the output parameter of tool,
// falling back to originalType when the tool or parameter is unknown.
// An empty string value means the parameter was not produced, so the
// original type is kept.
func (r Resolver) Resolve(tool, parameter string, originalType CanonicalType, value any) CanonicalType {
	if s, ok := value.(string); ok && s == "" {
		return originalType
	}

	if canonicalType, found := r.table.Lookup(tool, parameter); found {
		return canonicalType
	}

	return originalType
}
