package ir

// DefaultIdentityField is used when a record flags no identity field.
// Generated code must tolerate the field being absent from the record.
const DefaultIdentityField = "id"

// IdentityField returns the name of the first field flagged as identity,
// scanning in declaration order, or DefaultIdentityField when none is flagged.
func IdentityField(td *TypeDef) string {
	if td == nil {
		return DefaultIdentityField
	}
	for _, f := range td.Fields {
		if f != nil && f.IsID {
			return f.Name
		}
	}
	return DefaultIdentityField
}
