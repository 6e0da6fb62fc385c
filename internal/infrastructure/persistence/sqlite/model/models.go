package model

// All lists every table owned by the service, in migration order.
func All() []any {
	return []any{
		&Laboratory{},
		&ValidationRequest{},
		&LabAssignment{},
		&LabReport{},
		&ValidationResult{},
		&TrustScore{},
		&CacheEntry{},
	}
}
