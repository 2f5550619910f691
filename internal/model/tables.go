package model

// Tables lists every gorm model to migrate, in dependency order.
func Tables() []interface{} {
	return []interface{}{
		&User{},
		&GovernanceArea{},
		&IndicatorDraft{},
		&VerdictRecord{},
	}
}
