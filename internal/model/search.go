package model

// IndicatorDocument is a published leaf indicator as stored in Elasticsearch.
type IndicatorDocument struct {
	DocID            string `json:"doc_id"` // draft id + temp id
	DraftID          uint   `json:"draft_id"`
	DraftVersion     int64  `json:"draft_version"`
	GovernanceAreaID int    `json:"governance_area_id"`
	IndicatorID      string `json:"indicator_id"`
	Code             string `json:"code"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ChecklistText    string `json:"checklist_text"`
	ValidationRule   string `json:"validation_rule"`
}

// IndicatorSearchHit is one search result returned to the client.
type IndicatorSearchHit struct {
	DraftID          uint    `json:"draftId"`
	GovernanceAreaID int     `json:"governanceAreaId"`
	IndicatorID      string  `json:"indicatorId"`
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Score            float64 `json:"score"`
}
