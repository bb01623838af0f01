package receipt

// DetectedItem is one line item the OCR collaborator found on a receipt.
type DetectedItem struct {
	Label  string  `json:"label"` // may be empty
	Amount float64 `json:"amount"`
}

// Detection is the outcome of one extraction call. Newer extractor
// versions return Items; legacy responses carry the flat
// description/amount/category fields instead. Either side may be empty.
type Detection struct {
	Items             []DetectedItem `json:"items"`
	Description       string         `json:"description,omitempty"`
	Amount            string         `json:"amount,omitempty"`
	PredictedCategory string         `json:"predicted_category,omitempty"`
	TicketID          string         `json:"ticket_id,omitempty"`
	RawText           string         `json:"raw_text,omitempty"`
}

// HasItems reports whether the extractor returned structured line items.
func (d Detection) HasItems() bool {
	return len(d.Items) > 0
}

// HasFlatFields reports whether the legacy single-result fields are usable.
func (d Detection) HasFlatFields() bool {
	return d.Description != "" || d.Amount != ""
}
