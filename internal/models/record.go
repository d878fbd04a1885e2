package models

import "github.com/ifc-simplifier/backend/internal/extract"

// RecordPage is one page of flattened element records.
type RecordPage struct {
	Records  []extract.Record `json:"records" msgpack:"records"`
	Total    int              `json:"total" msgpack:"total"`
	Page     int              `json:"page" msgpack:"page"`
	PageSize int              `json:"pageSize" msgpack:"pageSize"`
}

// SimplifyResponse is the envelope returned by the simplify endpoint.
type SimplifyResponse struct {
	Status         string `json:"status" msgpack:"status"`
	SimplifiedData any    `json:"simplified_data" msgpack:"simplified_data"`
}
