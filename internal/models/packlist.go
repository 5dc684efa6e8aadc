package models

import "time"

// Packlist places a mapped device in a shipped carton.
type Packlist struct {
	Ref          int64     `json:"ref"`
	MappingRef   int64     `json:"mapping_ref"`
	CartonRef    int64     `json:"carton_ref"`
	ShipmentDate time.Time `json:"shipmentDate"`
	CreatedBy    int       `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`

	// Joined fields for listings and manifests
	CartonID string `json:"cartonId,omitempty"`
	BatchID  string `json:"batchId,omitempty"`
	IMEI     string `json:"imei,omitempty"`
	SerialNo string `json:"serialNo,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// PacklistFilter selects packlist entries.
type PacklistFilter string

const (
	FilterCartonID     PacklistFilter = "cartonId"
	FilterBatchID      PacklistFilter = "batchId"
	FilterShipmentDate PacklistFilter = "shipmentDate"
)

// ParsePacklistFilter validates a filter name. batch_id is accepted as an alias.
func ParsePacklistFilter(s string) (PacklistFilter, error) {
	switch s {
	case "cartonId", "cartonID", "carton_id":
		return FilterCartonID, nil
	case "batchId", "batchID", "batch_id":
		return FilterBatchID, nil
	case "shipmentDate", "shipment_date":
		return FilterShipmentDate, nil
	}
	return "", NewValidationError("type", "unknown packlist filter %q", s)
}

// AssignRequest packs the device behind an alias into a carton.
type AssignRequest struct {
	ID           string     `json:"id"`
	Type         AliasType  `json:"type"`
	CartonID     string     `json:"cartonId"`
	ShipmentDate *time.Time `json:"shipmentDate,omitempty"`
}

// PacklistQuery is the body of a packlist lookup.
type PacklistQuery struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UpdatePacklistRequest moves an entry to another carton or date.
type UpdatePacklistRequest struct {
	CartonID     string     `json:"cartonId,omitempty"`
	ShipmentDate *time.Time `json:"shipmentDate,omitempty"`
}
