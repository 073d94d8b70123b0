package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Graph      GraphStatus       `json:"graph"`
	Subsystems []SubsystemStatus `json:"subsystems,omitempty"`
}

// GraphStatus describes the cached flight graph snapshot.
type GraphStatus struct {
	Ready   bool       `json:"ready"`
	Version string     `json:"version,omitempty"`
	BuiltAt *Timestamp `json:"builtAt,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}
