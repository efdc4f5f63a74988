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
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
	Caches     []CacheStatus     `json:"caches"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider       string       `json:"provider"`
	Status         HealthStatus `json:"status"`
	CircuitState   string       `json:"circuitState"`
	Requests       uint32       `json:"requests"`
	Failures       uint32       `json:"consecutiveFailures"`
	LastSuccessAt  *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt  *Timestamp   `json:"lastFailureAt,omitempty"`
	StateChangedAt *Timestamp   `json:"stateChangedAt,omitempty"`
	Message        *string      `json:"message,omitempty"`
}

// CacheStatus describes one upstream snapshot cache.
type CacheStatus struct {
	Name           string     `json:"name"`
	TTLSeconds     int        `json:"ttlSeconds"`
	Entries        int        `json:"entries"`
	Fresh          int        `json:"fresh"`
	OldestStoredAt *Timestamp `json:"oldestStoredAt,omitempty"`
}
