package models

// Health is the aggregated service health response.
type Health struct {
	Status   string                   `json:"status"`
	Time     Timestamp                `json:"time"`
	Services map[string]ServiceStatus `json:"services"`
}

// ServiceStatus is the health of one dependency (database, cache, llm).
type ServiceStatus struct {
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	LastChecked *Timestamp `json:"lastChecked,omitempty"`
	Detail      any        `json:"detail,omitempty"`
}

// Liveness is the response of the liveness endpoint.
type Liveness struct {
	Status  string                 `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ModelAvailability summarizes the usable model set.
type ModelAvailability struct {
	Available []string `json:"available"`
	Count     uint     `json:"count"`
	Required  uint     `json:"required"`
}

// OrchestratorStatus reports whether the analysis pipeline accepts work.
type OrchestratorStatus struct {
	Status           string                   `json:"status"`
	ServiceAvailable bool                     `json:"service_available"`
	Message          string                   `json:"message"`
	Models           ModelAvailability        `json:"models"`
	Providers        map[string]BreakerStatus `json:"providers,omitempty"`
	Time             Timestamp                `json:"time"`
}

// BreakerStatus is the circuit state of one provider.
type BreakerStatus struct {
	State               string     `json:"state"`
	ConsecutiveFailures uint       `json:"consecutiveFailures"`
	NextRetryAt         *Timestamp `json:"nextRetryAt,omitempty"`
}
