package messaging

// HealthStatus reports the state of a broker connection.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// CheckPublisherHealth reports whether p can currently publish.
func CheckPublisherHealth(p Publisher) HealthStatus {
	if p == nil {
		return HealthStatus{Error: "publisher is nil"}
	}
	if !p.IsConnected() {
		return HealthStatus{Error: "not connected to message broker"}
	}
	return HealthStatus{Connected: true}
}
