package dto

// ChatMessageRequest is one inbound WebSocket frame.
type ChatMessageRequest struct {
	Query          string `json:"query" validate:"required,max=4000"`
	TenantID       string `json:"tenant_id,omitempty" validate:"omitempty,max=64"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=64"`
	FileID         string `json:"file_id,omitempty" validate:"omitempty,max=128"`
	Mode           string `json:"mode,omitempty" validate:"omitempty,oneof=visualization query normal enhanced"`
}

type SessionCountResponse struct {
	Active int `json:"active"`
}

type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
	NATS   string `json:"nats"`
}
