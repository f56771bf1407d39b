package audit

import "time"

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Principal  string            `json:"principal,omitempty"`
	Action     string            `json:"action"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type AuditEvent string

const (
	EventPlatformInitialized   AuditEvent = "platform_initialized"
	EventAssetGroupsRegistered AuditEvent = "asset_groups_registered"
	EventMintOpened            AuditEvent = "mint_opened"
	EventAdminDenied           AuditEvent = "admin_denied"
	EventPassMinted            AuditEvent = "pass_minted"
	EventMintCompensated       AuditEvent = "mint_compensated"
	EventCompensationFailed    AuditEvent = "mint_compensation_failed"
)
