package provisioning

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StepStatus is the outcome recorded for one provisioning step
type StepStatus string

const (
	StepStatusStarted     StepStatus = "Started"
	StepStatusSuccess     StepStatus = "Success"
	StepStatusFailed      StepStatus = "Failed"
	StepStatusCompensated StepStatus = "Compensated"
)

// IsValid reports whether s is a known status
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusStarted, StepStatusSuccess, StepStatusFailed, StepStatusCompensated:
		return true
	}
	return false
}

// Step names written to the provisioning log
const (
	StepAllocateDatabase     = "AllocateDatabase"
	StepApplyMasterSchema    = "ApplyMasterSchema"
	StepCreateTenantDatabase = "CreateTenantDatabase"
	StepApplyTenantSchema    = "ApplyTenantSchema"
	StepSeedTenantDefaults   = "SeedTenantDefaults"
	StepRecordMetadata       = "RecordMetadata"
	StepProvisioning         = "Provisioning"
)

// ProvisioningLogEntry is one append-only row of the provisioning audit trail
type ProvisioningLogEntry struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID uuid.UUID  `json:"companyId"`
	Step      string     `json:"step"`
	Status    StepStatus `json:"status"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewLogEntry creates a log entry stamped with the current UTC time
func NewLogEntry(companyID uuid.UUID, step string, status StepStatus, message string) *ProvisioningLogEntry {
	return &ProvisioningLogEntry{
		ID:        uuid.New(),
		CompanyID: companyID,
		Step:      step,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// ProgressEvent is what listeners receive for every step transition
type ProgressEvent struct {
	CompanyID    uuid.UUID  `json:"companyId"`
	TenantDBName string     `json:"tenantDbName,omitempty"`
	Step         string     `json:"step"`
	Status       StepStatus `json:"status"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
}

// ProgressEventName is the event name used on the broadcast channel
const ProgressEventName = "provisioningStep"

// NewProgressEvent mirrors a log entry as a broadcast payload
func NewProgressEvent(entry *ProvisioningLogEntry, tenantDBName string) ProgressEvent {
	return ProgressEvent{
		CompanyID:    entry.CompanyID,
		TenantDBName: tenantDBName,
		Step:         entry.Step,
		Status:       entry.Status,
		Message:      entry.Message,
		Timestamp:    entry.Timestamp,
	}
}

// ProgressEnvelope carries a progress event between instances. Origin
// identifies the publishing instance so it can skip its own echoes.
type ProgressEnvelope struct {
	Origin  string          `json:"origin"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}
