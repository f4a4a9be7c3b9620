// Package event defines the domain events emitted by flatlease.
//
// Events are published after the transaction that produced them commits.
// Delivery is best effort; consumers must tolerate duplicates and gaps.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeContractCreated       = "contract_created"
	TypeContractRenewed       = "contract_renewed"
	TypeContractCancelled     = "contract_cancelled"
	TypeContractModified      = "contract_modified"
	TypeContractStatusChanged = "contract_status_changed"
	TypeContractExpiring      = "contract_expiring"
	TypeMonthlyDuesGenerated  = "monthly_dues_generated"
	TypePaymentRecorded       = "payment_recorded"
	TypeExpenseRecorded       = "expense_recorded"
)

// EntityRef points at an entity touched by an event.
type EntityRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "target", "context"
}

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string          `json:"id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Actor            string          `json:"actor"`
	AffectedEntities []EntityRef     `json:"affected_entities"`
	Summary          string          `json:"summary"`
	Category         string          `json:"category"` // "contract", "due", "payment", "expense"
	Payload          json.RawMessage `json:"payload"`

	// Sequence is assigned by the bus on publish. A gap seen by a consumer
	// means events were dropped in between.
	Sequence uint64 `json:"sequence"`
}

// Decode unmarshals the payload into v.
func (e DomainEvent) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Contract events ──────────────────────────────────────────────────────────

// ContractCreatedPayload carries event-specific data for ContractCreated.
type ContractCreatedPayload struct {
	ContractID              string          `json:"contract_id"`
	FlatID                  string          `json:"flat_id"`
	BuildingID              string          `json:"building_id"`
	TenantName              string          `json:"tenant_name"`
	TenantEmail             string          `json:"tenant_email,omitempty"`
	StartDate               string          `json:"start_date"`
	EndDate                 string          `json:"end_date"`
	MonthlyRent             decimal.Decimal `json:"monthly_rent"`
	Status                  string          `json:"status"`
	GenerateDuesImmediately bool            `json:"generate_dues_immediately"`
}

func NewContractCreated(actor string, p ContractCreatedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractCreated,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.ContractID, Role: "subject"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "target"},
			{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s created for %s", short(p.ContractID), p.TenantName),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ContractRenewedPayload carries event-specific data for ContractRenewed.
type ContractRenewedPayload struct {
	OldContractID           string          `json:"old_contract_id"`
	NewContractID           string          `json:"new_contract_id"`
	FlatID                  string          `json:"flat_id"`
	TenantName              string          `json:"tenant_name"`
	TenantEmail             string          `json:"tenant_email,omitempty"`
	PreviousRent            decimal.Decimal `json:"previous_rent"`
	NewRent                 decimal.Decimal `json:"new_rent"`
	NewStartDate            string          `json:"new_start_date"`
	NewEndDate              string          `json:"new_end_date"`
	GenerateDuesImmediately bool            `json:"generate_dues_immediately"`
}

func NewContractRenewed(actor string, p ContractRenewedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractRenewed,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.OldContractID, Role: "subject"},
			{EntityType: "contract", EntityID: p.NewContractID, Role: "target"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s renewed until %s", short(p.OldContractID), p.NewEndDate),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ContractCancelledPayload carries event-specific data for ContractCancelled.
type ContractCancelledPayload struct {
	ContractID       string `json:"contract_id"`
	FlatID           string `json:"flat_id"`
	TenantName       string `json:"tenant_name"`
	TenantEmail      string `json:"tenant_email,omitempty"`
	Reason           string `json:"reason"`
	EffectiveDate    string `json:"effective_date"`
	CancelUnpaidDues bool   `json:"cancel_unpaid_dues"`
	RefundDeposit    bool   `json:"refund_deposit"`
	CancelledDues    int    `json:"cancelled_dues"`
}

func NewContractCancelled(actor string, p ContractCancelledPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractCancelled,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.ContractID, Role: "subject"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s cancelled: %s", short(p.ContractID), p.Reason),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ContractModifiedPayload carries event-specific data for ContractModified.
type ContractModifiedPayload struct {
	OldContractID  string          `json:"old_contract_id"`
	NewContractID  string          `json:"new_contract_id"`
	FlatID         string          `json:"flat_id"`
	TenantName     string          `json:"tenant_name"`
	TenantEmail    string          `json:"tenant_email,omitempty"`
	EffectiveDate  string          `json:"effective_date"`
	PreviousRent   decimal.Decimal `json:"previous_rent"`
	NewRent        decimal.Decimal `json:"new_rent"`
	Reason         string          `json:"reason"`
	Details        string          `json:"details,omitempty"`
	RegenerateDues bool            `json:"regenerate_dues"`
}

func NewContractModified(actor string, p ContractModifiedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractModified,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.OldContractID, Role: "subject"},
			{EntityType: "contract", EntityID: p.NewContractID, Role: "target"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s superseded by %s", short(p.OldContractID), short(p.NewContractID)),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ContractStatusChangedPayload carries event-specific data for automatic
// status transitions.
type ContractStatusChangedPayload struct {
	ContractID  string `json:"contract_id"`
	FlatID      string `json:"flat_id"`
	TenantName  string `json:"tenant_name"`
	TenantEmail string `json:"tenant_email,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Reason      string `json:"reason"`
}

func NewContractStatusChanged(actor string, p ContractStatusChangedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractStatusChanged,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.ContractID, Role: "subject"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s moved from %s to %s", short(p.ContractID), p.From, p.To),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ContractExpiringPayload warns that an ACTIVE contract is nearing its end
// date. Urgent is set inside the final week.
type ContractExpiringPayload struct {
	ContractID  string `json:"contract_id"`
	FlatID      string `json:"flat_id"`
	TenantName  string `json:"tenant_name"`
	TenantEmail string `json:"tenant_email,omitempty"`
	EndDate     string `json:"end_date"`
	DaysLeft    int    `json:"days_left"`
	Urgent      bool   `json:"urgent"`
	Renewable   bool   `json:"renewable"`
}

func NewContractExpiring(actor string, p ContractExpiringPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeContractExpiring,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "contract", EntityID: p.ContractID, Role: "subject"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Contract %s ends on %s (%d days)", short(p.ContractID), p.EndDate, p.DaysLeft),
		Category: "contract",
		Payload:  mustJSON(p),
	}
}

// ── Due events ───────────────────────────────────────────────────────────────

// MonthlyDuesGeneratedPayload carries event-specific data for MonthlyDuesGenerated.
// ContractID is empty for building-wide generation.
type MonthlyDuesGeneratedPayload struct {
	BuildingID   string `json:"building_id"`
	ContractID   string `json:"contract_id,omitempty"`
	Period       string `json:"period"`
	DueCount     int    `json:"due_count"`
	SkippedCount int    `json:"skipped_count"`
	FirstDueDate string `json:"first_due_date"`
}

func NewMonthlyDuesGenerated(actor string, p MonthlyDuesGeneratedPayload) DomainEvent {
	refs := []EntityRef{{EntityType: "building", EntityID: p.BuildingID, Role: "context"}}
	if p.ContractID != "" {
		refs = append([]EntityRef{{EntityType: "contract", EntityID: p.ContractID, Role: "subject"}}, refs...)
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeMonthlyDuesGenerated,
		OccurredAt:       time.Now(),
		Actor:            actor,
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("%d dues generated for %s", p.DueCount, p.Period),
		Category:         "due",
		Payload:          mustJSON(p),
	}
}

// ── Payment events ───────────────────────────────────────────────────────────

// PaymentRecordedPayload carries event-specific data for PaymentRecorded.
type PaymentRecordedPayload struct {
	PaymentID      string          `json:"payment_id"`
	FlatID         string          `json:"flat_id"`
	BuildingID     string          `json:"building_id"`
	TenantName     string          `json:"tenant_name,omitempty"`
	TenantEmail    string          `json:"tenant_email,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	Method         string          `json:"method"`
	DuesTouched    int             `json:"dues_touched"`
	NewOutstanding decimal.Decimal `json:"new_outstanding"`
}

func NewPaymentRecorded(actor string, p PaymentRecordedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypePaymentRecorded,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "payment", EntityID: p.PaymentID, Role: "subject"},
			{EntityType: "flat", EntityID: p.FlatID, Role: "target"},
			{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Payment of %s recorded for flat %s", p.Amount.StringFixed(2), short(p.FlatID)),
		Category: "payment",
		Payload:  mustJSON(p),
	}
}

// ExpenseRecordedPayload carries event-specific data for ExpenseRecorded.
// Expenses are recorded by the building accounting collaborator; the event
// shares this bus so every subscriber sees one stream.
type ExpenseRecordedPayload struct {
	ExpenseID   string          `json:"expense_id"`
	BuildingID  string          `json:"building_id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Distributed bool            `json:"distributed"`
}

func NewExpenseRecorded(actor string, p ExpenseRecordedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeExpenseRecorded,
		OccurredAt: time.Now(),
		Actor:      actor,
		AffectedEntities: []EntityRef{
			{EntityType: "expense", EntityID: p.ExpenseID, Role: "subject"},
			{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Expense of %s recorded for building %s", p.Amount.StringFixed(2), short(p.BuildingID)),
		Category: "expense",
		Payload:  mustJSON(p),
	}
}
