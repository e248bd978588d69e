package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed; published by the user service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Inventory events (published by this service)
	EventUnitBatchCreated       = "inventory.unit.batch_created"
	EventUnitDeleted            = "inventory.unit.deleted"
	EventUnitStatusChanged      = "inventory.unit.status_changed"
	EventProductQuantityChanged = "inventory.product.quantity_changed"
	EventProductLowStock        = "inventory.product.low_stock"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// UserUpdatedEvent is published when a user is updated
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"` // Changed fields
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// Inventory Events

// UnitBatchCreatedEvent is published after a batch of units has been
// generated for a product. Created may be lower than Requested when the
// batch partially failed; consumers reconcile from UnitIDs.
type UnitBatchCreatedEvent struct {
	ProductID string   `json:"product_id"`
	Requested int      `json:"requested"`
	Created   int      `json:"created"`
	UnitIDs   []string `json:"unit_ids"`
	CreatedBy string   `json:"created_by"`
}

// UnitDeletedEvent is published when a single unit is deleted together
// with the product quantity decrement.
type UnitDeletedEvent struct {
	ProductID   string `json:"product_id"`
	UnitID      string `json:"unit_id"`
	NewQuantity int    `json:"new_quantity"`
	DeletedBy   string `json:"deleted_by"`
}

// UnitStatusChangedEvent is published when a unit's status changes
type UnitStatusChangedEvent struct {
	ProductID string `json:"product_id"`
	UnitID    string `json:"unit_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
}

// ProductQuantityChangedEvent is published when a product's aggregate
// quantity field changes (update, backfill, unit deletion).
type ProductQuantityChangedEvent struct {
	ProductID   string `json:"product_id"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason"`
	ChangedBy   string `json:"changed_by"`
}

// ProductLowStockEvent is published when a quantity change leaves a
// product at or below its minimum stock level.
type ProductLowStockEvent struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	MinStockLevel int    `json:"min_stock_level"`
	Severity      string `json:"severity"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
