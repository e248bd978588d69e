package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishUnitBatchCreated publishes a unit batch created event
func (p *InventoryEventPublisher) PublishUnitBatchCreated(ctx context.Context, productID string, requested, created int, unitIDs []string, createdBy *string) {
	if p == nil {
		return
	}

	data := messaging.UnitBatchCreatedEvent{
		ProductID: productID,
		Requested: requested,
		Created:   created,
		UnitIDs:   unitIDs,
		CreatedBy: deref(createdBy),
	}

	if err := p.publisher.Publish(ctx, messaging.EventUnitBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish unit batch created event")
	}
}

// PublishUnitDeleted publishes a unit deleted event
func (p *InventoryEventPublisher) PublishUnitDeleted(ctx context.Context, productID, unitID string, newQuantity int, deletedBy *string) {
	if p == nil {
		return
	}

	data := messaging.UnitDeletedEvent{
		ProductID:   productID,
		UnitID:      unitID,
		NewQuantity: newQuantity,
		DeletedBy:   deref(deletedBy),
	}

	if err := p.publisher.Publish(ctx, messaging.EventUnitDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("unit_id", unitID).Msg("failed to publish unit deleted event")
	}
}

// PublishUnitStatusChanged publishes a unit status changed event
func (p *InventoryEventPublisher) PublishUnitStatusChanged(ctx context.Context, productID, unitID, oldStatus, newStatus string, changedBy *string) {
	if p == nil {
		return
	}

	data := messaging.UnitStatusChangedEvent{
		ProductID: productID,
		UnitID:    unitID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: deref(changedBy),
	}

	if err := p.publisher.Publish(ctx, messaging.EventUnitStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("unit_id", unitID).Msg("failed to publish unit status changed event")
	}
}

// PublishProductQuantityChanged publishes a product quantity changed event
func (p *InventoryEventPublisher) PublishProductQuantityChanged(ctx context.Context, productID string, oldQuantity, newQuantity int, reason string, changedBy *string) {
	if p == nil {
		return
	}

	data := messaging.ProductQuantityChangedEvent{
		ProductID:   productID,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
		Reason:      reason,
		ChangedBy:   deref(changedBy),
	}

	if err := p.publisher.Publish(ctx, messaging.EventProductQuantityChanged, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish product quantity changed event")
	}
}

// PublishProductLowStock publishes a low stock event
func (p *InventoryEventPublisher) PublishProductLowStock(ctx context.Context, productID, productName string, quantity, minStockLevel int, severity string) {
	if p == nil {
		return
	}

	data := messaging.ProductLowStockEvent{
		ProductID:     productID,
		ProductName:   productName,
		Quantity:      quantity,
		MinStockLevel: minStockLevel,
		Severity:      severity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProductLowStock, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish product low stock event")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
