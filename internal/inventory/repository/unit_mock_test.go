package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
)

// These tests inject failures sqlmock-side to prove the delete+decrement
// transaction rolls back as one, which a live database cannot easily
// demonstrate.

func newMockUnitRepo(t *testing.T) (*repository.UnitRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return repository.NewUnitRepository(db), mockDB
}

func TestDeleteWithQuantityDecrement_RollbackOnDecrementFailure(t *testing.T) {
	repo, mockDB := newMockUnitRepo(t)
	defer mockDB.Close()

	productID := "f47ac10b-58cc-4372-a567-0e02b2c3d479"

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM product_units WHERE unit_id = $1 RETURNING product_id").
		WithArgs("WID-f47a-0001").
		WillReturnRows(testutil.MockRows("product_id").AddRow(productID))
	mockDB.Mock.ExpectQuery("UPDATE products p SET").
		WithArgs(productID).
		WillReturnError(fmt.Errorf("connection reset"))
	mockDB.ExpectRollback()

	_, _, _, err := repo.DeleteWithQuantityDecrement(context.Background(), "WID-f47a-0001")
	if err == nil {
		t.Fatal("expected error when decrement fails")
	}

	mockDB.ExpectationsWereMet(t)
}

func TestDeleteWithQuantityDecrement_CommitsOnSuccess(t *testing.T) {
	repo, mockDB := newMockUnitRepo(t)
	defer mockDB.Close()

	productID := "f47ac10b-58cc-4372-a567-0e02b2c3d479"

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM product_units WHERE unit_id = $1 RETURNING product_id").
		WithArgs("WID-f47a-0002").
		WillReturnRows(testutil.MockRows("product_id").AddRow(productID))
	mockDB.Mock.ExpectQuery("UPDATE products p SET").
		WithArgs(productID).
		WillReturnRows(testutil.MockRows("prev_quantity", "quantity").AddRow(5, 4))
	mockDB.ExpectCommit()

	gotProductID, oldQuantity, newQuantity, err := repo.DeleteWithQuantityDecrement(context.Background(), "WID-f47a-0002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotProductID != productID {
		t.Errorf("product id = %q, want %q", gotProductID, productID)
	}
	if oldQuantity != 5 {
		t.Errorf("old quantity = %d, want 5", oldQuantity)
	}
	if newQuantity != 4 {
		t.Errorf("new quantity = %d, want 4", newQuantity)
	}

	mockDB.ExpectationsWereMet(t)
}

func TestDeleteWithQuantityDecrement_RollbackWhenUnitMissing(t *testing.T) {
	repo, mockDB := newMockUnitRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM product_units WHERE unit_id = $1 RETURNING product_id").
		WithArgs("WID-f47a-9999").
		WillReturnRows(testutil.MockRows("product_id")) // no rows
	mockDB.ExpectRollback()

	_, _, _, err := repo.DeleteWithQuantityDecrement(context.Background(), "WID-f47a-9999")
	if err == nil {
		t.Fatal("expected not found error")
	}

	mockDB.ExpectationsWereMet(t)
}
