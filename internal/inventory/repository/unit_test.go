package repository_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

// createTestProduct is a helper to create a product for tests.
func createTestProduct(t *testing.T, ctx context.Context, name string, quantity int) *repository.Product {
	t.Helper()
	productRepo := repository.NewProductRepository(suite.DB)
	p := &repository.Product{
		Name:     name,
		Quantity: quantity,
	}
	err := productRepo.Create(ctx, p)
	require.NoError(t, err)
	return p
}

func createTestUnit(t *testing.T, ctx context.Context, productID, unitID, status string) *repository.ProductUnit {
	t.Helper()
	unitRepo := repository.NewUnitRepository(suite.DB)
	u := &repository.ProductUnit{
		ProductID:  productID,
		UnitID:     unitID,
		QRCodeData: unitID + "-payload",
		Status:     status,
	}
	err := unitRepo.Create(ctx, u)
	require.NoError(t, err)
	return u
}

func TestUnitRepository_Create_DuplicateUnitID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Dup Unit Product", 2)
	unitRepo := repository.NewUnitRepository(suite.DB)

	first := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     "DUP-0001",
		QRCodeData: "DUP-0001-aaaa",
	}
	require.NoError(t, unitRepo.Create(ctx, first))
	assert.Equal(t, repository.StatusAvailable, first.Status)

	// Same unit_id, different payload: the unique index is the backstop
	// for concurrent sequence races.
	second := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     "DUP-0001",
		QRCodeData: "DUP-0001-bbbb",
	}
	err := unitRepo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict), "expected conflict, got %v", err)
}

func TestUnitRepository_Create_DuplicateQRCodeData(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Dup Payload Product", 2)
	unitRepo := repository.NewUnitRepository(suite.DB)

	first := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     "DUPQR-0001",
		QRCodeData: "shared-payload",
	}
	require.NoError(t, unitRepo.Create(ctx, first))

	second := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     "DUPQR-0002",
		QRCodeData: "shared-payload",
	}
	err := unitRepo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestUnitRepository_Create_InvalidStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Bad Status Product", 1)
	unitRepo := repository.NewUnitRepository(suite.DB)

	u := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     "BAD-0001",
		QRCodeData: "BAD-0001-payload",
		Status:     "teleported",
	}
	err := unitRepo.Create(ctx, u)
	require.Error(t, err, "check constraint should reject unknown status")
}

func TestUnitRepository_GetByQRCodeData(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Scan Product", 1)
	created := createTestUnit(t, ctx, product.ID, "SCAN-0001", repository.StatusAvailable)

	unitRepo := repository.NewUnitRepository(suite.DB)

	found, err := unitRepo.GetByQRCodeData(ctx, created.QRCodeData)
	require.NoError(t, err)
	assert.Equal(t, created.UnitID, found.UnitID)
	assert.Equal(t, product.ID, found.ProductID)

	// Forged payload with a plausible shape still misses
	_, err = unitRepo.GetByQRCodeData(ctx, "SCAN-0001-deadbeefdeadbeef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUnitRepository_ListByProduct_StatusFilterAndPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "List Product", 6)
	for i := 1; i <= 4; i++ {
		createTestUnit(t, ctx, product.ID, fmt.Sprintf("LST-%04d", i), repository.StatusAvailable)
	}
	createTestUnit(t, ctx, product.ID, "LST-0005", repository.StatusSold)
	createTestUnit(t, ctx, product.ID, "LST-0006", repository.StatusSold)

	unitRepo := repository.NewUnitRepository(suite.DB)

	// Status filter
	sold, total, err := unitRepo.ListByProduct(ctx, product.ID, repository.StatusSold, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, sold, 2)
	for _, u := range sold {
		assert.Equal(t, repository.StatusSold, u.Status)
	}

	// Pagination, ordered by unit_id
	page1, total, err := unitRepo.ListByProduct(ctx, product.ID, "", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, page1, 4)
	assert.Equal(t, "LST-0001", page1[0].UnitID)

	page2, _, err := unitRepo.ListByProduct(ctx, product.ID, "", 2, 4)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "LST-0005", page2[0].UnitID)
}

func TestUnitRepository_ListByProduct_SequenceOrderPastPadding(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	// Sequences above 9999 outgrow the zero padding; plain lexicographic
	// order would put -10000 before -9999.
	product := createTestProduct(t, ctx, "Roll Over Product", 3)
	createTestUnit(t, ctx, product.ID, "ROL-10000", repository.StatusAvailable)
	createTestUnit(t, ctx, product.ID, "ROL-0001", repository.StatusAvailable)
	createTestUnit(t, ctx, product.ID, "ROL-9999", repository.StatusAvailable)

	unitRepo := repository.NewUnitRepository(suite.DB)

	units, total, err := unitRepo.ListByProduct(ctx, product.ID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, units, 3)
	assert.Equal(t, "ROL-0001", units[0].UnitID)
	assert.Equal(t, "ROL-9999", units[1].UnitID)
	assert.Equal(t, "ROL-10000", units[2].UnitID)
}

func TestUnitRepository_CountByProduct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Count Product", 3)
	unitRepo := repository.NewUnitRepository(suite.DB)

	count, err := unitRepo.CountByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 1; i <= 3; i++ {
		createTestUnit(t, ctx, product.ID, fmt.Sprintf("CNT-%04d", i), repository.StatusAvailable)
	}

	count, err = unitRepo.CountByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUnitRepository_UpdateStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Status Product", 1)
	createTestUnit(t, ctx, product.ID, "STS-0001", repository.StatusAvailable)

	unitRepo := repository.NewUnitRepository(suite.DB)

	updated, err := unitRepo.UpdateStatus(ctx, "STS-0001", repository.StatusReserved)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusReserved, updated.Status)

	// Any status can move to any other
	updated, err = unitRepo.UpdateStatus(ctx, "STS-0001", repository.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusAvailable, updated.Status)

	_, err = unitRepo.UpdateStatus(ctx, "STS-MISSING", repository.StatusSold)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUnitRepository_DeleteWithQuantityDecrement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Atomic Delete Product", 2)
	createTestUnit(t, ctx, product.ID, "DEL-0001", repository.StatusAvailable)
	createTestUnit(t, ctx, product.ID, "DEL-0002", repository.StatusAvailable)

	unitRepo := repository.NewUnitRepository(suite.DB)
	productRepo := repository.NewProductRepository(suite.DB)

	productID, oldQuantity, newQuantity, err := unitRepo.DeleteWithQuantityDecrement(ctx, "DEL-0001")
	require.NoError(t, err)
	assert.Equal(t, product.ID, productID)
	assert.Equal(t, 2, oldQuantity)
	assert.Equal(t, 1, newQuantity)

	// Unit row gone, quantity decremented
	_, err = unitRepo.GetByUnitID(ctx, "DEL-0001")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	reloaded, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Quantity)

	// Deleting an unknown unit leaves the quantity alone
	_, _, _, err = unitRepo.DeleteWithQuantityDecrement(ctx, "DEL-MISSING")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	reloaded, err = productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Quantity)
}

func TestUnitRepository_DeleteWithQuantityDecrement_ClampsAtZero(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	// Quantity already 0 while a unit row still exists (recoverable drift)
	product := createTestProduct(t, ctx, "Clamp Product", 0)
	createTestUnit(t, ctx, product.ID, "CLP-0001", repository.StatusAvailable)

	unitRepo := repository.NewUnitRepository(suite.DB)

	_, oldQuantity, newQuantity, err := unitRepo.DeleteWithQuantityDecrement(ctx, "CLP-0001")
	require.NoError(t, err)
	assert.Equal(t, 0, oldQuantity, "clamped decrement must report the real starting quantity")
	assert.Equal(t, 0, newQuantity, "quantity must not go negative")
}

func TestUnitRepository_DeleteByProduct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	product := createTestProduct(t, ctx, "Cascade Product", 3)
	for i := 1; i <= 3; i++ {
		createTestUnit(t, ctx, product.ID, fmt.Sprintf("CSC-%04d", i), repository.StatusAvailable)
	}

	unitRepo := repository.NewUnitRepository(suite.DB)

	deleted, err := unitRepo.DeleteByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	count, err := unitRepo.CountByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
