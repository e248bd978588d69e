package handler_test

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/internal/inventory/unitid"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
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

func newTestService() *service.InventoryService {
	return service.NewInventoryService(
		repository.NewProductRepository(suite.DB),
		repository.NewUnitRepository(suite.DB),
		repository.NewCategoryRepository(suite.DB),
		repository.NewWarehouseRepository(suite.DB),
		unitid.NewGenerator(),
		nil, // no event publisher needed for handler tests
		logger.New("test", "test"),
		256,
	)
}

// newTestRouter wires the handlers under the same routes as main
func newTestRouter() chi.Router {
	svc := newTestService()
	log := logger.New("test", "test")

	productHandler := handler.NewProductHandler(svc, log, 50)
	unitHandler := handler.NewUnitHandler(svc, log, 50)
	scanHandler := handler.NewScanHandler(svc, log)

	r := chi.NewRouter()
	r.Use(httputil.ActorMiddleware)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
			r.Get("/{id}/units", unitHandler.ListByProduct)
			r.Post("/{id}/units", unitHandler.CreateBatch)
		})
		r.Route("/units", func(r chi.Router) {
			r.Get("/{unitId}", unitHandler.Get)
			r.Get("/{unitId}/qrcode", unitHandler.QRCode)
			r.Patch("/{unitId}/status", unitHandler.UpdateStatus)
			r.Put("/{unitId}/notes", unitHandler.UpdateNotes)
			r.Delete("/{unitId}", unitHandler.Delete)
		})
		r.Get("/scan", scanHandler.Resolve)
	})

	return r
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// createProductViaAPI creates a product with generated units and returns
// the response data.
func createProductViaAPI(t *testing.T, r chi.Router, name string, quantity int) map[string]interface{} {
	t.Helper()

	body := `{"name":"` + name + `","quantity":` + strconv.Itoa(quantity) + `,"generate_units":true}`
	rr := doJSON(t, r, "POST", "/api/v1/products", body)
	require.Equal(t, http.StatusCreated, rr.Code, "create failed. Body: %s", rr.Body.String())

	resp := decodeResponse(t, rr)
	require.True(t, resp.Success)
	return resp.Data.(map[string]interface{})
}

func TestCreateProduct_ReportsBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Handler Widget", 3)

	units, ok := data["units"].(map[string]interface{})
	require.True(t, ok, "expected units batch report in response")
	assert.Equal(t, float64(3), units["requested"])
	assert.Equal(t, float64(3), units["created"])
	assert.Len(t, units["units"], 3)
}

func TestCreateProduct_ValidationError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	rr := doJSON(t, r, "POST", "/api/v1/products", `{"name":"","quantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp := decodeResponse(t, rr)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestUpdateUnitStatus_InvalidStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Status Handler", 1)
	unitID := firstUnitID(t, data)

	rr := doJSON(t, r, "PATCH", "/api/v1/units/"+unitID+"/status", `{"status":"misplaced"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "Body: %s", rr.Body.String())

	resp := decodeResponse(t, rr)
	assert.Equal(t, "INVALID_STATUS", resp.Error.Code)
}

func TestUpdateUnitStatus_Valid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Status OK Handler", 1)
	unitID := firstUnitID(t, data)

	rr := doJSON(t, r, "PATCH", "/api/v1/units/"+unitID+"/status", `{"status":"reserved"}`)
	require.Equal(t, http.StatusOK, rr.Code, "Body: %s", rr.Body.String())

	resp := decodeResponse(t, rr)
	unit := resp.Data.(map[string]interface{})
	assert.Equal(t, "reserved", unit["status"])
}

func TestDeleteProduct_RejectedWithoutCascade(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "No Cascade", 2)
	productID := data["id"].(string)

	rr := doJSON(t, r, "DELETE", "/api/v1/products/"+productID, "")
	assert.Equal(t, http.StatusConflict, rr.Code, "Body: %s", rr.Body.String())

	resp := decodeResponse(t, rr)
	assert.Equal(t, "CONFLICT", resp.Error.Code)

	// cascade=true succeeds
	rr = doJSON(t, r, "DELETE", "/api/v1/products/"+productID+"?cascade=true", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestScanResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Scan Handler", 1)
	units := data["units"].(map[string]interface{})["units"].([]interface{})
	payload := units[0].(map[string]interface{})["qr_code_data"].(string)

	rr := doJSON(t, r, "GET", "/api/v1/scan?code="+payload, "")
	require.Equal(t, http.StatusOK, rr.Code, "Body: %s", rr.Body.String())

	resp := decodeResponse(t, rr)
	result := resp.Data.(map[string]interface{})
	assert.NotNil(t, result["unit"])
	assert.NotNil(t, result["product"])
}

func TestScanResolve_ForgedPayload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	rr := doJSON(t, r, "GET", "/api/v1/scan?code=WID-abcd-0001-ffffffffffffffff", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	resp := decodeResponse(t, rr)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestScanResolve_MissingCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	rr := doJSON(t, r, "GET", "/api/v1/scan", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp := decodeResponse(t, rr)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestQRCodeEndpoint_ServesPNG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "QR Handler", 1)
	unitID := firstUnitID(t, data)

	rr := doJSON(t, r, "GET", "/api/v1/units/"+unitID+"/qrcode", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rr.Body.Bytes()[:4])
}

func TestDeleteUnit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Unit Delete Handler", 2)
	productID := data["id"].(string)
	unitID := firstUnitID(t, data)

	rr := doJSON(t, r, "DELETE", "/api/v1/units/"+unitID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Product quantity reflects the decrement
	rr = doJSON(t, r, "GET", "/api/v1/products/"+productID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	product := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), product["quantity"])
	assert.Equal(t, float64(1), product["unit_count"])
}

func TestListUnits_StatusFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	r := newTestRouter()

	data := createProductViaAPI(t, r, "Filter Handler", 3)
	productID := data["id"].(string)
	unitID := firstUnitID(t, data)

	rr := doJSON(t, r, "PATCH", "/api/v1/units/"+unitID+"/status", `{"status":"sold"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, "GET", "/api/v1/products/"+productID+"/units?status=sold", "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeResponse(t, rr)
	units := resp.Data.([]interface{})
	require.Len(t, units, 1)
	assert.Equal(t, unitID, units[0].(map[string]interface{})["unit_id"])
}

func firstUnitID(t *testing.T, data map[string]interface{}) string {
	t.Helper()
	units, ok := data["units"].(map[string]interface{})["units"].([]interface{})
	require.True(t, ok && len(units) > 0, "expected at least one unit in create response")
	return units[0].(map[string]interface{})["unit_id"].(string)
}
