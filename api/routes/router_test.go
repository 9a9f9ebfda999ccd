package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	"github.com/angelmondragon/orderdesk-backend/internal/identity"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/stock"
	"github.com/angelmondragon/orderdesk-backend/pkg/auth"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/migrate"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type testServer struct {
	handler http.Handler
	conn    *gorm.DB
	cfg     *config.Config
	tokens  *auth.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrate.AutoMigrateModels(conn))

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "orderdesk-test", ExpirationMinutes: 15},
		Roles: config.RolesConfig{
			Fulfillment:  "ORDERS_HANDLER",
			Manager:      "ORDERS_MANAGER",
			StockManager: "STOCK_MANAGER",
		},
	}

	authorizer, err := authz.NewAuthorizer(authz.RoleNames{
		Fulfillment:  cfg.Roles.Fulfillment,
		Manager:      cfg.Roles.Manager,
		StockManager: cfg.Roles.StockManager,
	})
	require.NoError(t, err)

	tokens, err := auth.NewVerifier(cfg.JWT)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	tx := db.NewFromGorm(conn)
	events := outbox.NewService(outbox.NewRepository(conn), nil)
	directory := identity.NewRepository(conn)

	orderSvc, err := orders.NewService(orders.Deps{
		Repo:      orders.NewRepository(conn),
		Tx:        tx,
		Ledger:    stock.NewLedger(metrics.NewLedgerMetrics(reg), events, nil),
		Authz:     authorizer,
		Directory: directory,
		Outbox:    events,
	}, orders.Options{IDStrategy: enums.OrderIDStrategyUUID, ItemCompletionTracking: true})
	require.NoError(t, err)

	stockSvc, err := stock.NewService(stock.NewRepository(conn), tx, authorizer, nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:      cfg,
		DB:          stubPinger{},
		Redis:       stubPinger{},
		Idempotency: &memoryIdempotency{data: map[string]string{}},
		Tokens:      tokens,
		Directory:   directory,
		Orders:      orderSvc,
		Stock:       stockSvc,
		Gatherer:    reg,
	})
	return &testServer{handler: handler, conn: conn, cfg: cfg, tokens: tokens}
}

func (s *testServer) principal(t *testing.T, roles ...string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.conn.Create(&models.Principal{ID: id, Username: "u-" + id.String()[:8], IsActive: true}).Error)
	for _, role := range roles {
		require.NoError(t, s.conn.Create(&models.PrincipalRole{PrincipalID: id, Role: role}).Error)
	}
	token, err := s.tokens.Mint(time.Now(), id, "")
	require.NoError(t, err)
	return id, token
}

// do sends every POST with a fresh Idempotency-Key.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	key := ""
	if method == http.MethodPost {
		key = uuid.NewString()
	}
	return s.send(t, method, path, token, key, body)
}

func (s *testServer) send(t *testing.T, method, path, token, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	live := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-OrderDesk-Env"))

	ready := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	metricsResp := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, metricsResp.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, resp).Error.Code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, stockManager := s.principal(t, "STOCK_MANAGER")
	_, creator := s.principal(t)
	_, stranger := s.principal(t)
	handlerID, handler := s.principal(t, "ORDERS_HANDLER")

	created := s.do(t, http.MethodPost, "/api/v1/stock/items", stockManager, map[string]any{
		"name":           "Widget",
		"original_price": "10",
		"discount":       "2",
		"quantity":       5,
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var item struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, created).Data, &item))

	// Clients cannot price their own lines.
	rejected := s.do(t, http.MethodPost, "/api/v1/orders", creator, map[string]any{
		"items": []map[string]any{{"stock_item_id": item.ID, "quantity": 2, "price_at_time": "0.01"}},
	})
	require.Equal(t, http.StatusBadRequest, rejected.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rejected).Error.Code)

	tooMany := s.do(t, http.MethodPost, "/api/v1/orders", creator, map[string]any{
		"items": []map[string]any{{"stock_item_id": item.ID, "quantity": 9}},
	})
	require.Equal(t, http.StatusConflict, tooMany.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, tooMany).Error.Code)

	placed := s.do(t, http.MethodPost, "/api/v1/orders", creator, map[string]any{
		"items": []map[string]any{{"stock_item_id": item.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	var order orders.OrderDetail
	require.NoError(t, json.Unmarshal(decode(t, placed).Data, &order))
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)

	hidden := s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), stranger, nil)
	require.Equal(t, http.StatusForbidden, hidden.Code)
	denied := decode(t, hidden)
	assert.Equal(t, "PERMISSION_DENIED", denied.Error.Code)
	assert.Empty(t, denied.Error.Details)

	queue := s.do(t, http.MethodGet, "/api/v1/orders/queue", handler, nil)
	require.Equal(t, http.StatusOK, queue.Code)
	assert.Contains(t, queue.Body.String(), order.ID.String())

	assigned := s.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/assign", handler, map[string]any{"staff_id": handlerID})
	require.Equal(t, http.StatusOK, assigned.Code, assigned.Body.String())

	completed := s.do(t, http.MethodPost,
		"/api/v1/orders/"+order.ID.String()+"/items/"+order.Items[0].ID.String()+"/complete", handler, nil)
	require.Equal(t, http.StatusOK, completed.Code, completed.Body.String())
	var done orders.OrderDetail
	require.NoError(t, json.Unmarshal(decode(t, completed).Data, &done))
	assert.Equal(t, enums.OrderStatusCompleted, done.Status)

	var stored models.StockItem
	require.NoError(t, s.conn.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, 3, stored.Quantity)
	assert.Equal(t, 0, stored.ReservedQuantity)
}

func TestOrderPlacementIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	_, stockManager := s.principal(t, "STOCK_MANAGER")
	_, creator := s.principal(t)

	created := s.do(t, http.MethodPost, "/api/v1/stock/items", stockManager, map[string]any{
		"name":           "Gasket",
		"original_price": "4",
		"quantity":       10,
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var item struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, created).Data, &item))
	body := map[string]any{"items": []map[string]any{{"stock_item_id": item.ID, "quantity": 2}}}

	keyless := s.send(t, http.MethodPost, "/api/v1/orders", creator, "", body)
	require.Equal(t, http.StatusBadRequest, keyless.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, keyless).Error.Code)

	first := s.send(t, http.MethodPost, "/api/v1/orders", creator, "place-1", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	again := s.send(t, http.MethodPost, "/api/v1/orders", creator, "place-1", body)
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	changed := s.send(t, http.MethodPost, "/api/v1/orders", creator, "place-1",
		map[string]any{"items": []map[string]any{{"stock_item_id": item.ID, "quantity": 3}}})
	require.Equal(t, http.StatusConflict, changed.Code)

	var count int64
	require.NoError(t, s.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	var stored models.StockItem
	require.NoError(t, s.conn.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, 2, stored.ReservedQuantity)
}

func TestUnknownRouteAndBadParam(t *testing.T) {
	s := newTestServer(t)
	_, token := s.principal(t, "ORDERS_MANAGER")

	resp := s.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, resp).Error.Code)

	missing := s.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), token, nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}
