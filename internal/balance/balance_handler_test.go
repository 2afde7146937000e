package balance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

type fakeBalanceService struct {
	getBalanceFn  func(ctx context.Context, userID, leaveType string) (balance.BalanceResponse, error)
	getBalancesFn func(ctx context.Context, userID string) ([]balance.BalanceResponse, error)
	initializeFn  func(ctx context.Context, userID string) ([]balance.BalanceResponse, error)
	setBalanceFn  func(ctx context.Context, userID, leaveType string, days int) (balance.BalanceResponse, error)
}

func (f *fakeBalanceService) GetBalance(ctx context.Context, userID, leaveType string) (balance.BalanceResponse, error) {
	return f.getBalanceFn(ctx, userID, leaveType)
}
func (f *fakeBalanceService) GetBalances(ctx context.Context, userID string) ([]balance.BalanceResponse, error) {
	return f.getBalancesFn(ctx, userID)
}
func (f *fakeBalanceService) Initialize(ctx context.Context, userID string) ([]balance.BalanceResponse, error) {
	return f.initializeFn(ctx, userID)
}
func (f *fakeBalanceService) SetBalance(ctx context.Context, userID, leaveType string, days int) (balance.BalanceResponse, error) {
	return f.setBalanceFn(ctx, userID, leaveType, days)
}
func (f *fakeBalanceService) Invalidate(context.Context, string) {}

func newBalanceRouter(svc balance.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "me-1")
		c.Set("role", "EMPLOYEE")
		c.Next()
	})
	h := balance.NewHandler(svc)
	r.GET("/balances/me", h.GetMine)
	r.GET("/balances/me/:type", h.GetMineByType)
	r.POST("/users/:id/balances/initialize", h.Initialize)
	r.PUT("/users/:id/balances/:type", h.Set)
	return r
}

func TestBalanceHandler_GetMine(t *testing.T) {
	svc := &fakeBalanceService{
		getBalancesFn: func(_ context.Context, userID string) ([]balance.BalanceResponse, error) {
			assert.Equal(t, "me-1", userID)
			return []balance.BalanceResponse{{UserID: userID, LeaveType: "CASUAL", Balance: 20}}, nil
		},
	}

	w := httptest.NewRecorder()
	newBalanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/balances/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	assert.True(t, env.Ok)
	assert.JSONEq(t, `[{"id":"","user_id":"me-1","leave_type":"CASUAL","balance":20}]`, string(env.Data))
}

func TestBalanceHandler_GetMineByType(t *testing.T) {
	svc := &fakeBalanceService{
		getBalanceFn: func(_ context.Context, _, leaveType string) (balance.BalanceResponse, error) {
			assert.Equal(t, "sick", leaveType)
			return balance.BalanceResponse{}, balanceerrors.ErrBalanceNotFound
		},
	}

	w := httptest.NewRecorder()
	newBalanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/balances/me/sick", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestBalanceHandler_Initialize(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &fakeBalanceService{
			initializeFn: func(_ context.Context, userID string) ([]balance.BalanceResponse, error) {
				assert.Equal(t, "u-9", userID)
				return []balance.BalanceResponse{{UserID: userID, LeaveType: "SICK", Balance: 20}}, nil
			},
		}

		w := httptest.NewRecorder()
		newBalanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u-9/balances/initialize", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("already initialized", func(t *testing.T) {
		svc := &fakeBalanceService{
			initializeFn: func(context.Context, string) ([]balance.BalanceResponse, error) {
				return nil, balanceerrors.ErrAlreadyInitialized
			},
		}

		w := httptest.NewRecorder()
		newBalanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u-9/balances/initialize", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})
}

func TestBalanceHandler_Set(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeBalanceService{
			setBalanceFn: func(_ context.Context, userID, leaveType string, days int) (balance.BalanceResponse, error) {
				assert.Equal(t, "u-9", userID)
				assert.Equal(t, "ANNUAL", leaveType)
				assert.Equal(t, 0, days)
				return balance.BalanceResponse{UserID: userID, LeaveType: leaveType, Balance: days}, nil
			},
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/u-9/balances/ANNUAL", strings.NewReader(`{"balance":0}`))
		req.Header.Set("Content-Type", "application/json")
		newBalanceRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing balance", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/u-9/balances/ANNUAL", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		newBalanceRouter(&fakeBalanceService{}).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})
}
