package transactions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weblate/abrechnung/internal/pgerr"
)

type call struct {
	op            string
	userID        int64
	groupID       int64
	transactionID int64
	kind          ShareKind
	accountID     uuid.UUID
	value         float64
	create        NewTransaction
}

// fakeService records calls and fails with err when set.
type fakeService struct {
	calls []call
	err   error
	txs   []Transaction
}

func (f *fakeService) ListTransactions(_ context.Context, userID, groupID int64) ([]Transaction, error) {
	f.calls = append(f.calls, call{op: "list", userID: userID, groupID: groupID})
	return f.txs, f.err
}

func (f *fakeService) GetTransaction(_ context.Context, userID, groupID, transactionID int64) (Transaction, error) {
	f.calls = append(f.calls, call{op: "get", userID: userID, groupID: groupID, transactionID: transactionID})
	if f.err != nil {
		return Transaction{}, f.err
	}
	for _, t := range f.txs {
		if t.ID == transactionID {
			return t, nil
		}
	}
	return Transaction{}, pgerr.ErrNotFound
}

func (f *fakeService) CreateTransaction(_ context.Context, userID, groupID int64, in NewTransaction) (int64, error) {
	f.calls = append(f.calls, call{op: "create", userID: userID, groupID: groupID, create: in})
	return 17, f.err
}

func (f *fakeService) CommitTransaction(_ context.Context, userID, groupID, transactionID int64) error {
	f.calls = append(f.calls, call{op: "commit", userID: userID, groupID: groupID, transactionID: transactionID})
	return f.err
}

func (f *fakeService) AddOrChangeShare(_ context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error {
	f.calls = append(f.calls, call{op: "set", userID: userID, groupID: groupID, transactionID: transactionID, kind: kind, accountID: accountID, value: value})
	return f.err
}

func (f *fakeService) SwitchShare(_ context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error {
	f.calls = append(f.calls, call{op: "switch", userID: userID, groupID: groupID, transactionID: transactionID, kind: kind, accountID: accountID, value: value})
	return f.err
}

func (f *fakeService) DeleteShare(_ context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID) error {
	f.calls = append(f.calls, call{op: "delete", userID: userID, groupID: groupID, transactionID: transactionID, kind: kind, accountID: accountID})
	return f.err
}

func newTestApp(svc *fakeService, userID int64) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: pgerr.ErrorHandler})
	if userID != 0 {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", userID)
			return c.Next()
		})
	}
	NewHandler(svc, svc).Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func TestHandler_Create(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, 3)

	code, body := do(t, app, http.MethodPost, "/groups/5/transactions",
		`{"description":"groceries","type":"purchase","value":12,"currency_symbol":"€","currency_conversion_rate":1.5}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{"transaction_id":"17"}`, body)

	require.Len(t, svc.calls, 1)
	assert.Equal(t, call{op: "create", userID: 3, groupID: 5, create: NewTransaction{
		Description: "groceries", Type: "purchase", Value: 12, CurrencySymbol: "€", CurrencyConversionRate: 1.5,
	}}, svc.calls[0])
}

func TestHandler_CreateRejectsBadBodies(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, 3)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "not json", body: `{`, msg: "invalid body"},
		{name: "array", body: `[1]`, msg: "invalid body"},
		{name: "missing key", body: `{"description":"x","type":"purchase","value":1,"currency_symbol":"€"}`, msg: `invalid body: missing key "currency_conversion_rate"`},
		{name: "extra key", body: `{"description":"x","type":"purchase","value":1,"currency_symbol":"€","currency_conversion_rate":1,"note":""}`, msg: `invalid body: unexpected key "note"`},
		{name: "wrong type", body: `{"description":"x","type":"purchase","value":"1","currency_symbol":"€","currency_conversion_rate":1}`, msg: `invalid body: key "value" must be a number`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, app, http.MethodPost, "/groups/5/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.msg), body)
		})
	}
	assert.Empty(t, svc.calls)
}

func TestHandler_ListAndGet(t *testing.T) {
	account := uuid.New().String()
	svc := &fakeService{txs: []Transaction{{
		ID: 9, GroupID: 5, Type: "purchase", Description: "fuel", Value: 60, CurrencySymbol: "€",
		CurrencyConversionRate: 1, CreditorShares: map[string]float64{account: 1}, DebitorShares: map[string]float64{account: 2},
	}}}
	app := newTestApp(svc, 3)

	code, body := do(t, app, http.MethodGet, "/groups/5/transactions", "")
	require.Equal(t, http.StatusOK, code, body)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "fuel", list[0]["description"])
	assert.Equal(t, map[string]any{account: float64(2)}, list[0]["debitor_shares"])

	code, body = do(t, app, http.MethodGet, "/groups/5/transactions/9", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"committed":false`)
	assert.Contains(t, body, `"currency_conversion_rate":1`)

	code, body = do(t, app, http.MethodGet, "/groups/5/transactions/10", "")
	assert.Equal(t, http.StatusNotFound, code, body)

	assert.Equal(t, call{op: "get", userID: 3, groupID: 5, transactionID: 9}, svc.calls[1])
}

func TestHandler_ListEmptyIsArray(t *testing.T) {
	app := newTestApp(&fakeService{}, 3)
	code, body := do(t, app, http.MethodGet, "/groups/5/transactions", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", body)
}

func TestHandler_Shares(t *testing.T) {
	account := uuid.New()
	setBody := fmt.Sprintf(`{"account_id":%q,"value":2}`, account)
	deleteBody := fmt.Sprintf(`{"account_id":%q}`, account)

	tests := []struct {
		method string
		path   string
		body   string
		want   call
	}{
		{http.MethodPost, "/groups/5/transactions/9/commit", "", call{op: "commit"}},
		{http.MethodPost, "/groups/5/transactions/9/creditor_shares", setBody, call{op: "set", kind: Creditor, accountID: account, value: 2}},
		{http.MethodPost, "/groups/5/transactions/9/creditor_shares/switch", setBody, call{op: "switch", kind: Creditor, accountID: account, value: 2}},
		{http.MethodDelete, "/groups/5/transactions/9/creditor_shares", deleteBody, call{op: "delete", kind: Creditor, accountID: account}},
		{http.MethodPost, "/groups/5/transactions/9/debitor_shares", setBody, call{op: "set", kind: Debitor, accountID: account, value: 2}},
		{http.MethodPost, "/groups/5/transactions/9/debitor_shares/switch", setBody, call{op: "switch", kind: Debitor, accountID: account, value: 2}},
		{http.MethodDelete, "/groups/5/transactions/9/debitor_shares", deleteBody, call{op: "delete", kind: Debitor, accountID: account}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			svc := &fakeService{}
			app := newTestApp(svc, 3)

			code, body := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNoContent, code, body)
			assert.Empty(t, body)

			want := tt.want
			want.userID, want.groupID, want.transactionID = 3, 5, 9
			require.Len(t, svc.calls, 1)
			assert.Equal(t, want, svc.calls[0])
		})
	}
}

func TestHandler_ShareBodies(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, 3)

	code, body := do(t, app, http.MethodPost, "/groups/5/transactions/9/debitor_shares", `{"account_id":"alice","value":2}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"invalid body: key \"account_id\" must be a uuid"}`, body)

	code, _ = do(t, app, http.MethodDelete, "/groups/5/transactions/9/debitor_shares",
		fmt.Sprintf(`{"account_id":%q,"value":2}`, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Empty(t, svc.calls)
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{name: "permission", err: fmt.Errorf("commit: %w", pgerr.ErrPermissionDenied), code: http.StatusForbidden, msg: "permission denied"},
		{name: "not found", err: pgerr.ErrNotFound, code: http.StatusNotFound, msg: "not found"},
		{name: "invalid", err: fmt.Errorf("%w: incomplete", pgerr.ErrInvalid), code: http.StatusBadRequest, msg: "invalid request: incomplete"},
		{name: "other", err: fmt.Errorf("pool closed"), code: http.StatusInternalServerError, msg: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeService{err: tt.err}, 3)
			code, body := do(t, app, http.MethodPost, "/groups/5/transactions/9/commit", "")
			assert.Equal(t, tt.code, code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.msg), body)
		})
	}
}

func TestHandler_Routing(t *testing.T) {
	svc := &fakeService{}

	code, _ := do(t, newTestApp(svc, 3), http.MethodGet, "/groups/abc/transactions", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, newTestApp(svc, 3), http.MethodPost, "/groups/5/transactions/x/commit", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := do(t, newTestApp(svc, 0), http.MethodGet, "/groups/5/transactions", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, body)

	assert.Empty(t, svc.calls)
}
