package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rotadovale/motofest/internal/auth"
	"github.com/rotadovale/motofest/internal/db"
	"github.com/rotadovale/motofest/internal/geo"
	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/pix"
	"github.com/rotadovale/motofest/internal/store"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "test-webhook-secret"
)

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	token  string
}

// fakeGateway stands in for the PIX gateway: it acknowledges charges and
// reports them with a fixed status.
func fakeGateway(t *testing.T, status string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/charges", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Txid string `json:"txid"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(pix.Charge{
			Txid:       req.Txid,
			Status:     pix.StatusPending,
			CopyPaste:  "00020126pixcopypaste",
			QRCodeData: "qrcode-payload",
		})
	})
	mux.HandleFunc("GET /v1/charges/{txid}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pix.Charge{Txid: r.PathValue("txid"), Status: status})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupTestServer(t *testing.T, gatewayStatus string) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	gateway := fakeGateway(t, gatewayStatus)
	pixClient := pix.NewClient(gateway.URL, "gateway-token", testWebhookSecret)
	geoClient := geo.NewClient("http://unused.invalid", geo.NewCache(time.Hour))

	pricing := store.Pricing{BaseFeeCents: 15000, ExtraShirtCents: 5000}
	router := NewRouter(database, testJWTSecret, pixClient, geoClient, pricing, 10*time.Minute)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if _, err := store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin); err != nil {
		t.Fatalf("seeding admin: %v", err)
	}
	for _, size := range []string{"M", "L"} {
		if err := store.SetStockTotal(ctx, database, size, model.SleeveShort, 10); err != nil {
			t.Fatalf("seeding stock: %v", err)
		}
	}

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp["token"] == "" {
		t.Fatal("empty token from login")
	}

	return &testEnv{server: server, db: database, token: loginResp["token"]}
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func signupBody(email, cpf string) map[string]any {
	return map[string]any{
		"name":       "Ana Souza",
		"email":      email,
		"cpf":        cpf,
		"city":       "Caxias do Sul",
		"state":      "RS",
		"motorcycle": "Honda CB 500X",
		"shirt":      map[string]string{"size": "M", "sleeve": model.SleeveShort},
		"extras": []map[string]string{
			{"size": "L", "sleeve": model.SleeveShort},
		},
	}
}

func createSignup(t *testing.T, env *testEnv, email, cpf string) createRegistrationResponse {
	t.Helper()
	body, _ := json.Marshal(signupBody(email, cpf))
	resp, err := http.Post(env.server.URL+"/api/registrations", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created createRegistrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decoding signup response: %v", err)
	}
	return created
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSignupFlow(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	created := createSignup(t, env, "ana@example.com", "52998224725")
	reg := created.Registration
	if reg.Number < 101 {
		t.Errorf("expected number >= 101, got %d", reg.Number)
	}
	if reg.AmountCents != 20000 {
		t.Errorf("expected amount 20000 (base + one extra), got %d", reg.AmountCents)
	}
	if reg.PixTxid == "" {
		t.Error("expected a txid on the registration")
	}
	if created.Payment == nil || created.Payment.CopyPaste == "" {
		t.Error("expected a payable charge in the response")
	}

	// The public status page finds it by number.
	resp, err := http.Get(fmt.Sprintf("%s/api/registrations/%d/status", env.server.URL, reg.Number))
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status statusView
	json.NewDecoder(resp.Body).Decode(&status)
	if status.PaymentStatus != model.PaymentPending {
		t.Errorf("expected pending, got %q", status.PaymentStatus)
	}
	if status.Name != "Ana Souza" {
		t.Errorf("unexpected name %q", status.Name)
	}

	// Both shirts show up as reserved units on the public stock list.
	stockResp, err := http.Get(env.server.URL + "/api/stock")
	if err != nil {
		t.Fatalf("stock request: %v", err)
	}
	defer stockResp.Body.Close()
	var stock []model.ShirtStock
	json.NewDecoder(stockResp.Body).Decode(&stock)
	for _, s := range stock {
		if s.ReservedUnits != 1 {
			t.Errorf("expected 1 reserved unit for %s/%s, got %d", s.Size, s.Sleeve, s.ReservedUnits)
		}
	}
}

func TestSignupDuplicateIdentity(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	createSignup(t, env, "ana@example.com", "52998224725")

	body, _ := json.Marshal(signupBody("ana@example.com", "11144477735"))
	resp, _ := http.Post(env.server.URL+"/api/registrations", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSignupSoldOut(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	// Only one L shirt left; the first signup's extra takes it.
	if err := store.SetStockTotal(context.Background(), env.db, "L", model.SleeveShort, 1); err != nil {
		t.Fatalf("SetStockTotal: %v", err)
	}
	createSignup(t, env, "ana@example.com", "52998224725")

	body, _ := json.Marshal(signupBody("bruno@example.com", "11144477735"))
	resp, _ := http.Post(env.server.URL+"/api/registrations", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for sold-out variant, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSignupRejectsBadCPF(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	body, _ := json.Marshal(signupBody("ana@example.com", "12345678901"))
	resp, _ := http.Post(env.server.URL+"/api/registrations", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid cpf, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhookConfirmsPayment(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)
	created := createSignup(t, env, "ana@example.com", "52998224725")

	note, _ := json.Marshal(pix.Notification{Txid: created.Registration.PixTxid, Status: pix.StatusApproved})

	// Without a valid signature the notification is rejected.
	req, _ := http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without signature, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Signed, it confirms the registration.
	req, _ = http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	req.Header.Set(SignatureHeader, pix.Sign(testWebhookSecret, time.Now(), note))
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	reg, err := store.GetRegistration(context.Background(), env.db, created.Registration.ID)
	if err != nil || reg == nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	if reg.PaymentStatus != model.PaymentConfirmed {
		t.Errorf("expected confirmed, got %q", reg.PaymentStatus)
	}

	// Redelivery of the same notification stays a 200.
	req, _ = http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	req.Header.Set(SignatureHeader, pix.Sign(testWebhookSecret, time.Now(), note))
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on redelivery, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhookUnknownTxidAcknowledged(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	note, _ := json.Marshal(pix.Notification{Txid: "deadbeef", Status: pix.StatusApproved})
	req, _ := http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	req.Header.Set(SignatureHeader, pix.Sign(testWebhookSecret, time.Now(), note))
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for unknown txid, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhookRejectedChargeCancels(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)
	created := createSignup(t, env, "ana@example.com", "52998224725")

	note, _ := json.Marshal(pix.Notification{Txid: created.Registration.PixTxid, Status: pix.StatusRejected})
	req, _ := http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	req.Header.Set(SignatureHeader, pix.Sign(testWebhookSecret, time.Now(), note))
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Cancelling released the reserved units right away.
	stock, err := store.GetStock(context.Background(), env.db, "M", model.SleeveShort)
	if err != nil || stock == nil {
		t.Fatalf("GetStock: %v", err)
	}
	if stock.ReservedUnits != 0 {
		t.Errorf("expected 0 reserved after rejection, got %d", stock.ReservedUnits)
	}
}

func TestWebhookRejectionAfterConfirmationIgnored(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)
	created := createSignup(t, env, "ana@example.com", "52998224725")

	if _, err := store.ConfirmPayment(context.Background(), env.db, created.Registration.ID); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	// A late rejection for an already paid registration must not undo it.
	note, _ := json.Marshal(pix.Notification{Txid: created.Registration.PixTxid, Status: pix.StatusRejected})
	req, _ := http.NewRequest("POST", env.server.URL+"/api/payments/webhook", bytes.NewReader(note))
	req.Header.Set(SignatureHeader, pix.Sign(testWebhookSecret, time.Now(), note))
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	reg, err := store.GetRegistration(context.Background(), env.db, created.Registration.ID)
	if err != nil || reg == nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	if reg.PaymentStatus != model.PaymentConfirmed {
		t.Errorf("expected confirmed to survive rejection, got %q", reg.PaymentStatus)
	}

	stock, err := store.GetStock(context.Background(), env.db, "M", model.SleeveShort)
	if err != nil || stock == nil {
		t.Fatalf("GetStock: %v", err)
	}
	if stock.ReservedUnits != 1 {
		t.Errorf("expected the paid shirt to stay reserved, got %d", stock.ReservedUnits)
	}
}

func TestPollPaymentReconciles(t *testing.T) {
	// The gateway says approved but no webhook ever arrived.
	env := setupTestServer(t, pix.StatusApproved)
	created := createSignup(t, env, "ana@example.com", "52998224725")

	url := fmt.Sprintf("%s/api/registrations/%d/payment", env.server.URL, created.Registration.ID)
	req, _ := authRequest("GET", url, env.token, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	reg, _ := store.GetRegistration(context.Background(), env.db, created.Registration.ID)
	if reg.PaymentStatus != model.PaymentConfirmed {
		t.Errorf("expected poll to confirm, got %q", reg.PaymentStatus)
	}
}

func TestManualConfirmAndDelete(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)
	created := createSignup(t, env, "ana@example.com", "52998224725")
	id := created.Registration.ID

	req, _ := authRequest("POST", fmt.Sprintf("%s/api/registrations/%d/confirm", env.server.URL, id), env.token, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 confirming, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("DELETE", fmt.Sprintf("%s/api/registrations/%d", env.server.URL, id), env.token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Gone for real, and its reservation with it.
	req, _ = authRequest("GET", fmt.Sprintf("%s/api/registrations/%d", env.server.URL, id), env.token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	stock, _ := store.GetStock(context.Background(), env.db, "M", model.SleeveShort)
	if stock.ReservedUnits != 0 {
		t.Errorf("expected 0 reserved after delete, got %d", stock.ReservedUnits)
	}
}

func TestExtraShirtEndpoints(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)
	created := createSignup(t, env, "ana@example.com", "52998224725")
	id := created.Registration.ID

	req, _ := authRequest("POST", fmt.Sprintf("%s/api/registrations/%d/extras", env.server.URL, id), env.token,
		store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 adding extra, got %d", resp.StatusCode)
	}
	var extra model.ExtraShirt
	json.NewDecoder(resp.Body).Decode(&extra)
	resp.Body.Close()

	req, _ = authRequest("DELETE", fmt.Sprintf("%s/api/registrations/%d/extras/%d", env.server.URL, id, extra.ID), env.token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 removing extra, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	reg, _ := store.GetRegistration(context.Background(), env.db, id)
	if reg.AmountCents != created.Registration.AmountCents {
		t.Errorf("expected amount back to %d, got %d", created.Registration.AmountCents, reg.AmountCents)
	}
}

func TestStockUpdateEndpoint(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	req, _ := authRequest("PUT", env.server.URL+"/api/stock/M/short", env.token, setStockRequest{TotalUnits: 25})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stock model.ShirtStock
	json.NewDecoder(resp.Body).Decode(&stock)
	resp.Body.Close()
	if stock.TotalUnits != 25 {
		t.Errorf("expected total 25, got %d", stock.TotalUnits)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	resp, _ := http.Get(env.server.URL + "/api/registrations")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	manager, err := store.CreateUser(ctx, env.db, "manager", string(hash), model.RoleManager)
	if err != nil {
		t.Fatalf("seeding manager: %v", err)
	}
	managerToken, _ := auth.GenerateToken(testJWTSecret, manager.ID, manager.Username, manager.Role)

	// Managers run the event but do not manage accounts.
	req, _ := authRequest("GET", env.server.URL+"/api/users", managerToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for manager accessing users, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("GET", env.server.URL+"/api/registrations", managerToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for manager listing registrations, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	req, _ := authRequest("POST", env.server.URL+"/api/auth/logout", env.token, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 logging out, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("GET", env.server.URL+"/api/registrations", env.token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with revoked token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChampionsFlow(t *testing.T) {
	env := setupTestServer(t, pix.StatusPending)

	req, _ := authRequest("POST", env.server.URL+"/api/champions", env.token, championRequest{
		Year:       2024,
		Rider:      "Carlos Mendes",
		Motorcycle: "BMW R 1250 GS",
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Hall of fame is public.
	listResp, _ := http.Get(env.server.URL + "/api/champions")
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}
	var champions []model.Champion
	json.NewDecoder(listResp.Body).Decode(&champions)
	listResp.Body.Close()
	if len(champions) != 1 || champions[0].Rider != "Carlos Mendes" {
		t.Errorf("unexpected champions list: %+v", champions)
	}
}
