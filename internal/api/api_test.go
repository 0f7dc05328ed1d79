package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitsocial/followgraph/internal/auth"
	"github.com/fitsocial/followgraph/internal/memstore"
	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/internal/service"
	"github.com/fitsocial/followgraph/pkg/config"
)

type rpcResponse struct {
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *JSONRPCError   `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	auth   *auth.Authenticator
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := service.New(memstore.New())
	if err != nil {
		t.Fatal(err)
	}
	authenticator := auth.New(&config.AuthConfig{JWTSecret: "test-secret", Issuer: "followgraph"})

	engine := gin.New()
	NewRouter(svc, authenticator, checks).SetupRoutes(engine)
	return &testServer{engine: engine, auth: authenticator}
}

func (s *testServer) token(t *testing.T, id string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) call(t *testing.T, token, method string, params interface{}) rpcResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s.post(t, token, string(raw))
}

func (s *testServer) post(t *testing.T, token, body string) rpcResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
	var resp rpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response %s: %v", w.Body.String(), err)
	}
	return resp
}

func (s *testServer) provision(t *testing.T, id, privacy string) string {
	t.Helper()
	tok := s.token(t, id)
	resp := s.call(t, tok, "accounts.provision", map[string]string{"username": id + "_name", "privacy": privacy})
	if resp.Error != nil {
		t.Fatalf("provision %s: %+v", id, resp.Error)
	}
	return tok
}

func TestFollowFlow(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.provision(t, "alice", "private")
	bob := s.provision(t, "bob", "public")

	resp := s.call(t, bob, "relations.send_follow_request", map[string]string{"target": "alice"})
	if resp.Error != nil {
		t.Fatalf("send_follow_request: %+v", resp.Error)
	}
	var pair struct {
		Actor  relation.Account `json:"actor"`
		Target relation.Account `json:"target"`
	}
	if err := json.Unmarshal(resp.Result, &pair); err != nil {
		t.Fatal(err)
	}
	if pair.Actor.ID != "bob" || pair.Target.Counts.PendingIncoming != 1 {
		t.Errorf("pair = %+v", pair)
	}

	resp = s.call(t, alice, "relations.list_received_requests", map[string]int{"limit": 10})
	if resp.Error != nil {
		t.Fatalf("list_received_requests: %+v", resp.Error)
	}
	var page service.MemberPage
	if err := json.Unmarshal(resp.Result, &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || len(page.IDs) != 1 || page.IDs[0] != "bob" {
		t.Errorf("page = %+v", page)
	}

	resp = s.call(t, alice, "relations.accept_follow_request", map[string]string{"target": "bob"})
	if resp.Error != nil {
		t.Fatalf("accept_follow_request: %+v", resp.Error)
	}

	resp = s.call(t, bob, "accounts.can_view", map[string]string{"account": "alice"})
	if resp.Error != nil {
		t.Fatalf("can_view: %+v", resp.Error)
	}
	var view canViewResult
	if err := json.Unmarshal(resp.Result, &view); err != nil {
		t.Fatal(err)
	}
	if !view.Visible {
		t.Error("follower should see private account")
	}

	resp = s.call(t, bob, "relations.follow_status", map[string]string{"target": "alice"})
	var status struct {
		Following bool `json:"following"`
	}
	if resp.Error != nil || json.Unmarshal(resp.Result, &status) != nil || !status.Following {
		t.Errorf("follow_status = %s, %+v", resp.Result, resp.Error)
	}
}

func TestErrorCodes(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.provision(t, "alice", "private")
	bob := s.provision(t, "bob", "public")
	carol := s.provision(t, "carol", "public")

	if resp := s.call(t, bob, "relations.send_follow_request", map[string]string{"target": "alice"}); resp.Error != nil {
		t.Fatal(resp.Error)
	}

	tests := []struct {
		name   string
		token  string
		method string
		params interface{}
		want   int
	}{
		{"not found", bob, "relations.send_follow_request", map[string]string{"target": "ghost"}, ErrNotFound},
		{"already exists", bob, "relations.send_follow_request", map[string]string{"target": "alice"}, ErrAlreadyExists},
		{"self reference", bob, "relations.send_follow_request", map[string]string{"target": "bob"}, ErrSelfReference},
		{"missing relationship", bob, "relations.unfollow", map[string]string{"target": "alice"}, ErrNotFound},
		{"unauthenticated", "", "relations.unfollow", map[string]string{"target": "alice"}, ErrUnauthenticated},
		{"bad token", "garbage", "accounts.get_account", map[string]string{"account": "bob"}, ErrUnauthenticated},
		{"forbidden", carol, "accounts.get_account", map[string]string{"account": "alice"}, ErrForbidden},
		{"anonymous forbidden", "", "accounts.get_account", map[string]string{"account": "alice"}, ErrForbidden},
		{"duplicate provision", alice, "accounts.provision", map[string]string{"username": "alice_again"}, ErrAlreadyExists},
		{"short username", s.token(t, "dave"), "accounts.provision", map[string]string{"username": "ab"}, ErrInvalidParams},
		{"missing param", bob, "relations.unfollow", map[string]string{}, ErrInvalidParams},
		{"unknown param", bob, "relations.unfollow", map[string]string{"target": "alice", "extra": "x"}, ErrInvalidParams},
		{"bad privacy", alice, "accounts.set_privacy", map[string]string{"privacy": "hidden"}, ErrInvalidParams},
		{"negative offset", bob, "relations.list_followers", map[string]int{"offset": -1}, ErrInvalidParams},
		{"unknown method", bob, "relations.block", map[string]string{}, ErrMethodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.call(t, tt.token, tt.method, tt.params)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.want {
				t.Errorf("code = %d (%s), want %d", resp.Error.Code, resp.Error.Message, tt.want)
			}
		})
	}
}

func TestMalformedRequests(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", ErrParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"accounts.get_own_account"}`, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.post(t, "", tt.body)
			if resp.Error == nil || resp.Error.Code != tt.want {
				t.Errorf("error = %+v, want code %d", resp.Error, tt.want)
			}
		})
	}
}

func TestPrivacyMethods(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.provision(t, "alice", "private")
	bob := s.provision(t, "bob", "")

	if resp := s.call(t, bob, "relations.send_follow_request", map[string]string{"target": "alice"}); resp.Error != nil {
		t.Fatal(resp.Error)
	}

	resp := s.call(t, alice, "accounts.toggle_privacy", nil)
	if resp.Error != nil {
		t.Fatalf("toggle_privacy: %+v", resp.Error)
	}
	var res service.PrivacyResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatal(err)
	}
	if res.Account.Privacy != relation.PrivacyPublic || len(res.Accepted) != 1 {
		t.Errorf("toggle result = %+v", res)
	}

	resp = s.call(t, alice, "accounts.set_privacy", map[string]string{"privacy": "private"})
	if resp.Error != nil {
		t.Fatalf("set_privacy: %+v", resp.Error)
	}

	resp = s.call(t, alice, "accounts.get_own_account", nil)
	var acct relation.Account
	if resp.Error != nil || json.Unmarshal(resp.Result, &acct) != nil {
		t.Fatalf("get_own_account = %s, %+v", resp.Result, resp.Error)
	}
	if acct.Privacy != relation.PrivacyPrivate || acct.Counts.Followers != 1 {
		t.Errorf("account = %+v", acct)
	}
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.provision(t, "alice", "public")
	s.provision(t, "bob", "public")

	tests := []struct {
		name     string
		params   interface{}
		wantCode int
		wantUser string
		wantName string
	}{
		{"rename", map[string]string{"username": "alice_w"}, 0, "alice_w", ""},
		{"display name only", map[string]string{"display_name": "Alice W"}, 0, "alice_w", "Alice W"},
		{"multibyte username", map[string]string{"username": "ålé"}, 0, "ålé", "Alice W"},
		{"short username", map[string]string{"username": "al"}, ErrInvalidParams, "", ""},
		{"username taken", map[string]string{"username": "bob_name"}, ErrAlreadyExists, "", ""},
		{"nothing to update", map[string]string{}, ErrInvalidParams, "", ""},
		{"unknown field", map[string]string{"avatar": "x.png"}, ErrInvalidParams, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.call(t, alice, "accounts.update_profile", tt.params)
			if tt.wantCode != 0 {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Fatalf("error = %+v, want code %d", resp.Error, tt.wantCode)
				}
				return
			}
			if resp.Error != nil {
				t.Fatalf("update_profile: %+v", resp.Error)
			}
			var acct relation.Account
			if err := json.Unmarshal(resp.Result, &acct); err != nil {
				t.Fatal(err)
			}
			if acct.Username != tt.wantUser || acct.DisplayName != tt.wantName {
				t.Errorf("account = %+v, want username %q display name %q", acct, tt.wantUser, tt.wantName)
			}
		})
	}

	if resp := s.call(t, "", "accounts.update_profile", map[string]string{"username": "anon"}); resp.Error == nil || resp.Error.Code != ErrUnauthenticated {
		t.Errorf("anonymous update error = %+v", resp.Error)
	}
}

func TestPanickingMethod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewJSONRPCHandler()
	h.RegisterMethod("test.panic", func(*gin.Context, json.RawMessage) (interface{}, error) {
		panic("boom")
	})
	engine := gin.New()
	engine.POST("/", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"test.panic"}`))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp rpcResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response %s: %v", w.Body.String(), err)
	}
	if resp.Error == nil || resp.Error.Code != ErrInternalError {
		t.Errorf("error = %+v, want code %d", resp.Error, ErrInternalError)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		want   int
	}{
		{"healthy", map[string]HealthCheck{"store": func(context.Context) error { return nil }}, http.StatusOK},
		{"degraded", map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("down") }}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.checks)
			for _, path := range []string{"/health", "/.well-known/healthcheck.json"} {
				w := httptest.NewRecorder()
				s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				if w.Code != tt.want {
					t.Errorf("%s status = %d, want %d", path, w.Code, tt.want)
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", relation.ErrInvalidTransition), ErrInvalidTransition},
		{fmt.Errorf("%w: reset", relation.ErrStore), ErrStoreUnavailable},
		{NewError(ErrInvalidParams, "bad"), ErrInvalidParams},
		{errors.New("boom"), ErrServerError},
	}
	for _, tt := range tests {
		if code, _, _ := classify(tt.err); code != tt.want {
			t.Errorf("classify(%v) = %d, want %d", tt.err, code, tt.want)
		}
	}
}
