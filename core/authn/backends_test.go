package authn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgate/config"
	"authgate/core/kv"
	"authgate/core/rbac"
	"authgate/core/session"
	"authgate/core/utils"
)

const backendTestKey = "0123456789abcdef0123456789abcdef"

func testPolicy(t *testing.T) *rbac.Policy {
	t.Helper()
	p, err := rbac.NewPolicy(rbac.RolesFromConfig(map[string][]string{
		"reporter": {"read:reports"},
	}))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func sealedSecret(t *testing.T, box *utils.Encryptor, plain string) string {
	t.Helper()
	sealed, err := box.EncryptString(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return sealed
}

func issueJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestOAuth2LoginHappyPath(t *testing.T) {
	box, err := utils.NewEncryptorFromString(backendTestKey)
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	var gotPassword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPassword = r.PostFormValue("password")
		tok := issueJWT(t, jwt.MapClaims{
			"sub":   "alice",
			"roles": []string{"reporter"},
			"scope": "read:reports",
		})
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "token_type": "bearer", "expires_in": 3600})
	}))
	defer srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewOAuth2Backend(config.OAuth2Config{TokenURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	res, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "hunter2!"), "203.0.113.5")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if gotPassword != "hunter2!" {
		t.Fatalf("backend must receive the decrypted secret, got %q", gotPassword)
	}
	if !res.Success || res.User != "alice" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Permissions) != 1 || res.Permissions[0] != "read:reports" {
		t.Fatalf("roles must resolve to permissions: %v", res.Permissions)
	}
	if res.Token == "" {
		t.Fatal("result must carry the issued token")
	}
}

func TestOAuth2LoginRejectionIsOpaque(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant","error_description":"account disabled by admin"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewOAuth2Backend(config.OAuth2Config{TokenURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	_, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "wrong"), "203.0.113.5")
	if !IsKind(err, KindInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err.Error() != "invalid credentials" {
		t.Fatalf("backend detail must not leak to the caller: %q", err.Error())
	}
}

func TestOAuth2LoginMissingClaimsRejected(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := issueJWT(t, jwt.MapClaims{"sub": "alice"})
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok})
	}))
	defer srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewOAuth2Backend(config.OAuth2Config{TokenURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	_, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "hunter2!"), "203.0.113.5")
	if !IsKind(err, KindInvalidCredentials) {
		t.Fatalf("claims without roles and scope must be rejected, got %v", err)
	}
}

func TestOAuth2TransportFailureIsBackendUnavailable(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewOAuth2Backend(config.OAuth2Config{TokenURL: srv.URL}, sessions, testPolicy(t), box, time.Second, utils.NewLogger())
	_, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "hunter2!"), "203.0.113.5")
	if !IsKind(err, KindBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestOAuth2LogoutRevokesAndDestroys(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	var revokedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		revokedToken = r.PostFormValue("token")
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	id, err := sessions.Create(ctx, &session.Session{Token: "tok-1", User: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b := NewOAuth2Backend(config.OAuth2Config{RevokeURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	if err := b.Logout(ctx, id); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if revokedToken != "tok-1" {
		t.Fatalf("token must be revoked with the external system, got %q", revokedToken)
	}
	if got, _ := sessions.Get(ctx, id); got != nil {
		t.Fatal("session must be destroyed on logout")
	}
	if err := b.Logout(ctx, id); err != nil {
		t.Fatalf("logout of a destroyed session must not error: %v", err)
	}
}

func TestOAuth2LogoutSurfacesRevokeFailure(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	id, _ := sessions.Create(ctx, &session.Session{Token: "tok-2", User: "bob"})
	b := NewOAuth2Backend(config.OAuth2Config{RevokeURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	if err := b.Logout(ctx, id); err == nil {
		t.Fatal("revoke failure must surface, not be swallowed")
	}
	if got, _ := sessions.Get(ctx, id); got != nil {
		t.Fatal("session must still be destroyed when revoke fails")
	}
}

func TestDirectoryLoginHappyPath(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/login" {
			http.NotFound(w, r)
			return
		}
		var req directoryLoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "alice" || req.Password != "hunter2!" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(directoryLoginResponse{
			User:        "alice",
			Token:       "dir-tok",
			Roles:       []string{"reporter"},
			Permissions: []string{"read:reports"},
			Groups:      []string{"staff"},
		})
	}))
	defer srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewDirectoryBackend(config.DirectoryConfig{BaseURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	res, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "hunter2!"), "203.0.113.5")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "dir-tok" || res.User != "alice" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Permissions) != 1 || res.Permissions[0] != "read:reports" {
		t.Fatalf("roles must resolve to permissions: %v", res.Permissions)
	}
}

func TestDirectoryLoginRejectedIsOpaque(t *testing.T) {
	box, _ := utils.NewEncryptorFromString(backendTestKey)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user suspended pending investigation", http.StatusForbidden)
	}))
	defer srv.Close()

	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	b := NewDirectoryBackend(config.DirectoryConfig{BaseURL: srv.URL}, sessions, testPolicy(t), box, 2*time.Second, utils.NewLogger())
	_, err := b.Login(context.Background(), "alice", sealedSecret(t, box, "hunter2!"), "203.0.113.5")
	if !IsKind(err, KindInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err.Error() != "invalid credentials" {
		t.Fatalf("backend detail must not leak: %q", err.Error())
	}
}

func TestClaimStrings(t *testing.T) {
	if got := claimStrings("read:a read:b"); len(got) != 2 {
		t.Fatalf("scope string must split on spaces: %v", got)
	}
	if got := claimStrings([]any{"a", "b", 3}); len(got) != 2 {
		t.Fatalf("non-strings must be skipped: %v", got)
	}
	if got := claimStrings(nil); got != nil {
		t.Fatalf("nil claim must stay nil: %v", got)
	}
}
