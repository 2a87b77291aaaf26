package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-org-server/auth"
	"github.com/jrsteele09/go-org-server/credentials"
	"github.com/jrsteele09/go-org-server/internal/config"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/server"
	"github.com/jrsteele09/go-org-server/storage/memory"
	"github.com/jrsteele09/go-org-server/token"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)

// testFixture holds all test dependencies
type testFixture struct {
	store  *memory.Store
	tokens *token.Manager
	server *server.Server
	now    time.Time
}

// setupTestFixture creates a server backed by the memory store with a controllable clock
func setupTestFixture(t *testing.T, environment map[string]string) *testFixture {
	t.Helper()

	env := map[string]string{"JWT_SECRET": testSecret, "ENV": "TEST", "APP_NAME": "org-server"}
	for k, v := range environment {
		env[k] = v
	}
	cfg, err := config.LoadFrom(env)
	require.NoError(t, err)

	f := &testFixture{store: memory.New(), now: testNow}
	f.tokens = token.New(token.NewHMACSigner(cfg.GetSigningSecret()),
		token.WithNowFunc(func() time.Time { return f.now }))

	authService, err := auth.NewService(
		auth.Repos{Users: f.store.Users(), Accounts: f.store},
		credentials.BcryptHasher{Cost: bcrypt.MinCost},
	)
	require.NoError(t, err)

	directory, err := organisations.NewDirectory(f.store.Organisations())
	require.NoError(t, err)

	f.server, err = server.New(cfg, server.Services{
		Auth:          authService,
		Organisations: directory,
		Tokens:        f.tokens,
		Health:        f.store,
	}, server.WithVersion("1.2.3"))
	require.NoError(t, err)

	return f
}

type envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type authData struct {
	AccessToken string        `json:"accessToken"`
	User        users.Summary `json:"user"`
}

type account struct {
	token string
	user  users.Summary
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (f *testFixture) register(t *testing.T, first, email string) account {
	t.Helper()

	rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", map[string]string{
		"firstName": first,
		"lastName":  "Tester",
		"email":     email,
		"password":  "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data authData
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	return account{token: data.AccessToken, user: data.User}
}

func (f *testFixture) firstOrganisation(t *testing.T, acc account) organisations.Summary {
	t.Helper()

	rec := f.do(t, http.MethodGet, server.RouteAPIOrganisations, acc.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list server.OrganisationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotEmpty(t, list.Organisation)
	return list.Organisation[0]
}

func TestNewRequiresServices(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"JWT_SECRET": testSecret})
	require.NoError(t, err)

	_, err = server.New(nil, server.Services{})
	require.Error(t, err)
	_, err = server.New(cfg, server.Services{})
	require.Error(t, err)
}

func TestIndexAndHealth(t *testing.T) {
	f := setupTestFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"name":"org-server","version":"1.2.3"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(server.HeaderRequestID))

	rec = f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t, nil)

	t.Run("success returns token and user", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", map[string]string{
			"firstName": "John",
			"lastName":  "Doe",
			"email":     "John.Doe@Example.com",
			"password":  "password123",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		env := decode(t, rec)
		require.Equal(t, "success", env.Status)
		require.Equal(t, "Registration successful", env.Message)
		require.Contains(t, string(env.Data), `"phone":null`)
		require.NotContains(t, string(env.Data), "password")

		var data authData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Equal(t, "john.doe@example.com", data.User.Email)
		require.Nil(t, data.User.Phone)

		claims, err := f.tokens.Validate(data.AccessToken)
		require.NoError(t, err)
		require.Equal(t, data.User.UserID, claims.Subject)
		require.Equal(t, token.AccessTokenLifetime, claims.ExpiresAt.Sub(claims.IssuedAt))

		org := f.firstOrganisation(t, account{token: data.AccessToken})
		require.Equal(t, "John's Organisation", org.Name)
		require.Equal(t, "An Organisation created by Doe John", org.Description)
	})

	t.Run("duplicate email is 422 whatever the other fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", map[string]string{
			"firstName": "Other",
			"lastName":  "Person",
			"email":     "john.doe@example.com",
			"password":  "different",
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		env := decode(t, rec)
		require.Len(t, env.Errors, 1)
		require.Equal(t, "email", env.Errors[0].Field)
		require.Equal(t, "Already Exists", env.Errors[0].Message)
	})

	t.Run("missing fields name the first offender", func(t *testing.T) {
		tests := []struct {
			name  string
			body  map[string]string
			field string
		}{
			{"no first name", map[string]string{"lastName": "Doe", "email": "a@example.com", "password": "x"}, "firstName"},
			{"no last name", map[string]string{"firstName": "A", "email": "a@example.com", "password": "x"}, "lastName"},
			{"no email", map[string]string{"firstName": "A", "lastName": "Doe", "password": "x"}, "email"},
			{"no password", map[string]string{"firstName": "A", "lastName": "Doe", "email": "a@example.com"}, "password"},
			{"everything missing", map[string]string{}, "firstName"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", tc.body)
				require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

				env := decode(t, rec)
				require.Len(t, env.Errors, 1)
				require.Equal(t, tc.field, env.Errors[0].Field)
				require.Equal(t, "Invalid Input", env.Errors[0].Message)
			})
		}
	})

	t.Run("unreadable body is a generic failure", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", "{not json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"status":"Bad request","message":"Registration unsuccessful","statusCode":400}`, rec.Body.String())
	})
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t, nil)
	registered := f.register(t, "Ada", "ada@example.com")

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
			"email":    "ADA@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode(t, rec)
		require.Equal(t, "Login successful", env.Message)

		var data authData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Equal(t, registered.user, data.User)

		claims, err := f.tokens.Validate(data.AccessToken)
		require.NoError(t, err)
		require.Equal(t, registered.user.UserID, claims.Subject)
	})

	t.Run("passwords longer than 72 bytes", func(t *testing.T) {
		password := strings.Repeat("x", 80)
		rec := f.do(t, http.MethodPost, server.RouteAuthRegister, "", map[string]string{
			"firstName": "Long",
			"lastName":  "Password",
			"email":     "long@example.com",
			"password":  password,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
			"email":    "long@example.com",
			"password": password,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		wrongPassword := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
			"email":    "ada@example.com",
			"password": "nope",
		})
		unknownEmail := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{
			"email":    "nobody@example.com",
			"password": "password123",
		})
		missingFields := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{})

		want := `{"status":"Bad request","message":"Authentication failed","statusCode":401}`
		for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownEmail, missingFields} {
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, want, rec.Body.String())
		}
	})
}

func TestRequireAuth(t *testing.T) {
	f := setupTestFixture(t, nil)
	ada := f.register(t, "Ada", "ada@example.com")

	otherSigner := token.New(token.NewHMACSigner("another-secret-another-secret-32"),
		token.WithNowFunc(func() time.Time { return testNow }))
	foreignToken, err := otherSigner.Issue(ada.user.UserID)
	require.NoError(t, err)

	ghostToken, err := f.tokens.Issue(uuid.NewString())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic " + ada.token},
		{"bearer without token", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
		{"signed with another secret", "Bearer " + foreignToken},
		{"subject does not exist", "Bearer " + ghostToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, server.RouteAPIOrganisations, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			f.server.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, `{"status":"Unauthorized","message":"Authentication required","statusCode":401}`, rec.Body.String())
			require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
		})
	}

	t.Run("token expires after one hour", func(t *testing.T) {
		f.now = testNow.Add(token.AccessTokenLifetime - time.Second)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, server.RouteAPIOrganisations, ada.token, nil).Code)

		f.now = testNow.Add(token.AccessTokenLifetime)
		require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, server.RouteAPIOrganisations, ada.token, nil).Code)

		f.now = testNow
	})
}

func TestOrganisationAccess(t *testing.T) {
	f := setupTestFixture(t, nil)
	alice := f.register(t, "Alice", "alice@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	aliceOrg := f.firstOrganisation(t, alice)

	orgPath := "/api/organisations/" + aliceOrg.OrgID
	addPath := orgPath + "/users"
	alicePath := "/api/users/" + alice.user.UserID

	t.Run("disjoint users cannot see each other", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, orgPath, bob.token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"status":"Not Found","message":"Organisation not found","statusCode":404}`, rec.Body.String())

		missing := f.do(t, http.MethodGet, "/api/organisations/"+uuid.NewString(), bob.token, nil)
		require.Equal(t, rec.Body.String(), missing.Body.String())

		rec = f.do(t, http.MethodGet, alicePath, bob.token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"status":"Not Found","message":"User not found","statusCode":404}`, rec.Body.String())
	})

	t.Run("users can always see themselves", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, alicePath, alice.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode(t, rec)
		require.Equal(t, "User Found", env.Message)
		var got users.Summary
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, alice.user, got)
	})

	t.Run("owner adds member idempotently", func(t *testing.T) {
		for range 2 {
			rec := f.do(t, http.MethodPost, addPath, alice.token, map[string]string{"userId": bob.user.UserID})
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, `{"status":"success","message":"User added to organisation successfully"}`, rec.Body.String())
		}

		members, err := f.store.Organisations().Members(context.Background(), aliceOrg.OrgID)
		require.NoError(t, err)
		require.Equal(t, []string{bob.user.UserID}, members)
	})

	t.Run("member gains access", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, orgPath, bob.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode(t, rec)
		require.Equal(t, "Organisation Retrieved", env.Message)
		var got organisations.Summary
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, aliceOrg, got)

		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, alicePath, bob.token, nil).Code)

		rec = f.do(t, http.MethodGet, server.RouteAPIOrganisations, bob.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list server.OrganisationList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Organisation, 2)
	})

	t.Run("only the owner can add members", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, addPath, bob.token, map[string]string{"userId": carol.user.UserID})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, http.MethodPost, addPath, carol.token, map[string]string{"userId": carol.user.UserID})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "Organisation not found")
	})

	t.Run("add member input errors", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, addPath, alice.token, map[string]string{"userId": uuid.NewString()})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "User not found")

		rec = f.do(t, http.MethodPost, addPath, alice.token, map[string]string{})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "userId", decode(t, rec).Errors[0].Field)

		rec = f.do(t, http.MethodPost, addPath, alice.token, "[")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateOrganisation(t *testing.T) {
	f := setupTestFixture(t, nil)
	ada := f.register(t, "Ada", "ada@example.com")

	for _, body := range []any{map[string]string{}, map[string]string{"name": "  "}, "{"} {
		rec := f.do(t, http.MethodPost, server.RouteAPIOrganisations, ada.token, body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"status":"Bad Request","message":"Client error","statusCode":400}`, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, server.RouteAPIOrganisations, ada.token, map[string]string{"name": "Research"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decode(t, rec)
	require.Equal(t, "Organisation created successfully", env.Message)
	var created organisations.Summary
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.OrgID)
	require.Equal(t, "Research", created.Name)
	require.Empty(t, created.Description)

	rec = f.do(t, http.MethodGet, "/api/organisations/"+created.OrgID, ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListOrganisationsEmpty(t *testing.T) {
	f := setupTestFixture(t, nil)
	owner := f.register(t, "Owner", "owner@example.com")

	// An account whose only organisation belongs to someone else has nothing to list.
	ghost := &users.User{ID: uuid.NewString(), FirstName: "Ghost", Email: "ghost@example.com"}
	require.NoError(t, f.store.CreateAccount(context.Background(), ghost,
		&organisations.Organisation{ID: uuid.NewString(), OwnerID: owner.user.UserID, Name: "not ghost's"}))
	ghostToken, err := f.tokens.Issue(ghost.ID)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, server.RouteAPIOrganisations, ghostToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestCors(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"CORS_ALLOWED_ORIGINS": "https://app.example.com"})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, server.RouteAPIOrganisations, nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("preflight from unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, server.RouteAPIOrganisations, nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set(server.HeaderRequestID, "req-123")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "req-123", rec.Header().Get(server.HeaderRequestID))
	})
}
