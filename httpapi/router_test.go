package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/avatar"
	"github.com/MrEthical07/phonebook/contacts"
	"github.com/MrEthical07/phonebook/internal/memstore"
	"github.com/MrEthical07/phonebook/mailer"
	"github.com/MrEthical07/phonebook/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	email    = "ada@x.com"
	password = "secret1"
)

type apiEnv struct {
	router http.Handler
	users  *memstore.Users
	outbox *mailer.Outbox
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := phonebook.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("r", 32))
	cfg.Recovery.Secret = []byte(strings.Repeat("s", 32))
	cfg.Recovery.PublicBaseURL = "http://phonebook.test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.EnableIPThrottle = false
	cfg.Metrics.Enabled = true

	dir := t.TempDir()
	files, err := avatar.NewFileStorage(dir, "/avatars")
	require.NoError(t, err)

	env := &apiEnv{users: memstore.NewUsers(), outbox: mailer.NewOutbox()}
	engine, err := phonebook.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(env.users).
		WithMailer(env.outbox).
		WithAvatarService(avatar.New(files)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	env.router = NewRouter(Deps{
		Engine:       engine,
		Contacts:     contacts.NewService(memstore.NewContacts()),
		Metrics:      prometheus.NewExporter(engine).Handler(),
		AvatarDir:    dir,
		AvatarPrefix: "/avatars",
	})
	return env
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return env.serve(t, req)
}

func (env *apiEnv) serve(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		var v any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		if m, ok := v.(map[string]any); ok {
			out = m
		} else {
			out["items"] = v
		}
	}
	return rec.Code, out
}

func (env *apiEnv) linkToken(t *testing.T, marker string) string {
	t.Helper()
	msg, ok := env.outbox.Last(email)
	require.True(t, ok, "no mail sent")
	_, rest, found := strings.Cut(msg.Text, marker)
	require.True(t, found, "mail without %q link", marker)
	token, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(token)
}

func (env *apiEnv) signupAndVerify(t *testing.T) {
	t.Helper()
	code, _ := env.do(t, http.MethodPost, "/api/users/signup", "", gin.H{"name": "Ada", "email": email, "password": password})
	require.Equal(t, http.StatusCreated, code)
	code, _ = env.do(t, http.MethodGet, "/api/users/verify/"+env.linkToken(t, "/api/users/verify/"), "", nil)
	require.Equal(t, http.StatusOK, code)
}

func (env *apiEnv) login(t *testing.T, pass string) string {
	t.Helper()
	code, body := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": pass})
	require.Equal(t, http.StatusOK, code, body)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/users/signup", "", gin.H{"name": "Ada", "email": email, "password": password})
	require.Equal(t, http.StatusCreated, code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "starter", user["subscription"])
	assert.Equal(t, false, user["verified"])

	code, body = env.do(t, http.MethodPost, "/api/users/signup", "", gin.H{"name": "Ada", "email": email, "password": password})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email in use", body["message"])

	code, body = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": password})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Please verify your email", body["message"])

	verifyPath := "/api/users/verify/" + env.linkToken(t, "/api/users/verify/")
	code, body = env.do(t, http.MethodGet, verifyPath, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Verification successful", body["message"])
	code, body = env.do(t, http.MethodGet, verifyPath, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body["message"])

	_, wrong := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": "nope123"})
	_, unknown := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ghost@x.com", "password": password})
	assert.Equal(t, "Email or password is wrong", wrong["message"])
	assert.Equal(t, wrong, unknown)

	first := env.login(t, password)
	second := env.login(t, password)

	code, body = env.do(t, http.MethodGet, "/api/users/current", first, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Invalid or expired token", body["message"])

	code, body = env.do(t, http.MethodGet, "/api/users/current", second, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, email, body["email"])

	code, body = env.do(t, http.MethodGet, "/api/users/current", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired token", body["message"])

	code, body = env.do(t, http.MethodGet, "/api/users/logout", second, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logout successful", body["message"])

	code, body = env.do(t, http.MethodGet, "/api/users/logout", second, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No active session found", body["message"])

	code, _ = env.do(t, http.MethodGet, "/api/users/current", second, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRefreshOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	env.signupAndVerify(t)

	_, body := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": email, "password": password})
	refresh := body["refreshToken"].(string)

	code, body := env.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, code)
	access := body["accessToken"].(string)

	code, _ = env.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/users/current", access, nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required refreshToken field", body["message"])
}

func TestForgotPasswordOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	env.signupAndVerify(t)
	access := env.login(t, password)

	_, known := env.do(t, http.MethodPost, "/api/users/forgot-password", "", gin.H{"email": email})
	code, unknown := env.do(t, http.MethodPost, "/api/users/forgot-password", "", gin.H{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, known, unknown)

	token := env.linkToken(t, "/reset-password?token=")

	code, body := env.do(t, http.MethodPatch, "/api/users/forgot-password-reset", "", gin.H{
		"token": token, "newPassword": "newpass1", "retypeNewPassword": "newpass2",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Passwords do not match", body["message"])

	code, _ = env.do(t, http.MethodPatch, "/api/users/forgot-password-reset", "", gin.H{
		"token": token, "newPassword": "newpass1", "retypeNewPassword": "newpass1",
	})
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPatch, "/api/users/forgot-password-reset", "", gin.H{
		"token": token, "newPassword": "newpass1", "retypeNewPassword": "newpass1",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Invalid or expired token", body["message"])

	code, _ = env.do(t, http.MethodGet, "/api/users/current", access, nil)
	assert.Equal(t, http.StatusForbidden, code)
	env.login(t, "newpass1")
}

func TestAccountRoutes(t *testing.T) {
	env := newAPIEnv(t)
	env.signupAndVerify(t)
	access := env.login(t, password)

	code, body := env.do(t, http.MethodPatch, "/api/users/subscription", access, gin.H{"subscription": "pro"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pro", body["subscription"])

	code, body = env.do(t, http.MethodPatch, "/api/users/subscription", access, gin.H{"subscription": "gold"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid subscription", body["message"])

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/users/avatar", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)
	code, body = env.serve(t, req)
	require.Equal(t, http.StatusOK, code, body)

	u, err := env.users.ByEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "/avatars/"+u.ID+".png", body["avatarURL"])

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/avatars/"+u.ID+".png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	code, body = env.do(t, http.MethodPatch, "/api/users/reset-password", access, gin.H{
		"currentPassword": password, "newPassword": "changed1", "retypeNewPassword": "changed1",
	})
	require.Equal(t, http.StatusOK, code, body)
	code, _ = env.do(t, http.MethodGet, "/api/users/current", access, nil)
	assert.Equal(t, http.StatusForbidden, code)
	env.login(t, "changed1")
}

func TestContactRoutes(t *testing.T) {
	env := newAPIEnv(t)
	env.signupAndVerify(t)
	access := env.login(t, password)

	code, body := env.do(t, http.MethodPost, "/api/contacts", access, gin.H{"name": "Bob", "email": "bob@x.com", "phone": "555"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)
	assert.Equal(t, false, body["favorite"])

	code, body = env.do(t, http.MethodPost, "/api/contacts", access, gin.H{"email": "bob@x.com", "phone": "555"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required name field", body["message"])

	code, body = env.do(t, http.MethodGet, "/api/contacts?page=1&limit=10", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, body = env.do(t, http.MethodPut, "/api/contacts/"+id, access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing fields", body["message"])

	code, body = env.do(t, http.MethodPut, "/api/contacts/"+id, access, gin.H{"phone": "777"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "777", body["phone"])

	code, body = env.do(t, http.MethodPatch, "/api/contacts/"+id+"/favorite", access, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing field favorite", body["message"])

	code, body = env.do(t, http.MethodPatch, "/api/contacts/"+id+"/favorite", access, gin.H{"favorite": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["favorite"])

	code, body = env.do(t, http.MethodGet, "/api/contacts?favorite=false", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 0)

	code, _ = env.do(t, http.MethodDelete, "/api/contacts/"+id, access, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodGet, "/api/contacts/"+id, access, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Contact not found", body["message"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)
	env.signupAndVerify(t)
	env.login(t, password)

	code, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "phonebook_login_success_total 1")
}
