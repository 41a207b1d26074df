package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"clipvault/internal/domain"
	"clipvault/internal/media"
	"clipvault/internal/repository"
	"clipvault/internal/service"
	"clipvault/internal/storage"
)

type memoryUserRepo struct {
	mu     sync.Mutex
	users  []*domain.User
	nextID int64
}

func (r *memoryUserRepo) Init(ctx context.Context) error { return nil }

func (r *memoryUserRepo) Create(ctx context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dup []string
	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) {
			dup = append(dup, "username")
		}
		if strings.EqualFold(existing.Email, user.Email) {
			dup = append(dup, "email")
		}
	}
	if len(dup) > 0 {
		return 0, &repository.DuplicateError{Fields: dup}
	}
	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.users = append(r.users, &stored)
	return user.ID, nil
}

func (r *memoryUserRepo) FindIdentityConflicts(ctx context.Context, username, email string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conflicts []string
	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, username) {
			conflicts = append(conflicts, "username")
		}
		if strings.EqualFold(existing.Email, email) {
			conflicts = append(conflicts, "email")
		}
	}
	return conflicts, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type stubStorage struct {
	uploadErr error
}

func (s *stubStorage) UploadFile(ctx context.Context, localPath, key string, opts storage.UploadOptions) (storage.Object, error) {
	if s.uploadErr != nil {
		return storage.Object{}, s.uploadErr
	}
	fullKey := "media/" + key
	return storage.Object{Key: fullKey, URL: "https://cdn.test/" + fullKey}, nil
}

func (s *stubStorage) DeleteObject(ctx context.Context, bucket, key string) error { return nil }

type testEnv struct {
	router     *gin.Engine
	stagingDir string
}

func newTestEnv(t *testing.T, store *stubStorage) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	stager := media.NewStager(media.Config{
		TempDir:       dir,
		UploadOptions: storage.UploadOptions{Bucket: "test-bucket", KeyPrefix: "media"},
	}, store)
	svc := service.NewRegistrationService(&memoryUserRepo{}, stager, 1<<20)

	router := gin.New()
	NewHandler(svc, 8<<20).RegisterRoutes(router)
	return testEnv{router: router, stagingDir: dir}
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
	Errors  []string       `json:"errors"`
}

func registrationForm(t *testing.T, fields map[string]string, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for name, data := range files {
		fw, err := w.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("create file field %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file field %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func doRegister(t *testing.T, env testEnv, fields map[string]string, files map[string][]byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body, contentType := registrationForm(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rr.Body.String())
	}
	return rr, resp
}

var neoFields = map[string]string{
	"username": "neo",
	"email":    "neo@matrix.io",
	"fullname": "Neo Anderson",
	"password": "s3cret",
}

func TestRegisterEndpoint_Success(t *testing.T) {
	env := newTestEnv(t, &stubStorage{})

	rr, resp := doRegister(t, env, neoFields, map[string][]byte{"avatar": []byte("img")})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	if !resp.Success {
		t.Error("success = false on created user")
	}
	if resp.Data["username"] != "neo" {
		t.Errorf("data.username = %v, want neo", resp.Data["username"])
	}
	if resp.Data["avatarUrl"] == "" || resp.Data["avatarUrl"] == nil {
		t.Error("data.avatarUrl missing")
	}
	if _, ok := resp.Data["password"]; ok {
		t.Error("data contains a password key")
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("response body mentions password")
	}
	if len(resp.Errors) != 0 {
		t.Errorf("errors = %v, want empty", resp.Errors)
	}
}

func TestRegisterEndpoint_DuplicateIdentity(t *testing.T) {
	env := newTestEnv(t, &stubStorage{})

	if rr, _ := doRegister(t, env, neoFields, map[string][]byte{"avatar": []byte("img")}); rr.Code != http.StatusCreated {
		t.Fatalf("first register: status %d", rr.Code)
	}

	rr, resp := doRegister(t, env, neoFields, map[string][]byte{"avatar": []byte("img")})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if resp.Success || resp.Data != nil {
		t.Error("failure envelope carries success/data")
	}
	mentioned := false
	for _, e := range resp.Errors {
		if strings.Contains(e, "username") || strings.Contains(e, "email") {
			mentioned = true
		}
	}
	if !mentioned {
		t.Errorf("errors %v mention neither username nor email", resp.Errors)
	}
}

func TestRegisterEndpoint_MissingEmailAndAvatar(t *testing.T) {
	env := newTestEnv(t, &stubStorage{})

	fields := map[string]string{
		"username": "neo",
		"fullname": "Neo Anderson",
		"password": "s3cret",
	}
	rr, resp := doRegister(t, env, fields, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var sawEmail, sawAvatar bool
	for _, e := range resp.Errors {
		if strings.Contains(e, "email") {
			sawEmail = true
		}
		if strings.Contains(e, "avatar") {
			sawAvatar = true
		}
	}
	if !sawEmail || !sawAvatar {
		t.Errorf("errors = %v, want entries for email and avatar", resp.Errors)
	}
}

func TestRegisterEndpoint_RemoteOutage(t *testing.T) {
	env := newTestEnv(t, &stubStorage{uploadErr: errors.New("connection refused")})

	rr, resp := doRegister(t, env, neoFields, map[string][]byte{"avatar": []byte("img")})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if resp.Success || resp.Data != nil {
		t.Error("failure envelope carries success/data")
	}

	entries, err := os.ReadDir(env.stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staged file survived the failed request: %d entries", len(entries))
	}
}

func TestGetUserEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubStorage{})

	if rr, _ := doRegister(t, env, neoFields, map[string][]byte{"avatar": []byte("img")}); rr.Code != http.StatusCreated {
		t.Fatalf("register: status %d", rr.Code)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing user", "/users/1", http.StatusOK},
		{"unknown user", "/users/999", http.StatusNotFound},
		{"invalid id", "/users/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp envelope
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if resp.Data["username"] != "neo" {
				t.Errorf("data.username = %v, want neo", resp.Data["username"])
			}
			if strings.Contains(rr.Body.String(), "password") {
				t.Error("public view leaked credential material")
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubStorage{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
