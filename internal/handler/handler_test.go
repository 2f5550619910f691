package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/internal/testutil"
	"blgu-assess-go/pkg/tasks"
	"blgu-assess-go/pkg/token"
)

type nopExporter struct{}

func (nopExporter) ExportSnapshot(_ context.Context, objectName string, _ []byte) (string, error) {
	return "https://minio.local/" + objectName, nil
}

type nopIndexer struct{}

func (nopIndexer) ReplaceDraft(context.Context, uint, []model.IndicatorDocument) error { return nil }

type recordingPublisher struct {
	sent []tasks.VerdictTask
}

func (p *recordingPublisher) PublishVerdict(_ context.Context, task tasks.VerdictTask) error {
	p.sent = append(p.sent, task)
	return nil
}

type stubSearcher struct {
	hits []model.IndicatorSearchHit
}

func (s stubSearcher) Search(context.Context, string, int, int) ([]model.IndicatorSearchHit, error) {
	return s.hits, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiFixture struct {
	t         *testing.T
	router    *gin.Engine
	users     repository.UserRepository
	admin     service.AdminService
	publisher *recordingPublisher
}

func newAPIFixture(t *testing.T, debounce time.Duration) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repository.NewUserRepository(db)
	drafts := repository.NewDraftRepository(db)
	sessions := repository.NewDraftSessionRepository(rdb)
	jwtManager := token.NewJWTManager("handler-test", 1, 1)
	userService := service.NewUserService(users, repository.NewTokenBlacklist(rdb), jwtManager)
	adminService := service.NewAdminService(repository.NewGovernanceAreaRepository(db), users)
	publisher := &recordingPublisher{}

	r := gin.New()
	RegisterRoutes(r, Deps{
		JWTManager:   jwtManager,
		Users:        userService,
		Admin:        adminService,
		Builder:      service.NewBuilderService(drafts, sessions, nopExporter{}, nopIndexer{}, service.BuilderOptions{LockTTL: time.Minute}),
		Assessments:  service.NewAssessmentService(drafts, repository.NewVerdictRepository(db), sessions, publisher, time.Minute),
		Search:       service.NewSearchService(stubSearcher{hits: []model.IndicatorSearchHit{{Code: "1.1", Name: "Budget posting"}}}),
		LiveDebounce: debounce,
	})
	return &apiFixture{t: t, router: r, users: users, admin: adminService, publisher: publisher}
}

// do sends a JSON request and decodes the response envelope.
func (f *apiFixture) do(method, path, accessToken string, body interface{}) (int, envelope) {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// signup registers and logs in a user with role, returning its access and
// refresh tokens.
func (f *apiFixture) signup(username, role string) (string, string) {
	f.t.Helper()
	status, _ := f.do(http.MethodPost, "/api/v1/users/register", "", RegisterRequest{Username: username, Password: "pw-" + username})
	require.Equal(f.t, http.StatusOK, status)
	if role != model.RoleBLGU {
		u, err := f.users.FindByUsername(username)
		require.NoError(f.t, err)
		require.NoError(f.t, f.admin.AssignRole(u.ID, role, nil))
	}
	status, env := f.do(http.MethodPost, "/api/v1/users/login", "", LoginRequest{Username: username, Password: "pw-" + username})
	require.Equal(f.t, http.StatusOK, status)
	var tokens struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(f.t, json.Unmarshal(env.Data, &tokens))
	return tokens.Token, tokens.RefreshToken
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
