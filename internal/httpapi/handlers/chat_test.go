package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quillchat/quillchat/internal/ai"
	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/config"
	"github.com/quillchat/quillchat/internal/httpapi"
	"github.com/quillchat/quillchat/internal/httpapi/handlers"
	"github.com/quillchat/quillchat/internal/identity"
	"github.com/quillchat/quillchat/internal/metrics"
	"github.com/quillchat/quillchat/internal/models"
)

const testSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestEnv(t *testing.T, upstreamURL, searchURL string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &chat.Session{}, &chat.Message{}))

	cfg := config.Config{
		JWTSecret:        testSecret,
		OpenAIBaseURL:    upstreamURL,
		OpenAIAPIKey:     "sk-test",
		AnthropicBaseURL: upstreamURL,
		AnthropicAPIKey:  "sk-test",
		DeepSeekBaseURL:  upstreamURL,
		DeepSeekAPIKey:   "sk-test",
		TavilyBaseURL:    searchURL,
		TavilyAPIKey:     "tv-test",
		RequestTimeout:   5 * time.Second,
		UploadDir:        t.TempDir(),
	}

	logger := zap.NewNop()
	svc := chat.NewService(chat.NewRepo(db), logger)
	promReg := prometheus.NewRegistry()
	h := handlers.NewHandler(cfg, logger, svc, ai.NewRegistry(cfg), nil, nil, metrics.New(promReg))
	router := httpapi.NewRouter(h, identity.NewJWTVerifier(testSecret), logger, promReg)

	return &testEnv{router: router, db: db}
}

func bearerToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "ext-42",
		"email":   "ada@example.com",
		"name":    "Ada",
		"picture": "https://img.example/a.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func postChat(t *testing.T, env *testEnv, body map[string]any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", bearerToken(t))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

const fakeStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n" +
	"data: [DONE]\n\n"

func fakeUpstream(t *testing.T, capture *sync.Map) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if capture != nil {
			capture.Store("request", body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(fakeStream))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatProxy_StreamsAndPersists(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	env := newTestEnv(t, upstream.URL, "http://search.invalid")

	w := postChat(t, env, map[string]any{
		"model":    "gpt-4o-mini",
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("x-session-id"))
	assert.Equal(t, fakeStream, w.Body.String(), "client must receive the upstream bytes verbatim")
	assert.True(t, strings.Contains(w.Body.String(), "data: [DONE]"))

	// Finalization is detached; wait for the answer to land.
	require.Eventually(t, func() bool {
		var msg chat.Message
		if err := env.db.Where("role = ?", "user").First(&msg).Error; err != nil {
			return false
		}
		return msg.Answer != nil && *msg.Answer == "Hello there"
	}, 3*time.Second, 20*time.Millisecond)

	var sess chat.Session
	require.NoError(t, env.db.First(&sess).Error)
	assert.Equal(t, "Hello", sess.Title)
	require.Eventually(t, func() bool {
		var s chat.Session
		if err := env.db.First(&s).Error; err != nil {
			return false
		}
		return len(s.Summary) == 2 && s.Summary[1].Content == "Hello there"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestChatProxy_InvalidModel(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	env := newTestEnv(t, upstream.URL, "http://search.invalid")

	w := postChat(t, env, map[string]any{
		"model":    "unknown-model-xyz",
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	}, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid model specified"}`, w.Body.String())

	var sessions, messages int64
	require.NoError(t, env.db.Model(&chat.Session{}).Count(&sessions).Error)
	require.NoError(t, env.db.Model(&chat.Message{}).Count(&messages).Error)
	assert.Zero(t, sessions, "no session may be created for an invalid model")
	assert.Zero(t, messages, "no message may be created for an invalid model")
}

func TestChatProxy_Unauthorized(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	env := newTestEnv(t, upstream.URL, "http://search.invalid")

	w := postChat(t, env, map[string]any{
		"model":    "gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	}, false)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var users int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users, "401 must have no side effects")
}

func TestChatProxy_UpstreamErrorSurfaced(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL, "http://search.invalid")

	w := postChat(t, env, map[string]any{
		"model":    "gpt-4",
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	}, true)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"API error: invalid api key"}`, w.Body.String())

	// The pre-call user message exists; its answer must stay null.
	var msg chat.Message
	require.NoError(t, env.db.Where("role = ?", "user").First(&msg).Error)
	assert.Nil(t, msg.Answer)
}

func TestChatProxy_SearchEnrichment(t *testing.T) {
	var capture sync.Map
	upstream := fakeUpstream(t, &capture)

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"title":"First","content":"alpha","url":"https://a.example"},
			{"title":"Second","content":"beta","url":"https://b.example"}
		]}`))
	}))
	t.Cleanup(searchSrv.Close)

	env := newTestEnv(t, upstream.URL, searchSrv.URL)

	w := postChat(t, env, map[string]any{
		"model":         "gpt-4o",
		"searchEnabled": true,
		"messages":      []map[string]string{{"role": "user", "content": "latest Go release"}},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	v, ok := capture.Load("request")
	require.True(t, ok, "upstream must have been called")
	body := v.(map[string]any)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	sys := msgs[0].(map[string]any)
	assert.Equal(t, "system", sys["role"])
	content := sys["content"].(string)
	assert.Equal(t, 2, strings.Count(content, "[Source "))
	assert.Less(t, strings.Index(content, "[Source 1]: First"), strings.Index(content, "[Source 2]: Second"))
}

func TestChatProxy_SessionContinuity(t *testing.T) {
	upstream := fakeUpstream(t, nil)
	env := newTestEnv(t, upstream.URL, "http://search.invalid")

	w1 := postChat(t, env, map[string]any{
		"model":    "gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "first turn"}},
	}, true)
	require.Equal(t, http.StatusOK, w1.Code)
	sid := w1.Header().Get("x-session-id")
	require.NotEmpty(t, sid)

	w2 := postChat(t, env, map[string]any{
		"model":     "gpt-4o",
		"sessionId": sid,
		"messages":  []map[string]string{{"role": "user", "content": "second turn"}},
	}, true)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, sid, w2.Header().Get("x-session-id"), "existing session id must be reused")

	var sessions int64
	require.NoError(t, env.db.Model(&chat.Session{}).Count(&sessions).Error)
	assert.EqualValues(t, 1, sessions)
}
