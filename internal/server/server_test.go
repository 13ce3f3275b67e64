package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-tg-bot/internal/batch"
	"gallery-tg-bot/internal/config"
	"gallery-tg-bot/internal/docstore"
	"gallery-tg-bot/internal/gallery"
	"gallery-tg-bot/internal/registry"
	"gallery-tg-bot/internal/telegram"
)

const testToken = "123:TEST-TOKEN"

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []string
	approvals []string // usernames of approval requests
}

func (n *recordingNotifier) Send(chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
}

func (n *recordingNotifier) SendApprovalRequest(chatID int64, text, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvals = append(n.approvals, username)
}

func (n *recordingNotifier) Edit(chatID int64, messageID int, text string) {}

func (n *recordingNotifier) approvalUsernames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.approvals...)
}

type noFetcher struct{}

func (noFetcher) Fetch(ctx context.Context, fileID string) (string, []byte, error) {
	return "img.jpg", []byte("bytes"), nil
}

type fixture struct {
	server   *Server
	registry *registry.Registry
	batch    *batch.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	docs, err := docstore.Open(filepath.Join(dir, "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	chapters, err := gallery.NewStore(filepath.Join(dir, "uploads"), logger)
	require.NoError(t, err)

	reg := registry.New(docs, logger)
	batchStore := batch.New(docs, chapters, logger)
	notifier := &recordingNotifier{}

	cfg := config.Config{
		Telegram: config.TelegramConfig{
			BotToken:       testToken,
			AdminChatID:    99,
			RequestTimeout: 5 * time.Second,
		},
		Server: config.ServerConfig{Port: 8080, DispatchTimeout: 5 * time.Second},
	}

	dispatcher := telegram.NewDispatcher(reg, batchStore, chapters, notifier, noFetcher{}, cfg.Telegram.AdminChatID, logger)

	return &fixture{
		server:   New(cfg, reg, chapters, dispatcher, notifier, logger),
		registry: reg,
		batch:    batchStore,
		notifier: notifier,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookAlwaysAcks(t *testing.T) {
	f := newFixture(t)

	bodies := []string{
		`{"update_id":1,"message":{"chat":{"id":99},"text":"/current_batch"}}`,
		`{"unexpected":"shape"}`,
		`not even json`,
		``,
	}
	for _, body := range bodies {
		rec := f.do(http.MethodPost, "/webhook/"+testToken, body)
		assert.Equal(t, http.StatusOK, rec.Code, "body %q", body)
		assert.Equal(t, "ok", rec.Body.String())
	}
}

func TestWebhookWrongTokenIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/webhook/wrong-token", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/webhook/"+testToken,
		`{"update_id":1,"message":{"chat":{"id":99},"text":"/start_batch ch1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Dispatch runs async after the ack.
	assert.Eventually(t, func() bool {
		state, err := f.batch.Current(context.Background())
		return err == nil && state.Active && state.Chapter == "ch1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignupRegistersAndNotifies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/signup", `{"username":"alice","password":"pw1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	result, err := f.registry.Authenticate(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, registry.AuthPendingApproval, result)

	assert.Equal(t, []string{"alice"}, f.notifier.approvalUsernames())
}

func TestSignupDuplicate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/signup", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/signup", `{"username":"alice","password":"other"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{}`, `{"username":"alice"}`, `{"password":"pw"}`, `broken`} {
		rec := f.do(http.MethodPost, "/api/signup", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestLoginStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Register(ctx, "alice", "pw1"))

	rec := f.do(http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, f.registry.Approve(ctx, "alice"))
	rec = f.do(http.MethodPost, "/api/login", `{"username":"alice","password":"pw1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "granted", resp["status"])

	rec = f.do(http.MethodPost, "/api/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChaptersAndImagesAPI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(http.MethodGet, "/api/chapters", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chapters":[]}`, rec.Body.String())

	require.NoError(t, f.batch.StartBatch(ctx, "ch1"))

	rec = f.do(http.MethodGet, "/api/chapters", "")
	assert.JSONEq(t, `{"chapters":["ch1"]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/images?chapter=ch1", "")
	assert.JSONEq(t, `{"images":[]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/images", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/webhook/"+testToken, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(http.MethodGet, "/api/signup", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(http.MethodPost, "/api/chapters", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
