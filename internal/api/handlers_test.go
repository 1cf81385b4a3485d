package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mimic-chat/backend/internal/api"
	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/internal/service"
	"mimic-chat/backend/pkg/errors"
	"mimic-chat/backend/pkg/logger"
)

// newTestRouter wires the validation surface only; storage-backed paths are
// covered by the service and hub tests.
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := api.NewHandlers(nil, nil, nil, nil, nil, logger.New(logger.DefaultConfig()))

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.POST("/api/login", h.Login)
	r.POST("/api/chats", h.CreateChat)
	r.POST("/api/suggestions", h.Suggestions)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

// TestListUsersWithoutPresenceStore covers the presence-disabled wiring: the
// container hands the handlers a nil store, and the user listing must still
// answer with everyone marked offline.
func TestListUsersWithoutPresenceStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	users := service.NewUserService(db)
	require.NoError(t, users.UpsertUser(&models.User{ID: "user-a", Name: "Alice"}))

	h := api.NewHandlers(users, nil, nil, nil, nil, logger.New(logger.DefaultConfig()))
	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/api/users", h.ListUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var got []models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "user-a", got[0].ID)
	assert.False(t, got[0].IsOnline)
}

func TestLoginRejectsMissingFields(t *testing.T) {
	r := newTestRouter()

	w := postJSON(r, "/api/login", `{"name":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_LOGIN", errorCode(t, w))

	w = postJSON(r, "/api/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateChatRejectsWrongParticipantCount(t *testing.T) {
	r := newTestRouter()

	for _, body := range []string{
		`{"participants":[]}`,
		`{"participants":["user-a"]}`,
		`{"participants":["user-a","user-b","user-c"]}`,
		`{}`,
	} {
		w := postJSON(r, "/api/chats", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s must be rejected", body)
		assert.Equal(t, "INVALID_CHAT", errorCode(t, w))
	}
}

func TestSuggestionsRejectsMissingIdentifiers(t *testing.T) {
	r := newTestRouter()

	w := postJSON(r, "/api/suggestions", `{"chatId":"chat-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SUGGESTION_REQUEST", errorCode(t, w))

	w = postJSON(r, "/api/suggestions", `{"userId":"user-a"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
