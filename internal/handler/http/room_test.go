package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-ideation/internal/domain"
	httphandler "collaborative-ideation/internal/handler/http"
	"collaborative-ideation/internal/repository"
	"collaborative-ideation/internal/repository/mocks"
	"collaborative-ideation/internal/service"
)

// withUser 在测试路由中代替认证中间件注入 user_id。
func withUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

type roomHandlerFixture struct {
	router          *gin.Engine
	roomRepo        *mocks.RoomRepository
	participantRepo *mocks.ParticipantRepository
	stateRepo       *mocks.StateRepository
}

func newRoomHandlerFixture(t *testing.T, userID uint) *roomHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &roomHandlerFixture{
		roomRepo:        new(mocks.RoomRepository),
		participantRepo: new(mocks.ParticipantRepository),
		stateRepo:       new(mocks.StateRepository),
	}
	roomService := service.NewRoomService(f.roomRepo, f.participantRepo, f.stateRepo)
	membershipService := service.NewMembershipService(f.participantRepo, f.stateRepo)
	handler := httphandler.NewRoomHandler(roomService, membershipService)

	f.router = gin.New()
	group := f.router.Group("/api/rooms")
	group.Use(withUser(userID))
	group.POST("", handler.CreateRoom)
	group.GET("", handler.ListRooms)
	group.POST("/:roomId/join", handler.JoinRoom)
	return f
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoomHandler_CreateRoom_Created(t *testing.T) {
	f := newRoomHandlerFixture(t, 9)

	f.roomRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Room")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Room).ID = 11
		}).
		Return(nil).Once()
	f.participantRepo.On("Admit", mock.Anything, uint(11), uint(9)).Return(nil).Once()
	f.stateRepo.On("PublishLobbyEvent", mock.Anything, mock.Anything).Return(nil).Once()

	w := doJSON(t, f.router, http.MethodPost, "/api/rooms", gin.H{
		"name":  "Sprint Ideas",
		"theme": "Q3 planning",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp httphandler.CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint(11), resp.RoomID)
	assert.True(t, resp.CreatorJoined)
}

func TestRoomHandler_CreateRoom_MissingTheme(t *testing.T) {
	f := newRoomHandlerFixture(t, 9)

	w := doJSON(t, f.router, http.MethodPost, "/api/rooms", gin.H{"name": "No theme"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.roomRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomHandler_JoinRoom_StatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		admitErr   error
		wantStatus int
		wantField  string
	}{
		{"admitted", nil, http.StatusOK, "admitted"},
		{"already member", repository.ErrDuplicateEntry, http.StatusOK, "already_member"},
		{"room full", repository.ErrRoomFull, http.StatusConflict, ""},
		{"room not found", repository.ErrRoomNotFound, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRoomHandlerFixture(t, 2)
			f.participantRepo.On("Admit", mock.Anything, uint(1), uint(2)).Return(tc.admitErr).Once()
			if tc.admitErr == nil {
				f.stateRepo.On("PublishLobbyEvent", mock.Anything, mock.Anything).Return(nil).Once()
			}

			w := doJSON(t, f.router, http.MethodPost, "/api/rooms/1/join", nil)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantField != "" {
				var resp httphandler.JoinRoomResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tc.wantField, resp.Status)
			}
		})
	}
}

func TestRoomHandler_JoinRoom_InvalidRoomID(t *testing.T) {
	f := newRoomHandlerFixture(t, 2)

	w := doJSON(t, f.router, http.MethodPost, "/api/rooms/not-a-number/join", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.participantRepo.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomHandler_ListRooms(t *testing.T) {
	f := newRoomHandlerFixture(t, 2)

	f.roomRepo.On("ListWithOccupancy", mock.Anything).
		Return([]repository.RoomWithOccupancy{}, nil).Once()

	w := doJSON(t, f.router, http.MethodGet, "/api/rooms", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	f.roomRepo.AssertExpectations(t)
}
