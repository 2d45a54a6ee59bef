package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XB811/index12306/internal/models"
)

func newRequest(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// captureHandler stores the request context and the user seen by the handler
type captureHandler struct {
	ctx  context.Context
	user *models.UserInfo
}

func (c *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.ctx = r.Context()
	c.user = CurrentUser(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestTransmitMiddleware_InstallsUser(t *testing.T) {
	capture := &captureHandler{}
	handler := TransmitMiddleware(setupTestLogger())(capture)

	req := newRequest(map[string]string{
		"userId":   "1813274434794377216",
		"username": "%E5%BC%A0%E4%B8%89",
		"realName": "%E5%BC%A0%E4%B8%89%E4%B8%B0",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, capture.user)
	assert.Equal(t, models.UserInfo{
		UserID:   "1813274434794377216",
		Username: "张三",
		RealName: "张三丰",
	}, *capture.user)
}

func TestTransmitMiddleware_Anonymous(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{
			name:    "no headers",
			headers: map[string]string{},
		},
		{
			name:    "blank user id",
			headers: map[string]string{"userId": "   ", "username": "alice"},
		},
		{
			name:    "only username",
			headers: map[string]string{"username": "alice", "realName": "Alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := TransmitMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				assert.Nil(t, CurrentUser(r.Context()))
				w.WriteHeader(http.StatusNoContent)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, newRequest(tt.headers))

			assert.True(t, called, "anonymous request must reach the handler")
			assert.Equal(t, http.StatusNoContent, w.Code)
		})
	}
}

func TestTransmitMiddleware_HeaderDecoding(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     string
	}{
		{name: "percent encoded", username: "%E5%BC%A0%E4%B8%89", want: "张三"},
		{name: "plus as space", username: "Zhang+San", want: "Zhang San"},
		{name: "plain ascii", username: "alice", want: "alice"},
		{name: "broken escape kept raw", username: "%ZZalice", want: "%ZZalice"},
		{name: "invalid utf-8 replaced", username: "%FFbob", want: "\uFFFDbob"},
		{name: "blank kept as is", username: " ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &captureHandler{}
			handler := TransmitMiddleware(setupTestLogger())(capture)

			handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{
				"userId":   "1",
				"username": tt.username,
			}))

			require.NotNil(t, capture.user)
			assert.Equal(t, tt.want, capture.user.Username)
			assert.Empty(t, capture.user.RealName)
		})
	}
}

func TestTransmitMiddleware_ClearsAfterRequest(t *testing.T) {
	capture := &captureHandler{}
	handler := TransmitMiddleware(setupTestLogger())(capture)

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{"userId": "1"}))

	require.NotNil(t, capture.user, "user must be visible during the request")
	assert.Nil(t, CurrentUser(capture.ctx), "user must be cleared once the request completes")

	// следующий запрос на том же обработчике без заголовков анонимный
	handler.ServeHTTP(httptest.NewRecorder(), newRequest(nil))
	assert.Nil(t, capture.user)
}

func TestTransmitMiddleware_ClearsAfterPanic(t *testing.T) {
	var captured context.Context
	handler := TransmitMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Context()
		require.NotNil(t, CurrentUser(r.Context()))
		panic("downstream failure")
	}))

	assert.PanicsWithValue(t, "downstream failure", func() {
		handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{"userId": "1"}))
	})

	require.NotNil(t, captured)
	assert.Nil(t, CurrentUser(captured))
}

func TestTransmitMiddleware_ConcurrentIsolation(t *testing.T) {
	const workers = 8

	// барьер: все запросы держат контекст одновременно
	var installed sync.WaitGroup
	installed.Add(workers)

	type result struct {
		want string
		got  string
		ctx  context.Context
	}
	results := make(chan result, workers)

	handler := TransmitMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		installed.Done()
		installed.Wait()

		results <- result{
			want: r.Header.Get("userId"),
			got:  UserID(r.Context()),
			ctx:  r.Context(),
		}
	}))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{"userId": id}))
		}(string(rune('a' + i)))
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for res := range results {
		assert.Equal(t, res.want, res.got)
		assert.Nil(t, CurrentUser(res.ctx), "user %s must be cleared", res.want)
		seen[res.got] = true
	}
	assert.Len(t, seen, workers)
}

func TestTransmitMiddleware_CustomHeaderNames(t *testing.T) {
	capture := &captureHandler{}
	handler := TransmitMiddleware(setupTestLogger(), WithHeaderNames(HeaderNames{
		UserID: "X-User-Id",
	}))(capture)

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{
		"X-User-Id": "99",
		"username":  "alice",
		"userId":    "ignored",
	}))

	require.NotNil(t, capture.user)
	assert.Equal(t, "99", capture.user.UserID)
	assert.Equal(t, "alice", capture.user.Username)
}

func TestTransmitMiddleware_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	handler := TransmitMiddleware(setupTestLogger(), WithTransmitRecorder(rec))(&captureHandler{})

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{"userId": "1"}))
	handler.ServeHTTP(httptest.NewRecorder(), newRequest(nil))

	assert.Equal(t, []bool{true, false}, rec.transmits)
}

func TestTransmitMiddleware_HeadersThroughCodec(t *testing.T) {
	codec := newTestCodec()

	var token string
	handler := TransmitMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := CurrentUser(r.Context())
		require.NotNil(t, current)

		var err error
		token, err = codec.Encode(*current)
		require.NoError(t, err)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{
		"userId":   "1813274434794377216",
		"username": "%E6%9D%8E%E5%9B%9B",
		"realName": "",
	}))

	decoded := codec.Decode(token)
	require.NotNil(t, decoded)
	assert.Equal(t, models.UserInfo{
		UserID:   "1813274434794377216",
		Username: "李四",
		RealName: "",
	}, *decoded)
}
