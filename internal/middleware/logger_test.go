package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name           string
		incomingID     string
		handler        http.HandlerFunc
		expectedStatus int
	}{
		{
			name: "generates request id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:       "reuses incoming request id",
			incomingID: "client-supplied",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
				tt.handler(w, r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
			if tt.incomingID != "" {
				req.Header.Set(RequestIDHeader, tt.incomingID)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			id := rr.Header().Get(RequestIDHeader)
			require.NotEmpty(t, id)
			assert.Equal(t, id, seen)
			if tt.incomingID != "" {
				assert.Equal(t, tt.incomingID, id)
			} else {
				_, err := ulid.ParseStrict(id)
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogger_FlushPassthrough(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok, "wrapped writer must support flushing")
		_, _ = w.Write([]byte("data: x\n\n"))
		f.Flush()
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", nil))
	assert.True(t, rr.Flushed)
}

func TestNewRequestID_Monotonic(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	assert.Less(t, a, b)
}
