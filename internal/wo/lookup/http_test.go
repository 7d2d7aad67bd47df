package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeEndpoint(t *testing.T, handler func(w http.ResponseWriter, req ValidateRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPGateway(t *testing.T) {
	tests := map[string]struct {
		status     int
		body       ValidateResponse
		raw        string
		wantExists bool
		wantErr    error
	}{
		"exists": {
			status:     http.StatusOK,
			body:       ValidateResponse{Exists: true, WLID: "M-1"},
			wantExists: true,
		},
		"not found": {
			status: http.StatusOK,
			body:   ValidateResponse{Exists: false, WLID: "M-1"},
		},
		"unavailable": {
			status:  http.StatusServiceUnavailable,
			body:    ValidateResponse{Error: "Database connection failed. Please contact the administrator."},
			wantErr: ErrUnavailable,
		},
		"query failed": {
			status:  http.StatusInternalServerError,
			body:    ValidateResponse{Error: "Database validation failed. Please contact the administrator."},
			wantErr: ErrQuery,
		},
		"html page with 200": {
			status:  http.StatusOK,
			raw:     "<html>gateway login</html>",
			wantErr: ErrQuery,
		},
		"200 without exists field": {
			status:  http.StatusOK,
			raw:     `{"status":"ok"}`,
			wantErr: ErrQuery,
		},
		"bad request": {
			status:  http.StatusBadRequest,
			body:    ValidateResponse{Error: "WO_WLID is required"},
			wantErr: ErrQuery,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newFakeEndpoint(t, func(w http.ResponseWriter, req ValidateRequest) {
				assert.Equal(t, "M-1", req.WLID)
				w.WriteHeader(tc.status)
				if tc.raw != "" {
					_, _ = w.Write([]byte(tc.raw))
					return
				}
				_ = json.NewEncoder(w).Encode(tc.body)
			})

			gw := NewHTTPGateway(srv.URL, time.Second)
			exists, err := gw.MaterialExists(context.Background(), "M-1")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, exists)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExists, exists)
		})
	}
}

func TestHTTPGatewayTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewHTTPGateway(url, time.Second)
	_, err := gw.MaterialExists(context.Background(), "M-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
