package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PPCollab/global"
	midsec "PPCollab/middleware/security"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"https://evil.example", nil, true},
		{"", []string{"https://app.example"}, true},
		{"https://app.example", []string{"https://app.example/"}, true},
		{"HTTPS://APP.example", []string{"https://app.example"}, true},
		{"https://evil.example", []string{"https://app.example"}, false},
		{"https://evil.example", []string{"*"}, true},
	}
	for _, tc := range cases {
		if got := OriginAllowed(tc.origin, tc.allowed); got != tc.want {
			t.Errorf("OriginAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.want)
		}
	}
}

func TestOriginMiddleware(t *testing.T) {
	allowed := []string{"https://app.example"}
	r := gin.New()
	r.Use(Origin("/ws", func() []string { return allowed }))
	r.GET("/ws", func(c *gin.Context) { c.String(http.StatusOK, "ws") })
	r.GET("/up", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	if w := do(t, r, http.MethodGet, "/ws", map[string]string{"Origin": "https://app.example"}); w.Code != http.StatusOK {
		t.Fatalf("allowed origin: %d", w.Code)
	}
	w := do(t, r, http.MethodGet, "/ws", map[string]string{"Origin": "https://evil.example"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("denied origin: %d", w.Code)
	}
	var body global.Msg
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != 40301 {
		t.Fatalf("body = %s (%v)", w.Body.String(), err)
	}
	if w := do(t, r, http.MethodGet, "/up", map[string]string{"Origin": "https://evil.example"}); w.Code != http.StatusOK {
		t.Fatalf("other path filtered: %d", w.Code)
	}

	// list is read per request
	allowed = nil
	if w := do(t, r, http.MethodGet, "/ws", map[string]string{"Origin": "https://evil.example"}); w.Code != http.StatusOK {
		t.Fatalf("empty list should allow: %d", w.Code)
	}
}

func TestManagerChain(t *testing.T) {
	m := NewManager()
	var order []string
	m.Add(func(c *gin.Context) { order = append(order, "a") })
	m.Add(func(c *gin.Context) {
		order = append(order, "b")
		if c.Query("stop") != "" {
			c.AbortWithStatus(http.StatusTeapot)
		}
	})

	r := gin.New()
	r.Use(m.Use())
	r.GET("/x", func(c *gin.Context) {
		order = append(order, "h")
		c.Status(http.StatusOK)
	})

	do(t, r, http.MethodGet, "/x", nil)
	if len(order) != 3 || order[2] != "h" {
		t.Fatalf("order = %v", order)
	}

	order = nil
	if w := do(t, r, http.MethodGet, "/x?stop=1", nil); w.Code != http.StatusTeapot || len(order) != 2 {
		t.Fatalf("abort: code=%d order=%v", w.Code, order)
	}

	m.Clear()
	order = nil
	do(t, r, http.MethodGet, "/x", nil)
	if m.Len() != 0 || len(order) != 1 {
		t.Fatalf("after clear: len=%d order=%v", m.Len(), order)
	}
}

func TestRouteAuth(t *testing.T) {
	r := gin.New()
	GET(r, "/open", func(c *gin.Context) { c.Status(http.StatusOK) }, RouteOpt{})
	GET(r, "/closed", func(c *gin.Context) {
		c.String(http.StatusOK, midsec.TokenFrom(c))
	}, RouteOpt{IsAuth: true})

	if w := do(t, r, http.MethodGet, "/open", nil); w.Code != http.StatusOK {
		t.Fatalf("open: %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/closed", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("closed without token: %d", w.Code)
	}
	w := do(t, r, http.MethodGet, "/closed", map[string]string{"Authorization": "Bearer abc"})
	if w.Code != http.StatusOK || w.Body.String() != "abc" {
		t.Fatalf("closed with token: %d %q", w.Code, w.Body.String())
	}
}
