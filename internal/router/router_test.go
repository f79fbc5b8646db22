package router

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(DefaultSettings())
	require.NoError(t, err)
	return r
}

// serve runs raw through the router and parses the response it produced
func serve(t *testing.T, r *Router, raw string) (*http.Response, string) {
	t.Helper()

	req, err := request.RequestFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	w := response.NewWriter(buf)
	require.NoError(t, r.Serve(w, req))
	require.True(t, w.Done(), "no response written")

	resp, err := http.ReadResponse(bufio.NewReader(buf), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestWelcomePage(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.Get("/", func(req *request.Request, w *response.Writer) {
		w.HTML("<h1>Welcome...</h1>")
	}))

	resp, data := serve(t, r, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<h1>Welcome...</h1>", data)
}

func TestJSONBody(t *testing.T) {
	r := newRouter(t)

	var got any
	require.NoError(t, r.Post("/receive_json", func(req *request.Request, w *response.Writer) {
		got = req.ParsedBody
		w.Text("Got it!")
	}, body.JSON))

	payload := `{"a":{"b":1}}`
	raw := "POST /receive_json HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" + payload

	resp, data := serve(t, r, raw)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Got it!", data)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": float64(1)}}, got)
}

func TestUnknownPath(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.Get("/", func(req *request.Request, w *response.Writer) {
		w.HTML("home")
	}))

	resp, data := serve(t, r, "GET /nope HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Empty(t, data)
}

func TestRedirectRoute(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.Get("/redirect", func(req *request.Request, w *response.Writer) {
		w.Redirect("/")
	}))

	resp, _ := serve(t, r, "GET /redirect HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 307, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestMethodNotAllowed(t *testing.T) {
	r := newRouter(t)
	noop := func(req *request.Request, w *response.Writer) { w.Text("ok") }
	require.NoError(t, r.Post("/receive_json", noop))
	require.NoError(t, r.Handle("put", "/receive_json", noop))

	resp, data := serve(t, r, "GET /receive_json HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 405, resp.StatusCode)
	assert.Equal(t, "POST, PUT", resp.Header.Get("Allow"))
	assert.Empty(t, data)
}

func TestQueryIsAttached(t *testing.T) {
	r := newRouter(t)

	var path string
	var query url.Values
	require.NoError(t, r.Get("/search", func(req *request.Request, w *response.Writer) {
		path = req.Path
		query = req.Query
		w.Text(req.Param("q"))
	}))

	resp, data := serve(t, r, "GET /search?q=go&page=2 HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "go", data)
	assert.Equal(t, "/search", path)
	assert.Equal(t, "2", query.Get("page"))
}

func TestMiddlewareOrder(t *testing.T) {
	r := newRouter(t)

	var calls []string
	var parsedAtLate any

	require.NoError(t, r.UseEarly(func(req *request.Request, w *response.Writer) {
		calls = append(calls, "early-1")
		assert.Nil(t, req.URL, "early middleware runs before URL parsing")
	}))
	require.NoError(t, r.UseEarly(func(req *request.Request, w *response.Writer) {
		calls = append(calls, "early-2")
	}))
	require.NoError(t, r.Use(func(req *request.Request, w *response.Writer) {
		calls = append(calls, "late")
		parsedAtLate = req.ParsedBody
	}))
	require.NoError(t, r.Post("/echo", func(req *request.Request, w *response.Writer) {
		calls = append(calls, "handler")
		w.Text(req.ParsedBody.(string))
	}))

	raw := "POST /echo HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	_, data := serve(t, r, raw)

	assert.Equal(t, "hello", data)
	assert.Equal(t, []string{"early-1", "early-2", "late", "handler"}, calls)
	assert.Equal(t, "hello", parsedAtLate)
}

func TestEarlyMiddlewareRunsOnUnknownPath(t *testing.T) {
	r := newRouter(t)

	var early, late int
	require.NoError(t, r.UseEarly(func(req *request.Request, w *response.Writer) { early++ }))
	require.NoError(t, r.Use(func(req *request.Request, w *response.Writer) { late++ }))

	resp, _ := serve(t, r, "GET /missing HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, 1, early)
	assert.Equal(t, 0, late)
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	r := newRouter(t)

	handled := false
	require.NoError(t, r.UseEarly(func(req *request.Request, w *response.Writer) {
		if req.Header("Authorization") == "" {
			w.Forbidden()
		}
	}))
	require.NoError(t, r.Get("/private", func(req *request.Request, w *response.Writer) {
		handled = true
		w.Text("secret")
	}))

	resp, _ := serve(t, r, "GET /private HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 403, resp.StatusCode)
	assert.False(t, handled)

	resp, data := serve(t, r, "GET /private HTTP/1.1\r\nHost: localhost\r\nAuthorization: yes\r\n\r\n")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "secret", data)
	assert.True(t, handled)
}

func TestInvalidHandlers(t *testing.T) {
	r := newRouter(t)

	assert.ErrorIs(t, r.Get("/", nil), ErrInvalidHandler)
	assert.ErrorIs(t, r.Post("/", nil), ErrInvalidHandler)
	assert.ErrorIs(t, r.UseEarly(nil), ErrInvalidHandler)
	assert.ErrorIs(t, r.Use(nil), ErrInvalidHandler)
	assert.Empty(t, r.Routes())

	err := r.Get("/", func(req *request.Request, w *response.Writer) {}, body.Format(42))
	assert.ErrorIs(t, err, body.ErrUnsupportedFormat)
}

func TestLookup(t *testing.T) {
	r := newRouter(t)
	first := func(req *request.Request, w *response.Writer) { w.Text("first") }
	second := func(req *request.Request, w *response.Writer) { w.Text("second") }

	require.NoError(t, r.Handle("get", "/a", first))
	require.NoError(t, r.Get("/a", second, body.QueryString))

	route, err := r.Lookup("/a", "GET")
	require.NoError(t, err)
	assert.Equal(t, "GET", route.Method)
	assert.Equal(t, body.QueryString, route.Format)
	assert.Len(t, r.Routes(), 1)

	_, err = r.Lookup("/a", "POST")
	assert.ErrorIs(t, err, ErrMethodNotSupported)

	_, err = r.Lookup("/b", "GET")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	// Re-registration replaced the handler
	_, data := serve(t, r, "GET /a HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, "second", data)
}

func TestDefaultFormatFromSettings(t *testing.T) {
	r, err := New(Settings{ParseFormat: body.QueryString})
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, r.Settings().Encoding)

	var got any
	require.NoError(t, r.Post("/form", func(req *request.Request, w *response.Writer) {
		got = req.ParsedBody
		w.Text("ok")
	}))

	raw := "POST /form HTTP/1.1\r\nHost: localhost\r\nContent-Length: 11\r\n\r\nname=gopher"
	serve(t, r, raw)

	require.IsType(t, url.Values{}, got)
	assert.Equal(t, "gopher", got.(url.Values).Get("name"))
}

func TestBodyEncoding(t *testing.T) {
	r, err := New(Settings{Encoding: "latin1"})
	require.NoError(t, err)

	var got any
	require.NoError(t, r.Post("/latin", func(req *request.Request, w *response.Writer) {
		got = req.ParsedBody
		w.Text("ok")
	}))

	raw := "POST /latin HTTP/1.1\r\nHost: localhost\r\nContent-Length: 4\r\n\r\ncaf\xe9"
	serve(t, r, raw)
	assert.Equal(t, "café", got)
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(Settings{Encoding: "klingon"})
	assert.ErrorIs(t, err, body.ErrUnsupportedEncoding)

	_, err = New(Settings{ParseFormat: body.Format(9)})
	assert.ErrorIs(t, err, body.ErrUnsupportedFormat)
}

func TestMalformedJSONIsReturned(t *testing.T) {
	r := newRouter(t)

	handled := false
	require.NoError(t, r.Post("/receive_json", func(req *request.Request, w *response.Writer) {
		handled = true
	}, body.JSON))

	raw := "POST /receive_json HTTP/1.1\r\nHost: localhost\r\nContent-Length: 6\r\n\r\n{bad}}"
	req, err := request.RequestFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	w := response.NewWriter(buf)
	err = r.Serve(w, req)

	assert.ErrorIs(t, err, body.ErrMalformedBody)
	assert.False(t, handled)
	assert.False(t, w.Written())
	assert.Zero(t, buf.Len())
}

func TestBodyNotReadForUnknownRoute(t *testing.T) {
	r := newRouter(t)

	raw := "POST /nope HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	req, err := request.NewStream(strings.NewReader(raw), request.Limits{}).ReadHead()
	require.NoError(t, err)

	w := response.NewWriter(io.Discard)
	require.NoError(t, r.Serve(w, req))

	assert.Equal(t, response.StatusNotFound, w.StatusCode())
	assert.False(t, req.BodyRead())
	assert.Empty(t, req.Body)
}

func TestBodyReadForMatchedRoute(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.Post("/echo", func(req *request.Request, w *response.Writer) {
		w.Text(req.ParsedBody.(string))
	}))

	raw := "POST /echo HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	req, err := request.NewStream(strings.NewReader(raw), request.Limits{}).ReadHead()
	require.NoError(t, err)
	assert.False(t, req.BodyRead())

	buf := &bytes.Buffer{}
	require.NoError(t, r.Serve(response.NewWriter(buf), req))

	assert.True(t, req.BodyRead())
	assert.Equal(t, "hello", string(req.Body))
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\nhello"))
}

func TestAsteriskTargetIsNotFound(t *testing.T) {
	r := newRouter(t)
	resp, _ := serve(t, r, "OPTIONS * HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestInvalidMethods(t *testing.T) {
	r := newRouter(t)
	h := func(req *request.Request, w *response.Writer) {}

	for _, method := range []string{"", "   ", "\t", "GE T", "G\nET"} {
		err := r.Handle(method, "/", h)
		assert.ErrorIs(t, err, ErrInvalidMethod, "method %q", method)
	}
	assert.Empty(t, r.Routes())

	// Test: surrounding space is trimmed
	require.NoError(t, r.Handle(" patch ", "/", h))
	_, err := r.Lookup("/", "PATCH")
	assert.NoError(t, err)
}

func TestEncodedPathIsNotDecodedForRouting(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.Get("/a/b", func(req *request.Request, w *response.Writer) {
		w.Text("plain")
	}))
	require.NoError(t, r.Get("/a%2Fb", func(req *request.Request, w *response.Writer) {
		w.Text("encoded")
	}))

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/a/b", 200, "plain"},
		{"/a%2Fb", 200, "encoded"},
		{"/a%2Fb?x=1", 200, "encoded"},
		{"/%61/b", 404, ""},
		{"/a%2fb", 404, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp, data := serve(t, r, "GET "+tt.target+" HTTP/1.1\r\nHost: localhost\r\n\r\n")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.body, data)
		})
	}
}

func TestHandlerCannotInjectHeaders(t *testing.T) {
	r := newRouter(t)
	var sendErr error
	require.NoError(t, r.Get("/go", func(req *request.Request, w *response.Writer) {
		sendErr = w.Redirect("/x\r\nSet-Cookie: evil=1")
	}))

	req, err := request.RequestFromReader(strings.NewReader("GET /go HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	w := response.NewWriter(buf)
	_ = r.Serve(w, req)

	assert.ErrorIs(t, sendErr, response.ErrInvalidHeaderValue)
	assert.NotContains(t, buf.String(), "Set-Cookie")
}
