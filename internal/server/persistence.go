package server

import (
	"strings"

	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

// shouldCloseConnection determines if connection should be closed after this request
func shouldCloseConnection(req *request.Request, w *response.Writer) bool {
	// If response had errors, close the connection
	if w.HadError() {
		return true
	}

	// HTTP/1.0 closes by default unless "Connection: keep-alive";
	// HTTP/1.1 keeps alive unless "Connection: close"
	if req.WantsClose() {
		return true
	}

	// Either side asked for close through the response
	if v, ok := w.Header().Get("connection"); ok && strings.EqualFold(v, "close") {
		return true
	}

	// Without Content-Length the client reads the body until EOF
	if !w.HasContentLength() && w.StatusCode() != response.StatusNoContent {
		return true
	}

	return false
}
