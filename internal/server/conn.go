package server

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/Brownie44l1/foundry-express/internal/headers"
	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

// serveConn handles all requests on a single connection
func (s *Server) serveConn(conn net.Conn, state *connState, h Handler) {
	defer s.untrack(conn)
	defer conn.Close()

	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	stream := request.NewStream(conn, request.Limits{
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
		MaxBodySize:    s.cfg.MaxBodySize,
	})

	for {
		state.idle.Store(true)
		if s.closed.Load() {
			return
		}

		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		req, err := stream.ReadHead()
		state.idle.Store(false)
		if err != nil {
			s.handleReadError(conn, err)
			return
		}
		req.RemoteAddr = conn.RemoteAddr().String()

		w := response.NewWriter(conn)
		switch {
		case req.WantsClose() || s.closed.Load():
			w.Header().Set("Connection", "close")
		case req.IsHTTP10():
			// 1.0 clients only keep the connection when told so
			w.Header().Set("Connection", "keep-alive")
		}

		if err := h.Serve(w, req); err != nil {
			s.logger.Warn("dropping connection",
				Field{"method", req.Method},
				Field{"target", req.Target},
				Field{"error", err},
				Field{"request_id", req.ID},
			)
			return
		}

		if !w.Done() {
			s.logger.Warn("handler returned without a response",
				Field{"method", req.Method},
				Field{"target", req.Target},
				Field{"request_id", req.ID},
			)
			return
		}

		// Unread body bytes would be parsed as the next request
		if !req.BodyRead() {
			return
		}

		if shouldCloseConnection(req, w) {
			return
		}

		conn.SetReadDeadline(time.Time{})
	}
}

// handleReadError answers a malformed request head where a status fits,
// then the connection is closed.
func (s *Server) handleReadError(conn net.Conn, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		s.logger.Debug("read timeout", Field{"remote", conn.RemoteAddr().String()})
		return
	}

	code, ok := readErrorStatus(err)
	if !ok {
		s.logger.Debug("read failed", Field{"remote", conn.RemoteAddr().String()}, Field{"error", err})
		return
	}

	s.logger.Info("bad request",
		Field{"remote", conn.RemoteAddr().String()},
		Field{"status", int(code)},
		Field{"error", err},
	)

	w := response.NewWriter(conn)
	w.Header().Set("Connection", "close")
	w.ErrorResponse(code, "")
	s.metrics.RecordRequest("", int(code), 0)
}

// readErrorStatus maps request reader errors to a response status
func readErrorStatus(err error) (response.StatusCode, bool) {
	switch {
	case errors.Is(err, request.ErrHeaderTooLarge), errors.Is(err, request.ErrTooManyHeaders):
		return response.StatusHeaderFieldsTooLarge, true
	case errors.Is(err, request.ErrURITooLong), errors.Is(err, request.ErrRequestLineTooLarge):
		return response.StatusRequestURITooLong, true
	case errors.Is(err, request.ErrBodyTooLarge):
		return response.StatusRequestEntityTooLarge, true
	case errors.Is(err, request.ErrUnsupportedVersion):
		return response.StatusHTTPVersionNotSupported, true
	case errors.Is(err, request.ErrMalformedRequestLine),
		errors.Is(err, request.ErrInvalidMethod),
		errors.Is(err, request.ErrInvalidPath),
		errors.Is(err, request.ErrInvalidContentLength),
		errors.Is(err, headers.ErrMalformedHeader):
		return response.StatusBadRequest, true
	}
	return 0, false
}
