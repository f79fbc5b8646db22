package response

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Brownie44l1/foundry-express/internal/headers"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
	ContentTypeXML  = "application/xml"
)

// Helpers below are terminal: each writes status line, headers and body in
// one go. Calling any of them on a written response returns ErrAlreadyWritten.

// JSON sends 200 with the given JSON document
func (w *Writer) JSON(content string) error {
	return w.BytesResponse(StatusOK, ContentTypeJSON, []byte(content))
}

// HTML sends 200 with the given HTML
func (w *Writer) HTML(content string) error {
	return w.BytesResponse(StatusOK, ContentTypeHTML, []byte(content))
}

// Text sends 200 with the given plain text
func (w *Writer) Text(content string) error {
	return w.BytesResponse(StatusOK, ContentTypeText, []byte(content))
}

// XML sends 200 with the given XML document
func (w *Writer) XML(content string) error {
	return w.BytesResponse(StatusOK, ContentTypeXML, []byte(content))
}

// JSONValue marshals v and sends it with 200
func (w *Writer) JSONValue(v any) error {
	if w.Written() {
		return ErrAlreadyWritten
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.BytesResponse(StatusOK, ContentTypeJSON, data)
}

// Redirect asks the client to resend the request to url (307)
func (w *Writer) Redirect(url string) error {
	return w.RedirectResponse(StatusTemporaryRedirect, url)
}

// NotFound sends an empty 404
func (w *Writer) NotFound() error {
	return w.Status(StatusNotFound)
}

// BadRequest sends an empty 400
func (w *Writer) BadRequest() error {
	return w.Status(StatusBadRequest)
}

// Forbidden sends an empty 403
func (w *Writer) Forbidden() error {
	return w.Status(StatusForbidden)
}

// MethodNotAllowed sends an empty 405 listing the allowed methods
func (w *Writer) MethodNotAllowed(allowed ...string) error {
	h := headers.NewHeaders()
	if len(allowed) > 0 {
		sorted := append([]string(nil), allowed...)
		sort.Strings(sorted)
		h.Set("Allow", strings.Join(sorted, ", "))
	}
	return w.send(StatusMethodNotAllowed, h, nil)
}

// Status sends code with an empty body
func (w *Writer) Status(code StatusCode) error {
	return w.send(code, headers.NewHeaders(), nil)
}

// TextResponse writes a plain text response with any status
func (w *Writer) TextResponse(code StatusCode, body string) error {
	return w.BytesResponse(code, ContentTypeText, []byte(body))
}

// ErrorResponse writes a short plain text error. An empty message uses the
// reason phrase.
func (w *Writer) ErrorResponse(code StatusCode, message string) error {
	if message == "" {
		message = StatusText(code)
	}

	body := fmt.Sprintf("Error %d: %s\n", code, message)
	return w.TextResponse(code, body)
}

// NoContentResponse writes a 204 No Content response
func (w *Writer) NoContentResponse() error {
	if w.state != stateStart {
		return ErrAlreadyWritten
	}
	if _, err := w.merge(nil); err != nil {
		return err
	}
	if err := w.WriteStatusLine(StatusNoContent); err != nil {
		return err
	}
	if err := w.WriteHeaders(nil); err != nil {
		return err
	}
	return w.WriteBody(nil)
}

// RedirectResponse writes a redirect with an explicit 3xx code
func (w *Writer) RedirectResponse(code StatusCode, location string) error {
	switch code {
	case StatusMovedPermanently, StatusFound, StatusSeeOther, StatusTemporaryRedirect, StatusPermanentRedirect:
	default:
		return fmt.Errorf("invalid redirect status code: %d", code)
	}

	h := headers.NewHeaders()
	h.Set("Location", location)
	return w.send(code, h, nil)
}

// BytesResponse writes a response with arbitrary content
func (w *Writer) BytesResponse(code StatusCode, contentType string, data []byte) error {
	h := headers.NewHeaders()
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return w.send(code, h, data)
}

func (w *Writer) send(code StatusCode, h *headers.Headers, data []byte) error {
	if w.state != stateStart {
		return ErrAlreadyWritten
	}

	h.Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.merge(h); err != nil {
		return err
	}

	if err := w.WriteStatusLine(code); err != nil {
		return err
	}
	if err := w.WriteHeaders(h); err != nil {
		return err
	}
	return w.WriteBody(data)
}
