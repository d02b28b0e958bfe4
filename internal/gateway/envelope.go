package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/authgate/internal/binder"
)

// maxEnvelopeSize caps JSON proxy call descriptions at 10MB. File uploads
// go through the multipart variant and are not subject to this limit.
const maxEnvelopeSize = 10 << 20

// Reserved form field names that describe the proxy call itself.
// Every other field in the form is forwarded untouched.
const (
	fieldURL      = "proxy_url"
	fieldMethod   = "proxy_method"
	fieldLanguage = "proxy_language"
)

// Error variables define the envelope failure modes.
var (
	// ErrMissingURL indicates the envelope named no destination.
	ErrMissingURL = errors.New("missing destination url")

	// ErrInvalidEnvelope indicates the proxy call description could not
	// be parsed or turned into an upstream request.
	ErrInvalidEnvelope = errors.New("invalid proxy envelope")
)

// Envelope is one proxied call. The variant is decided once at parse time
// from the request's content type and never re-examined.
type Envelope interface {
	// Target returns the backend path or URL the call goes to.
	Target() string
	// Method returns the upper-cased HTTP method, defaulting to POST.
	Method() string
	// Language returns the explicitly requested response language, if any.
	Language() string
	// Materialize produces the upstream path, body, and content type.
	// For GET and HEAD the payload is folded into query parameters and
	// the body stays empty.
	Materialize() (path string, body []byte, contentType string, err error)
}

// ParseEnvelope reads the proxy call description from the request.
// JSON documents and form posts never mix: a request is one or the other.
func ParseEnvelope(r *http.Request) (Envelope, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("%w: expected a proxy call description", binder.ErrMissingContentType)
	}

	mediaType := contentType
	if idx := strings.Index(contentType, ";"); idx != -1 {
		mediaType = strings.TrimSpace(contentType[:idx])
	}

	switch {
	case strings.EqualFold(mediaType, "application/json"):
		return parseJSONEnvelope(r)
	case strings.EqualFold(mediaType, "multipart/form-data"),
		strings.EqualFold(mediaType, "application/x-www-form-urlencoded"):
		return parseFormEnvelope(r)
	default:
		return nil, fmt.Errorf("%w: got %s", binder.ErrUnsupportedMediaType, mediaType)
	}
}

// JSONEnvelope is a proxy call described by a JSON document. The payload
// is kept as raw bytes and forwarded without interpretation.
type JSONEnvelope struct {
	TargetURL  string          `json:"url"`
	HTTPMethod string          `json:"method"`
	Body       json.RawMessage `json:"body"`
	Lang       string          `json:"language"`
}

func (e *JSONEnvelope) Target() string   { return e.TargetURL }
func (e *JSONEnvelope) Method() string   { return normalizeMethod(e.HTTPMethod) }
func (e *JSONEnvelope) Language() string { return e.Lang }

func (e *JSONEnvelope) Materialize() (string, []byte, string, error) {
	method := e.Method()
	if method == http.MethodGet || method == http.MethodHead {
		query, err := queryFromJSON(e.Body)
		if err != nil {
			return "", nil, "", err
		}
		return appendQuery(e.TargetURL, query), nil, "", nil
	}

	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return e.TargetURL, nil, "", nil
	}
	return e.TargetURL, e.Body, "application/json", nil
}

// parseJSONEnvelope decodes the call description leniently: the envelope
// travels from foreign client code, so unknown fields pass through
// unremarked instead of failing the call.
func parseJSONEnvelope(r *http.Request) (*JSONEnvelope, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize+1))
	if err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if len(body) > maxEnvelopeSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidEnvelope, maxEnvelopeSize)
	}

	var env JSONEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if env.TargetURL == "" {
		return nil, ErrMissingURL
	}
	return &env, nil
}

// FormEnvelope is a proxy call described by form fields. File parts are
// forwarded as-is in a rebuilt multipart body.
type FormEnvelope struct {
	TargetURL  string
	HTTPMethod string
	Lang       string
	Fields     map[string][]string
	Files      map[string][]*multipart.FileHeader
}

func (e *FormEnvelope) Target() string   { return e.TargetURL }
func (e *FormEnvelope) Method() string   { return normalizeMethod(e.HTTPMethod) }
func (e *FormEnvelope) Language() string { return e.Lang }

func (e *FormEnvelope) Materialize() (string, []byte, string, error) {
	method := e.Method()
	if method == http.MethodGet || method == http.MethodHead {
		return appendQuery(e.TargetURL, url.Values(e.Fields).Encode()), nil, "", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range e.Fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				return "", nil, "", err
			}
		}
	}
	for name, files := range e.Files {
		for _, fh := range files {
			if err := copyFilePart(mw, name, fh); err != nil {
				return "", nil, "", err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, "", err
	}
	return e.TargetURL, buf.Bytes(), mw.FormDataContentType(), nil
}

// copyFilePart forwards one uploaded file into the rebuilt form, keeping
// the part's original content type.
func copyFilePart(mw *multipart.Writer, name string, fh *multipart.FileHeader) error {
	partType := fh.Header.Get("Content-Type")
	if partType == "" {
		partType = "application/octet-stream"
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%s; filename=%s`,
			strconv.Quote(name), strconv.Quote(fh.Filename))},
		"Content-Type": {partType},
	})
	if err != nil {
		return err
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(part, src)
	return err
}

// parseFormEnvelope binds the reserved descriptor fields, then collects
// everything else for forwarding.
func parseFormEnvelope(r *http.Request) (*FormEnvelope, error) {
	var reserved struct {
		URL      string `form:"proxy_url"`
		Method   string `form:"proxy_method"`
		Language string `form:"proxy_language"`
	}
	if err := binder.Form()(r, &reserved); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if reserved.URL == "" {
		return nil, ErrMissingURL
	}

	env := &FormEnvelope{
		TargetURL:  reserved.URL,
		HTTPMethod: reserved.Method,
		Lang:       reserved.Language,
		Fields:     map[string][]string{},
		Files:      map[string][]*multipart.FileHeader{},
	}

	// The binder leaves the parsed form data on the request.
	if r.MultipartForm != nil {
		for name, values := range r.MultipartForm.Value {
			if isReservedField(name) {
				continue
			}
			env.Fields[name] = values
		}
		for name, files := range r.MultipartForm.File {
			if isReservedField(name) {
				continue
			}
			env.Files[name] = files
		}
		return env, nil
	}

	for name, values := range r.PostForm {
		if isReservedField(name) {
			continue
		}
		env.Fields[name] = values
	}
	return env, nil
}

func isReservedField(name string) bool {
	return name == fieldURL || name == fieldMethod || name == fieldLanguage
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return http.MethodPost
	}
	return method
}

// queryFromJSON flattens a JSON object into URL query parameters. Scalar
// values keep their text form; nested structures travel as JSON text.
func queryFromJSON(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("%w: body must be an object to serialize as query parameters", ErrInvalidEnvelope)
	}

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, queryValue(value))
	}
	return values.Encode(), nil
}

func queryValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}

// appendQuery attaches an encoded query string to a path that may already
// carry one.
func appendQuery(path, query string) string {
	if query == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + query
	}
	return path + "?" + query
}
