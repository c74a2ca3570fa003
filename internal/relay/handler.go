package relay

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/radif/filerelay/internal/config"
	"github.com/radif/filerelay/internal/metrics"
	"github.com/radif/filerelay/internal/response"
)

const (
	fileField       = "file"
	defaultFilename = "file"
	uploadedMessage = "File uploaded successfully. Streaming URL generated."

	// StreamPath is where stored files are served back from.
	StreamPath = "/stream_file"

	// Stored content never changes for a given file_id.
	immutableCache = "public, max-age=31536000"
)

// Headers that describe the connection to Telegram rather than the file,
// plus cookies Telegram might set for its own domain.
var droppedHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Set-Cookie":          true,
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// Handler holds HTTP handlers for the upload and stream relays.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new relay Handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Relays the multipart "file" part to Telegram and returns its file_id and a streaming URL.
//	@Tags			files
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"File to store"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/upload_file [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	if err := h.svc.CanUpload(); err != nil {
		h.fail(w, r, metrics.UploadsTotal, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	part, err := filePart(r)
	if err != nil {
		h.fail(w, r, metrics.UploadsTotal, err)
		return
	}
	defer part.Close()

	name := part.FileName()
	stored, err := h.svc.Upload(r.Context(), name, part)
	if err != nil {
		h.fail(w, r, metrics.UploadsTotal, err)
		return
	}

	log.Info().
		Str("file_id", stored.FileID).
		Str("file_unique_id", stored.FileUniqueID).
		Str("filename", name).
		Str("kind", string(stored.Kind)).
		Str("size", humanize.Bytes(uint64(stored.Size))).
		Msg("file uploaded")
	metrics.UploadsTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	response.OK(w, response.Envelope{
		FileID:   stored.FileID,
		Filename: name,
		URL:      h.streamURL(r, stored.FileID, name),
		Message:  uploadedMessage,
	})
}

// Stream godoc
//
//	@Summary		Stream a stored file
//	@Description	Resolves file_id with Telegram and pipes the file back for inline display.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			file_id		query		string	true	"Reference returned by /upload_file"
//	@Param			filename	query		string	false	"Name shown to the browser"	default(file)
//	@Success		200			{file}		binary
//	@Failure		400			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/stream_file [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	q := r.URL.Query()
	fileID := q.Get("file_id")
	filename := q.Get("filename")
	if filename == "" {
		filename = defaultFilename
	}

	obj, err := h.svc.Open(r.Context(), fileID)
	if err != nil {
		h.fail(w, r, metrics.StreamsTotal, err)
		return
	}
	defer obj.Body.Close()

	hdr := w.Header()
	for k, vs := range obj.Header {
		if droppedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	hdr.Set("Content-Disposition", contentDisposition(filename))
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Cache-Control", immutableCache)
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(flushWriter{w: w, rc: http.NewResponseController(w)}, obj.Body)
	metrics.StreamedBytesTotal.Add(float64(n))
	if err == nil && obj.Size >= 0 && n < obj.Size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		// Headers are gone already; all that is left is to stop reading.
		log.Warn().
			Err(err).
			Str("file_id", fileID).
			Int64("bytes", n).
			Int64("expected", obj.Size).
			Msg("stream aborted")
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeAborted).Inc()
		return
	}

	log.Debug().Str("file_id", fileID).Str("size", humanize.Bytes(uint64(n))).Msg("file streamed")
	metrics.StreamsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, counter *prometheus.CounterVec, err error) {
	status, outcome, message := classify(err)
	counter.WithLabelValues(outcome).Inc()

	level := zerolog.ErrorLevel
	if status < http.StatusInternalServerError {
		level = zerolog.InfoLevel
	}
	zerolog.Ctx(r.Context()).WithLevel(level).
		Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("relay failed")

	response.Error(w, status, message)
}

// flushWriter pushes every chunk to the client as soon as it is read from
// Telegram instead of waiting for the response buffer to fill.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// contentDisposition builds an inline disposition. Names outside ASCII get
// an RFC 6266 filename* parameter, with underscores standing in for the
// non-ASCII runes in the plain filename fallback.
func contentDisposition(name string) string {
	plain := quoteEscaper.Replace(name)
	if isASCII(name) {
		return `inline; filename="` + plain + `"`
	}
	fallback := strings.Map(func(r rune) rune {
		if r >= utf8.RuneSelf {
			return '_'
		}
		return r
	}, plain)
	return `inline; filename="` + fallback + `"; filename*=UTF-8''` + extValue(name)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// extValue percent-encodes s for an RFC 5987 ext-value, leaving attr-char alone.
func extValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// filePart returns the first part named "file". A "file" field without a
// filename is a plain text field and is rejected.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFilePart
	}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, err
			}
			return nil, &ValidationError{Message: "Invalid multipart body: " + err.Error()}
		}
		if p.FormName() != fileField {
			p.Close()
			continue
		}
		if p.FileName() == "" {
			p.Close()
			return nil, errNoFilePart
		}
		return p, nil
	}
}

// streamURL builds the link that brings a caller back to Stream.
// url.Values keeps file_id intact whatever characters Telegram put in it.
func (h *Handler) streamURL(r *http.Request, fileID, filename string) string {
	base := h.cfg.PublicBaseURL
	if base == "" {
		base = requestOrigin(r)
	}
	q := url.Values{}
	q.Set("file_id", fileID)
	q.Set("filename", filename)
	return base + StreamPath + "?" + q.Encode()
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.ToLower(strings.TrimSpace(scheme))
	}
	return scheme + "://" + r.Host
}
