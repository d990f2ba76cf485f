package middleware

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

var gzPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

var brPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewWriter(io.Discard)
	},
}

// compressResponseWriter defers the compression decision to the first
// write: a handler that sets Content-Encoding itself (blob downloads
// serving stored gzip bytes) passes through untouched.
type compressResponseWriter struct {
	http.ResponseWriter
	encoding    string // negotiated from Accept-Encoding
	cw          io.WriteCloser
	wroteHeader bool
}

func (w *compressResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if w.Header().Get("Content-Encoding") == "" {
		switch w.encoding {
		case "br":
			br := brPool.Get().(*brotli.Writer)
			br.Reset(w.ResponseWriter)
			w.cw = br
		case "gzip":
			gz := gzPool.Get().(*gzip.Writer)
			gz.Reset(w.ResponseWriter)
			w.cw = gz
		}
		if w.cw != nil {
			w.Header().Set("Content-Encoding", w.encoding)
			w.Header().Del("Content-Length")
		}
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *compressResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.cw != nil {
		return w.cw.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Hijack keeps websocket upgrades working through the wrapper.
func (w *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (w *compressResponseWriter) close() {
	if w.cw == nil {
		return
	}
	w.cw.Close()
	switch cw := w.cw.(type) {
	case *brotli.Writer:
		brPool.Put(cw)
	case *gzip.Writer:
		gzPool.Put(cw)
	}
	w.cw = nil
}

// Compress negotiates response compression from Accept-Encoding,
// preferring brotli over gzip. Namespace listings and key dumps are
// JSON and shrink well; responses a handler already encoded are left
// alone.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept-Encoding")

		var encoding string
		switch {
		case strings.Contains(accept, "br"):
			encoding = "br"
		case strings.Contains(accept, "gzip"):
			encoding = "gzip"
		default:
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressResponseWriter{ResponseWriter: w, encoding: encoding}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}
