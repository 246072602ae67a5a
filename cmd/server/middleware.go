package main

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// readOnlyJSON sets the headers every API answer shares and answers CORS preflights.
// No endpoint reads a request body, so any body is dropped unread.
func readOnlyJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Type", "application/json; charset=utf-8")
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		r.Body = http.NoBody
		next.ServeHTTP(w, r)
	})
}

// minGzipSize is where compression starts paying off. Error bodies and /healthz stay
// below it, a few days of quotes already exceed it.
const minGzipSize = 256

var gzipPool = sync.Pool{New: func() any {
	w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
	return w
}}

// compressLarge gzips responses of at least minGzipSize bytes for clients that accept it.
func compressLarge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		cw := &compressWriter{ResponseWriter: w, status: http.StatusOK}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}

// compressWriter holds back the status and the first minGzipSize bytes, then commits to
// either a gzip or a plain body.
type compressWriter struct {
	http.ResponseWriter
	status int
	buf    []byte
	gz     *gzip.Writer
}

func (c *compressWriter) WriteHeader(status int) {
	if c.gz == nil {
		c.status = status
	}
}

func (c *compressWriter) Write(b []byte) (int, error) {
	if c.gz != nil {
		return c.gz.Write(b)
	}
	c.buf = append(c.buf, b...)
	if len(c.buf) < minGzipSize {
		return len(b), nil
	}
	h := c.Header()
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	c.ResponseWriter.WriteHeader(c.status)
	c.gz = gzipPool.Get().(*gzip.Writer)
	c.gz.Reset(c.ResponseWriter)
	if _, err := c.gz.Write(c.buf); err != nil {
		return 0, err
	}
	c.buf = nil
	return len(b), nil
}

func (c *compressWriter) finish() {
	if c.gz != nil {
		_ = c.gz.Close()
		c.gz.Reset(io.Discard)
		gzipPool.Put(c.gz)
		return
	}
	c.ResponseWriter.WriteHeader(c.status)
	if len(c.buf) > 0 {
		_, _ = c.ResponseWriter.Write(c.buf)
	}
}

// recoverPanic turns a handler panic into a logged 500 with the usual JSON error body.
func recoverPanic(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{"panic": rec, "path": r.URL.Path, "query": r.URL.RawQuery}).Error("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
