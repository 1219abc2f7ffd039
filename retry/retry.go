// Package retry replays a request against the failover order of its key
// when a peer answers with a server error.
package retry

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Attempts is the maximum number of peers a request is tried against.
var Attempts = 3

var retryCode = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ShouldRetry reports whether a response with code is worth retrying on
// another peer.
func ShouldRetry(code int) bool {
	return retryCode[code]
}

// BufferedResponseWriter keeps a response in memory so that a failed attempt
// can be thrown away.
type BufferedResponseWriter struct {
	header http.Header
	buffer *bytes.Buffer
	code   int
}

// NewBufferedResponseWriter returns an empty BufferedResponseWriter.
func NewBufferedResponseWriter() *BufferedResponseWriter {
	return &BufferedResponseWriter{
		header: http.Header{},
		buffer: &bytes.Buffer{},
	}
}

func (w *BufferedResponseWriter) Header() http.Header {
	return w.header
}

// WriteHeader records the final status code. Informational 1xx responses
// are dropped.
func (w *BufferedResponseWriter) WriteHeader(statusCode int) {
	if statusCode >= 100 && statusCode < 200 {
		return
	}
	if w.code == 0 {
		w.code = statusCode
	}
}

func (w *BufferedResponseWriter) Write(data []byte) (int, error) {
	// If WriteHeader has not yet been called, Write implies http.StatusOK.
	w.WriteHeader(http.StatusOK)
	return w.buffer.Write(data)
}

// Code returns the response status code.
func (w *BufferedResponseWriter) Code() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// Len returns the number of buffered body bytes.
func (w *BufferedResponseWriter) Len() int {
	return w.buffer.Len()
}

// WriteTo copies headers, status code and body to dst.
func (w *BufferedResponseWriter) WriteTo(dst http.ResponseWriter) (int64, error) {
	for k, v := range w.header {
		dst.Header()[k] = v
	}
	dst.WriteHeader(w.Code())
	return io.Copy(dst, w.buffer)
}

func requestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request error:%v", err)
	}
	return bodyBytes, nil
}

// Attempt describes the outcome of serving a request on one peer.
type Attempt struct {
	Peer       string
	StatusCode int
	InBytes    uint64
	OutBytes   uint64
}

// Failover serves r against peers in order, at most Attempts times, until a
// response is not retryable. The last response is written to w. Every
// attempt is returned, the last one being what the client got.
func Failover(w http.ResponseWriter, r *http.Request, peers []string, serve func(peer string, w http.ResponseWriter, r *http.Request)) []Attempt {
	body, err := requestBody(r)
	if err != nil {
		log.Errorf("bufferRequestBody err=%v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	var attempts []Attempt
	var last *BufferedResponseWriter
	for i, peer := range peers {
		if i >= Attempts {
			break
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		bw := NewBufferedResponseWriter()
		serve(peer, bw, r)
		log.Debugf("[Retry]%dth try peer %s, response code %d", i+1, peer, bw.Code())

		attempts = append(attempts, Attempt{
			Peer:       peer,
			StatusCode: bw.Code(),
			InBytes:    uint64(len(body)),
			OutBytes:   uint64(bw.Len()),
		})
		last = bw
		if !ShouldRetry(bw.Code()) {
			break
		}
	}

	if last != nil {
		if _, err := last.WriteTo(w); err != nil {
			log.Errorf("write response err=%v", err)
		}
	}
	return attempts
}
