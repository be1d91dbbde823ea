package apihttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
	"github.com/TellyCloud/torrent-stream-server/internal/usecase"
)

// fakeStreamReader serves a deterministic byte pattern from memory.
type fakeStreamReader struct {
	*bytes.Reader
	closed int
}

func newFakeStreamReader(size int64) *fakeStreamReader {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &fakeStreamReader{Reader: bytes.NewReader(data)}
}

func (r *fakeStreamReader) Close() error {
	r.closed++
	return nil
}

func (r *fakeStreamReader) SetContext(context.Context) {}
func (r *fakeStreamReader) SetReadahead(int64)         {}
func (r *fakeStreamReader) SetResponsive()             {}

type fakeOpenStream struct {
	called     int
	identifier string
	sel        usecase.Selection
	result     usecase.StreamResult
	err        error
}

func (f *fakeOpenStream) Execute(ctx context.Context, identifier string, sel usecase.Selection) (usecase.StreamResult, error) {
	f.called++
	f.identifier = identifier
	f.sel = sel
	return f.result, f.err
}

func streamResultFor(name string, size int64, reader *fakeStreamReader, opened *int) usecase.StreamResult {
	return usecase.StreamResult{
		InfoHash: "08ada5a7a6183aae1e09d831df6748d566095a10",
		Name:     name,
		File:     domain.File{Index: 0, Name: name, Length: size},
		Open: func(ctx context.Context) (ports.StreamReader, error) {
			if opened != nil {
				*opened++
			}
			return reader, nil
		},
	}
}

func expectedPattern(start, length int64) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = byte((start + int64(i)) % 251)
	}
	return out
}

func newStreamTestServer(open *fakeOpenStream) *Server {
	return NewServer(&fakeListFiles{}, WithOpenStream(open))
}

func TestStreamClosedRange(t *testing.T) {
	const size = 1_000_000
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	req.Header.Set("Range", "bytes=0-999")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != fmt.Sprintf("bytes 0-999/%d", size) {
		t.Fatalf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Fatalf("Content-Length = %q, want 1000", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("Accept-Ranges = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), expectedPattern(0, 1000)) {
		t.Fatal("body does not match the first 1000 bytes of the file")
	}
	if reader.closed != 1 {
		t.Fatalf("reader closed %d times, want 1", reader.closed)
	}
}

func TestStreamSuffixRange(t *testing.T) {
	const size = 1_000_000
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	req.Header.Set("Range", "bytes=-500")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != fmt.Sprintf("bytes 999500-999999/%d", size) {
		t.Fatalf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), expectedPattern(999500, 500)) {
		t.Fatal("body does not match the last 500 bytes of the file")
	}
}

func TestStreamRangeBeyondEOF(t *testing.T) {
	const size = 1_000_000
	opened := 0
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, &opened)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	req.Header.Set("Range", "bytes=1000000-1000005")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != fmt.Sprintf("bytes */%d", size) {
		t.Fatalf("Content-Range = %q, want bytes */%d", got, size)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Error.Code != "range_not_satisfiable" {
		t.Fatalf("error code = %q, want range_not_satisfiable", envelope.Error.Code)
	}
	if opened != 0 {
		t.Fatalf("reader opened %d times for an unsatisfiable range, want 0", opened)
	}
}

func TestStreamMalformedRange(t *testing.T) {
	const size = 1000
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	req.Header.Set("Range", "bytes=0-100,200-300")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Error.Code != "malformed_range" {
		t.Fatalf("error code = %q, want malformed_range", envelope.Error.Code)
	}
}

func TestStreamFullBody(t *testing.T) {
	const size = 4096
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "4096" {
		t.Fatalf("Content-Length = %q, want 4096", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("Content-Type = %q, want video/mp4", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(body, expectedPattern(0, size)) {
		t.Fatal("body does not match the full file contents")
	}
}

func TestStreamHead(t *testing.T) {
	const size = 12345
	opened := 0
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, &opened)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodHead, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "12345" {
		t.Fatalf("Content-Length = %q, want 12345", got)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("HEAD returned a body of %d bytes", rec.Body.Len())
	}
	if opened != 0 {
		t.Fatalf("reader opened %d times for HEAD, want 0", opened)
	}
}

func TestStreamDownloadDisposition(t *testing.T) {
	const size = 100
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc&d=1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename*=UTF-8''sintel.mp4" {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestStreamSelectionForwarded(t *testing.T) {
	const size = 100
	reader := newFakeStreamReader(size)
	open := &fakeOpenStream{result: streamResultFor("sintel.mp4", size, reader, nil)}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc&fileIndex=2&filename=b.mp4", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if open.sel.Index != 2 || open.sel.NameHint != "b.mp4" {
		t.Fatalf("selection = %+v, want Index 2 NameHint b.mp4", open.sel)
	}
}

func TestStreamInvalidFileIndex(t *testing.T) {
	srv := newStreamTestServer(&fakeOpenStream{})
	defer srv.Close()

	for _, raw := range []string{"abc", "-1", "1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc&fileIndex="+raw, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("fileIndex=%q status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestStreamMissingIdentifier(t *testing.T) {
	srv := newStreamTestServer(&fakeOpenStream{})
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStreamFileNotFound(t *testing.T) {
	open := &fakeOpenStream{err: domain.ErrNotFound}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc&fileIndex=99", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code = %q, want not_found", envelope.Error.Code)
	}
}

func TestStreamCreationTimeout(t *testing.T) {
	open := &fakeOpenStream{err: domain.ErrCreationTimeout}
	srv := newStreamTestServer(open)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/stream?magnet=magnet:?xt=urn:btih:abc", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var envelope errorEnvelope
	decodeBody(t, rec, &envelope)
	if envelope.Error.Code != "creation_timeout" {
		t.Fatalf("error code = %q, want creation_timeout", envelope.Error.Code)
	}
}
