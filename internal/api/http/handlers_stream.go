package apihttp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/TellyCloud/torrent-stream-server/internal/metrics"
	"github.com/TellyCloud/torrent-stream-server/internal/usecase"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.openStream == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "stream use case not configured")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and HEAD are supported")
		return
	}

	q := r.URL.Query()
	identifier := identifierFromQuery(q)
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "magnet parameter is required")
		return
	}

	sel := usecase.Selection{Index: -1, NameHint: q.Get("filename")}
	if raw := q.Get("fileIndex"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid fileIndex")
			return
		}
		sel.Index = idx
	}

	result, err := s.openStream.Execute(r.Context(), identifier, sel)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	size := result.File.Length
	w.Header().Set("Content-Type", contentTypeFor(result.File.Name))
	w.Header().Set("Accept-Ranges", "bytes")
	// Close the connection when the copy ends so keep-alive cannot hold a
	// reader slot open after the player stops playback.
	w.Header().Set("Connection", "close")

	disposition := "inline"
	if q.Get("download") == "1" || q.Get("d") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(path.Base(result.File.Name))))

	// HEAD: headers only, no reader slot is claimed.
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	window, rangeErr := resolveByteRange(r.Header.Get("Range"), size)
	if rangeErr != nil {
		code := "range_not_satisfiable"
		if errors.Is(rangeErr, errMalformedRange) {
			code = "malformed_range"
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, code, rangeErr.Error())
		return
	}

	reader, err := result.Open(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer reader.Close()

	if window != nil {
		if _, err := reader.Seek(window.start, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to seek stream")
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", window.start, window.end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(window.length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		n, err := io.CopyN(w, reader, window.length())
		metrics.StreamedBytes.Add(float64(n))
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Debug("stream range copy interrupted",
				slog.String("infoHash", result.InfoHash),
				slog.String("file", result.File.Name),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, reader)
	metrics.StreamedBytes.Add(float64(n))
	if err != nil {
		s.logger.Debug("stream copy interrupted",
			slog.String("infoHash", result.InfoHash),
			slog.String("file", result.File.Name),
			slog.String("error", err.Error()),
		)
	}
}
