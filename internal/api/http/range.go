package apihttp

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errMalformedRange     = errors.New("malformed range header")
	errRangeUnsatisfiable = errors.New("range not satisfiable")
)

// byteWindow is a resolved inclusive byte interval within a file.
type byteWindow struct {
	start int64
	end   int64
}

func (w byteWindow) length() int64 {
	return w.end - w.start + 1
}

// resolveByteRange turns a Range header into a concrete window against a file
// of the given size. An absent header yields a nil window (whole file). Only a
// single bytes= range is accepted: "bytes=A-B", "bytes=A-" and "bytes=-B".
// Suffix lengths larger than the file are clamped to the whole file, but an
// explicit end at or past the file size is unsatisfiable rather than clamped.
func resolveByteRange(header string, size int64) (*byteWindow, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errMalformedRange
	}
	if strings.Contains(spec, ",") {
		return nil, errMalformedRange
	}

	startPart, endPart, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, errMalformedRange
	}
	startPart = strings.TrimSpace(startPart)
	endPart = strings.TrimSpace(endPart)

	if startPart == "" && endPart == "" {
		return nil, errMalformedRange
	}

	if startPart == "" {
		// Suffix form: last N bytes.
		suffix, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil {
			return nil, errMalformedRange
		}
		if suffix <= 0 || size == 0 {
			return nil, errRangeUnsatisfiable
		}
		start := size - suffix
		if start < 0 {
			start = 0
		}
		return &byteWindow{start: start, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil {
		return nil, errMalformedRange
	}

	end := size - 1
	if endPart != "" {
		end, err = strconv.ParseInt(endPart, 10, 64)
		if err != nil {
			return nil, errMalformedRange
		}
	}

	if start < 0 || start > end || start >= size || end >= size {
		return nil, errRangeUnsatisfiable
	}
	return &byteWindow{start: start, end: end}, nil
}
