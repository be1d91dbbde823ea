package apihttp

import (
	"errors"
	"testing"
)

func TestResolveByteRange(t *testing.T) {
	const size = 1_000_000

	cases := []struct {
		name   string
		header string
		start  int64
		end    int64
	}{
		{name: "closed range", header: "bytes=0-999", start: 0, end: 999},
		{name: "interior range", header: "bytes=500-1499", start: 500, end: 1499},
		{name: "open ended", header: "bytes=1000-", start: 1000, end: size - 1},
		{name: "open ended from zero", header: "bytes=0-", start: 0, end: size - 1},
		{name: "suffix", header: "bytes=-500", start: size - 500, end: size - 1},
		{name: "suffix covering whole file", header: "bytes=-2000000", start: 0, end: size - 1},
		{name: "last byte", header: "bytes=999999-999999", start: size - 1, end: size - 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window, err := resolveByteRange(tc.header, size)
			if err != nil {
				t.Fatalf("resolveByteRange(%q) error: %v", tc.header, err)
			}
			if window == nil {
				t.Fatalf("resolveByteRange(%q) returned nil window", tc.header)
			}
			if window.start != tc.start || window.end != tc.end {
				t.Fatalf("resolveByteRange(%q) = [%d, %d], want [%d, %d]",
					tc.header, window.start, window.end, tc.start, tc.end)
			}
		})
	}
}

func TestResolveByteRangeAbsent(t *testing.T) {
	window, err := resolveByteRange("", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window != nil {
		t.Fatalf("expected nil window for absent header, got [%d, %d]", window.start, window.end)
	}
}

func TestResolveByteRangeMalformed(t *testing.T) {
	headers := []string{
		"bytes",
		"bytes=",
		"bytes=-",
		"bytes=abc-def",
		"bytes=10-abc",
		"bytes=0-100,200-300",
		"items=0-100",
		"0-100",
	}
	for _, header := range headers {
		if _, err := resolveByteRange(header, 1000); !errors.Is(err, errMalformedRange) {
			t.Errorf("resolveByteRange(%q) error = %v, want errMalformedRange", header, err)
		}
	}
}

func TestResolveByteRangeUnsatisfiable(t *testing.T) {
	headers := []string{
		"bytes=1000000-1000005",
		"bytes=1000000-",
		"bytes=500-100",
		"bytes=999999-1000000",
		"bytes=-0",
	}
	for _, header := range headers {
		if _, err := resolveByteRange(header, 1_000_000); !errors.Is(err, errRangeUnsatisfiable) {
			t.Errorf("resolveByteRange(%q) error = %v, want errRangeUnsatisfiable", header, err)
		}
	}

	// Any range against an empty file is unsatisfiable.
	if _, err := resolveByteRange("bytes=0-0", 0); !errors.Is(err, errRangeUnsatisfiable) {
		t.Errorf("resolveByteRange against empty file error = %v, want errRangeUnsatisfiable", err)
	}
	if _, err := resolveByteRange("bytes=-10", 0); !errors.Is(err, errRangeUnsatisfiable) {
		t.Errorf("suffix range against empty file error = %v, want errRangeUnsatisfiable", err)
	}
}
