package usecase

import (
	"strings"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
)

// Selection narrows the file choice within a session. A negative Index means
// "not given".
type Selection struct {
	Index    int
	NameHint string
}

// preferredExtensions is a fixed priority list consulted when neither an
// index nor a name hint selects a file. Earlier entries win over larger
// files later in the list.
var preferredExtensions = []string{
	".mp4", ".m4v", ".webm", ".mkv", ".mp3", ".m4a", ".ogg", ".wav",
}

// ChooseFile picks one file from a session's file list. Resolution order:
// explicit in-bounds index, then name hint (exact, suffix, case-insensitive
// substring, in list order), then the first file carrying a preferred media
// extension, then the largest file with ties broken by earliest index.
// Returns false only for an empty list.
func ChooseFile(files []domain.File, sel Selection) (domain.File, bool) {
	if len(files) == 0 {
		return domain.File{}, false
	}

	if sel.Index >= 0 && sel.Index < len(files) {
		return files[sel.Index], true
	}

	if hint := strings.TrimSpace(sel.NameHint); hint != "" {
		lowerHint := strings.ToLower(hint)
		for _, f := range files {
			if f.Name == hint || strings.HasSuffix(f.Name, hint) ||
				strings.Contains(strings.ToLower(f.Name), lowerHint) {
				return f, true
			}
		}
	}

	for _, ext := range preferredExtensions {
		for _, f := range files {
			if strings.HasSuffix(strings.ToLower(f.Name), ext) {
				return f, true
			}
		}
	}

	largest := files[0]
	for _, f := range files[1:] {
		if f.Length > largest.Length {
			largest = f
		}
	}
	return largest, true
}
