package downloader

import (
	"fmt"
	"net/url"
	"path"
)

// Range is an inclusive byte range.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in r.
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// nextRange returns the chunk starting at committed, with its end clamped to
// the last byte. ok is false once everything is committed.
func nextRange(committed, chunkSize, total int64) (r Range, ok bool) {
	if committed >= total {
		return Range{}, false
	}
	end := committed + chunkSize - 1
	if end > total-1 || end < committed {
		end = total - 1
	}
	return Range{Start: committed, End: end}, true
}

// SuggestedName picks the destination name: the explicit name, else the
// server's Content-Disposition filename, else the last path element of the
// URL, else "download".
func SuggestedName(name, serverName, rawURL string) string {
	if name != "" {
		return name
	}
	if serverName != "" {
		return serverName
	}
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && base != ".." && base != "" {
			return base
		}
	}
	return "download"
}
