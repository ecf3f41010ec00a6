package classify

import (
	"net/url"
	"strings"
)

// MiscSub is the sub-label used for files that sit directly under the host.
const MiscSub = "misc"

// URLFolders derives a key from the folder structure of an asset URL:
// every path segment except the last two forms the label (joined by "/"),
// and the second-to-last segment (the file's folder) is the sub-label.
//
//	https://cdn.example.com/math/ch3/vid1.mp4     -> {math, ch3}
//	https://cdn.example.com/a/b/c/q.mp4           -> {a/b, c}
//	https://cdn.example.com/vid.mp4               -> {"", misc}
//
// Empty strings, unparseable URLs and URLs without scheme or host are
// malformed.
func URLFolders(raw string) (Key, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Key{}, Malformed("empty url")
	}
	u, err := url.Parse(s)
	if err != nil {
		return Key{}, Malformed("invalid url %q: %v", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Key{}, Malformed("invalid url format %q", s)
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Key{}, Malformed("url %q has no object path", s)
	}
	if len(parts) < 2 {
		return Key{Sub: MiscSub}, nil
	}

	folders := parts[:len(parts)-1]
	return Key{
		Label: strings.Join(folders[:len(folders)-1], "/"),
		Sub:   folders[len(folders)-1],
	}, nil
}

// URLFoldersRule is the structural rule used by URL segregation.
func URLFoldersRule() Rule { return Structural("url_folders", URLFolders) }
