package proxy

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	masterStreamTag   = "#EXT-X-STREAM-INF"
	playlistExtension = ".m3u8"
)

var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"`)

// lineKind classifies a playlist line for the rewrite pass.
type lineKind int

const (
	lineReference lineKind = iota // segment or nested-playlist URL
	lineTagWithURI                // tag carrying a URI="…" attribute
	lineTag                       // any other tag
)

func classifyLine(line string) lineKind {
	if !strings.HasPrefix(line, "#") {
		return lineReference
	}
	if uriAttrPattern.MatchString(line) {
		return lineTagWithURI
	}
	return lineTag
}

// rewriteContext carries everything needed to resolve one playlist's
// references. isMaster flips permanently once a stream-inf tag is seen and
// stays set for the remainder of the pass.
type rewriteContext struct {
	origin    string // scheme://host of the playlist URL
	baseDir   string // path up to and including the last '/'
	query     string // raw query of the playlist URL, propagated to bare refs
	proxyBase string // caller's own proxy endpoint for recursive rewrites
	isMaster  bool
}

func newRewriteContext(playlistURL *url.URL, proxyBase string) *rewriteContext {
	dir := playlistURL.Path
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		dir = dir[:idx+1]
	} else {
		dir = "/"
	}
	return &rewriteContext{
		origin:    playlistURL.Scheme + "://" + playlistURL.Host,
		baseDir:   dir,
		query:     playlistURL.RawQuery,
		proxyBase: proxyBase,
	}
}

// RewritePlaylist rewrites every reference in body to an absolute URL, and
// nested playlists of a master to self-referencing proxy URLs so one proxy
// endpoint can serve the whole variant tree.
func RewritePlaylist(body string, playlistURL *url.URL, proxyBase string) string {
	ctx := newRewriteContext(playlistURL, proxyBase)

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, line)
			continue
		}

		if strings.HasPrefix(trimmed, masterStreamTag) {
			ctx.isMaster = true
		}

		switch classifyLine(trimmed) {
		case lineTagWithURI:
			out = append(out, uriAttrPattern.ReplaceAllStringFunc(trimmed, func(attr string) string {
				value := attr[len(`URI="`) : len(attr)-1]
				return `URI="` + ctx.resolve(value) + `"`
			}))
		case lineTag:
			out = append(out, trimmed)
		case lineReference:
			out = append(out, ctx.resolve(trimmed))
		}
	}

	return strings.Join(out, "\n")
}

// resolve applies the resolution rule to one reference: absolute URLs pass
// through, root-relative paths gain the origin, bare paths gain the base
// directory. A reference without its own query string inherits the
// playlist's, since providers gate segment access on the same token. In a
// master playlist, resolved nested playlists are wrapped in a proxy URL.
func (c *rewriteContext) resolve(ref string) string {
	quoted := len(ref) >= 2 && strings.HasPrefix(ref, `"`) && strings.HasSuffix(ref, `"`)
	if quoted {
		ref = ref[1 : len(ref)-1]
	}

	var abs string
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		abs = ref
	case strings.HasPrefix(ref, "/"):
		abs = c.origin + ref
	default:
		abs = c.origin + c.baseDir + ref
	}

	if c.query != "" && !strings.Contains(abs, "?") {
		abs += "?" + c.query
	}

	if c.isMaster && isPlaylistReference(abs) && c.proxyBase != "" {
		abs = c.proxyBase + "?url=" + url.QueryEscape(abs)
	}

	if quoted {
		abs = `"` + abs + `"`
	}
	return abs
}

// isPlaylistReference reports whether the URL's path (ignoring any query
// string) names another playlist.
func isPlaylistReference(u string) bool {
	if idx := strings.Index(u, "?"); idx >= 0 {
		u = u[:idx]
	}
	return strings.HasSuffix(u, playlistExtension)
}
