// Package htmldoc extracts subordinate resource URLs from HTML documents:
// links, images, frames, and the "associated files" (images, frames,
// stylesheets, scripts) a browser would fetch alongside a page.
package htmldoc

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Document is a parsed HTML page.
type Document struct {
	// URL is the address the document was retrieved from.
	URL string

	baseURL          string // directory base for relative references, with trailing slash
	protocolHostPort string // scheme://host[:port], no path

	associatedFiles *orderedSet
	links           *orderedSet
	images          *orderedSet
	frames          *orderedSet

	text strings.Builder
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}}
}

func (s *orderedSet) add(item string) {
	if _, dup := s.seen[item]; dup {
		return
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}

func (s *orderedSet) slice() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Parse tokenizes the provided HTML data and collects resource URLs and
// plain text. documentURL anchors relative references.
func Parse(documentURL, htmlData string) (*Document, error) {
	u, err := url.Parse(documentURL)
	if err != nil {
		return nil, err
	}

	d := &Document{
		URL:             documentURL,
		associatedFiles: newOrderedSet(),
		links:           newOrderedSet(),
		images:          newOrderedSet(),
		frames:          newOrderedSet(),
	}
	d.computeBase(u)

	tokenizer := html.NewTokenizer(strings.NewReader(htmlData))
	skipText := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// The tokenizer reports io.EOF at end of input; anything it can
			// recover from it already has.
			return d, nil

		case html.TextToken:
			if skipText > 0 {
				continue
			}
			d.appendText(string(tokenizer.Text()))

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			d.handleTag(token)
			if token.Type == html.StartTagToken &&
				(token.Data == "script" || token.Data == "style") {
				skipText++
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "script" || token.Data == "style" {
				if skipText > 0 {
					skipText--
				}
			}
		}
	}
}

func (d *Document) computeBase(u *url.URL) {
	if u.Port() != "" {
		d.protocolHostPort = u.Scheme + "://" + u.Hostname() + ":" + u.Port()
	} else {
		d.protocolHostPort = u.Scheme + "://" + u.Hostname()
	}

	path := u.Path
	switch {
	case path == "" || path == "/":
		d.baseURL = d.protocolHostPort + "/"
	case strings.HasSuffix(path, "/"):
		d.baseURL = d.protocolHostPort + path
	default:
		dir := path[:strings.LastIndexByte(path, '/')+1]
		if dir == "" {
			dir = "/"
		}
		d.baseURL = d.protocolHostPort + dir
	}
}

func (d *Document) handleTag(token html.Token) {
	attr := func(name string) (string, bool) {
		for _, a := range token.Attr {
			if strings.EqualFold(a.Key, name) {
				return a.Val, true
			}
		}
		return "", false
	}

	switch token.Data {
	case "a", "area":
		if href, ok := attr("href"); ok {
			if resolved := d.resolve(href); resolved != "" {
				d.links.add(resolved)
			}
		}

	case "base":
		if href, ok := attr("href"); ok && href != "" {
			if !strings.HasSuffix(href, "/") {
				if slash := strings.LastIndexByte(href, '/'); slash > 0 {
					href = href[:slash+1]
				} else {
					href += "/"
				}
			}
			d.baseURL = href
		}

	case "frame", "iframe", "input":
		if src, ok := attr("src"); ok {
			if resolved := d.resolve(src); resolved != "" {
				d.frames.add(resolved)
				d.associatedFiles.add(resolved)
			}
		}

	case "img":
		if src, ok := attr("src"); ok {
			if resolved := d.resolve(src); resolved != "" {
				d.images.add(resolved)
				d.associatedFiles.add(resolved)
			}
		}

	case "link":
		href, ok := attr("href")
		if !ok {
			return
		}
		resolved := d.resolve(href)
		if resolved == "" {
			return
		}
		if rel, _ := attr("rel"); strings.EqualFold(rel, "stylesheet") {
			d.associatedFiles.add(resolved)
		} else {
			d.links.add(resolved)
		}

	case "script":
		if src, ok := attr("src"); ok {
			if resolved := d.resolve(src); resolved != "" {
				d.associatedFiles.add(resolved)
			}
		}
	}
}

// resolve converts an href/src reference to an absolute URL. References
// with non-http schemes are discarded.
func (d *Document) resolve(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ""
	}
	if strings.Contains(uri, "://") {
		if strings.HasPrefix(strings.ToLower(uri), "http") {
			return uri
		}
		return ""
	}
	if strings.HasPrefix(uri, "/") {
		return d.protocolHostPort + uri
	}
	return d.baseURL + uri
}

func (d *Document) appendText(segment string) {
	fields := strings.Fields(segment)
	if len(fields) == 0 {
		return
	}
	if d.text.Len() > 0 {
		d.text.WriteByte(' ')
	}
	d.text.WriteString(strings.Join(fields, " "))
}

// AssociatedFiles returns the URLs a browser would retrieve alongside the
// page: images, frames, stylesheets, and external scripts.
func (d *Document) AssociatedFiles() []string {
	return d.associatedFiles.slice()
}

// Links returns the anchor and non-stylesheet link URLs in the document.
func (d *Document) Links() []string {
	return d.links.slice()
}

// Images returns the image URLs in the document.
func (d *Document) Images() []string {
	return d.images.slice()
}

// Frames returns the frame and iframe URLs in the document.
func (d *Document) Frames() []string {
	return d.frames.slice()
}

// Text returns the document contents with tags removed and whitespace
// collapsed.
func (d *Document) Text() string {
	return d.text.String()
}
