package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	DefaultFetchTimeout  = 5 * time.Second
	DefaultFetchMaxBytes = 100 << 10
	maxRedirects         = 3
	maxExcerptRunes      = 1500
)

// ErrBlockedAddress is returned when a fetch would connect to a loopback,
// private, link-local or unspecified address.
var ErrBlockedAddress = errors.New("address not allowed")

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
}

// Fetcher reads a brand website and reduces it to a short summary. Without
// an explicit Client every connection, redirects included, is checked
// against ErrBlockedAddress after DNS resolution.
type Fetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64

	guard func(address string) error
}

// PageSummary is the part of a web page useful as pitch context.
type PageSummary struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{Timeout: timeout, MaxBytes: maxBytes}
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	guard := f.guard
	if guard == nil {
		guard = checkDialAddress
	}
	dialer := &net.Dialer{
		Timeout: DefaultFetchTimeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			return guard(address)
		},
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

func checkDialAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	for _, p := range blockedPrefixes {
		if p.Contains(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
		}
	}
	return nil
}

// Fetch retrieves rawURL within the configured timeout. A scheme-less URL is
// treated as https.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (PageSummary, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return PageSummary{}, err
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultFetchMaxBytes
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return PageSummary{}, err
	}
	req.Header.Set("User-Agent", "creatordesk/1.0 (+pitch research)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	resp, err := f.client().Do(req)
	if err != nil {
		return PageSummary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PageSummary{}, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return PageSummary{}, fmt.Errorf("fetch %s: unsupported content type %q", target, ct)
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, limit))
	if err != nil {
		return PageSummary{}, fmt.Errorf("parse %s: %w", target, err)
	}
	sum := PageSummary{URL: target}
	var text strings.Builder
	walk(doc, &sum, &text)
	sum.Title = collapse(sum.Title)
	sum.Description = collapse(sum.Description)
	sum.Excerpt = truncateRunes(collapse(text.String()), maxExcerptRunes)
	return sum, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	return u.String(), nil
}

func walk(n *html.Node, sum *PageSummary, text *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "svg", "iframe", "template":
			return
		case "title":
			if sum.Title == "" && n.FirstChild != nil {
				sum.Title = n.FirstChild.Data
			}
			return
		case "meta":
			name := strings.ToLower(attr(n, "name"))
			if name == "" {
				name = strings.ToLower(attr(n, "property"))
			}
			if (name == "description" || name == "og:description") && sum.Description == "" {
				sum.Description = attr(n, "content")
			}
			return
		}
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			text.WriteString(t)
			text.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sum, text)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
