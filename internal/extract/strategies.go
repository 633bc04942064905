// internal/extract/strategies.go
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
)

// mediaRef is the payload returned by the in-page probe scripts.
type mediaRef struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// probeExpr builds the JS that inspects an output element and classifies
// its delivery mechanism. kinds: "data" (self-contained data URL or canvas),
// "blob" (session-scoped object URL), "url" (fetchable address).
func probeExpr(selector string) string {
	quoted := jsQuote(selector)
	return fmt.Sprintf(`(function(q) {
		const el = document.querySelector(q);
		if (!el) return null;
		const media = el.matches('img, video, audio, source') ? el : el.querySelector('img, video, audio, source');
		if (media) {
			const src = media.currentSrc || media.src || '';
			if (src.startsWith('data:')) return { kind: 'data', value: src };
			if (src.startsWith('blob:')) return { kind: 'blob', value: src };
			if (src) return { kind: 'url', value: src };
		}
		const canvas = el.matches('canvas') ? el : el.querySelector('canvas');
		if (canvas && canvas.width > 0 && canvas.height > 0) {
			try { return { kind: 'data', value: canvas.toDataURL('image/png') }; } catch (e) { return null; }
		}
		return null;
	})(%s)`, quoted)
}

func jsQuote(s string) string {
	b := new(strings.Builder)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// embeddedStrategy handles self-contained data: payloads already present on
// the output element. Zero extra interaction, so it runs first.
type embeddedStrategy struct{}

func (*embeddedStrategy) Name() string { return "embedded" }

func (st *embeddedStrategy) Extract(ctx context.Context, pg browser.Page, selector string, _ *url.URL) (*schemas.Artifact, bool, error) {
	var ref mediaRef
	if err := pg.Eval(ctx, probeExpr(selector), &ref); err != nil {
		return nil, false, err
	}
	if ref.Kind != "data" {
		return nil, false, nil
	}
	art, err := decodeDataURL(ref.Value)
	if err != nil {
		return nil, true, err
	}
	return art, true, nil
}

// decodeDataURL splits data:<mime>[;base64],<payload> into bytes.
func decodeDataURL(raw string) (*schemas.Artifact, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	contentType := "application/octet-stream"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		if i == 0 && part != "" {
			contentType = part
		} else if part == "base64" {
			isBase64 = true
		}
	}
	var data []byte
	var err error
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var decoded string
		decoded, err = url.PathUnescape(payload)
		data = []byte(decoded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data URL carries no payload")
	}
	return &schemas.Artifact{Bytes: data, ContentType: contentType}, nil
}

// blobStrategy fetches blob: object URLs. These are scoped to the page's
// session, so the fetch must run inside the browser context; an independent
// connection would get nothing.
type blobStrategy struct{}

func (*blobStrategy) Name() string { return "blob" }

func (st *blobStrategy) Extract(ctx context.Context, pg browser.Page, selector string, _ *url.URL) (*schemas.Artifact, bool, error) {
	var ref mediaRef
	if err := pg.Eval(ctx, probeExpr(selector), &ref); err != nil {
		return nil, false, err
	}
	if ref.Kind != "blob" {
		return nil, false, nil
	}
	data, err := pg.FetchData(ctx, ref.Value)
	if err != nil {
		return nil, true, err
	}
	return &schemas.Artifact{Bytes: data, ContentType: http.DetectContentType(data)}, true, nil
}

// linkStrategy follows a plain src/href on or inside the output element.
// The element's raw HTML is parsed so relative references resolve against
// the provider URL; the fetch still runs through the page to keep any
// session cookies attached.
type linkStrategy struct{}

func (*linkStrategy) Name() string { return "link" }

func (st *linkStrategy) Extract(ctx context.Context, pg browser.Page, selector string, base *url.URL) (*schemas.Artifact, bool, error) {
	present, err := pg.Exists(ctx, selector)
	if err != nil || !present {
		return nil, false, err
	}
	markup, err := pg.OuterHTML(ctx, selector)
	if err != nil {
		return nil, false, err
	}
	ref := firstResourceRef(markup)
	if ref == "" {
		return nil, false, nil
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return nil, true, fmt.Errorf("unresolvable resource reference %q: %w", ref, err)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false, nil
	}
	data, err := pg.FetchData(ctx, resolved.String())
	if err != nil {
		return nil, true, err
	}
	return &schemas.Artifact{Bytes: data, ContentType: http.DetectContentType(data)}, true, nil
}

// firstResourceRef walks an HTML fragment and returns the first src or href
// attribute value, skipping data: and blob: references (those belong to the
// earlier strategies).
func firstResourceRef(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var walk func(n *html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "src" && attr.Key != "href" {
					continue
				}
				val := strings.TrimSpace(attr.Val)
				if val == "" || strings.HasPrefix(val, "data:") || strings.HasPrefix(val, "blob:") || strings.HasPrefix(val, "javascript:") {
					continue
				}
				return val
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if ref := walk(c); ref != "" {
				return ref
			}
		}
		return ""
	}
	return walk(doc)
}
