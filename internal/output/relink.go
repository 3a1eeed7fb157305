package output

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/wikiexport/internal/model"
)

// Relink rewrites links in written pages whose targets were written later
// in the run, replacing the absolute URL with the local filename. Each page
// is rewritten atomically. It returns the number of files changed and stops
// early with ctx's error when ctx is done.
//
// Manifest lines are not touched; their sha256 describes the body as it was
// first written.
func (w *Writer) Relink(ctx context.Context) (int, error) {
	changed := 0
	var remaining []string
	for _, filename := range w.order {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		pending := w.pending[filename]
		var links []linkRewrite
		var unresolved []string
		for _, target := range pending {
			if name, ok := w.Resolve(target); ok {
				links = append(links, newLinkRewrite(target, url.PathEscape(name)))
			} else {
				unresolved = append(unresolved, target)
			}
		}
		if len(unresolved) > 0 {
			w.pending[filename] = unresolved
			remaining = append(remaining, filename)
		} else {
			delete(w.pending, filename)
		}
		if len(links) == 0 {
			continue
		}

		path := filepath.Join(w.pagesDir, filename)
		data, err := os.ReadFile(path) //nolint:gosec // path is inside the export directory
		if err != nil {
			return changed, &model.IOError{Op: "read", Path: path, Err: err}
		}
		rewritten := relinkPage(string(data), links)
		if rewritten == string(data) {
			continue
		}
		if err := writeFileAtomic(path, []byte(rewritten)); err != nil {
			return changed, err
		}
		changed++
		w.logger.Debug("relinked page", "file", filename, "links", len(links))
	}
	w.order = remaining
	return changed, nil
}

// linkRewrite points Markdown links at target to dest instead.
type linkRewrite struct {
	pattern *regexp.Regexp
	target  string
	dest    string
}

// newLinkRewrite matches an inline link "[label](target)". The label may
// hold escaped characters but no unescaped brackets, and a match that
// starts with an escaped bracket is literal text.
func newLinkRewrite(target, dest string) linkRewrite {
	return linkRewrite{
		pattern: regexp.MustCompile(`\\?\[(?:[^\[\]\\]|\\.)*\]\(` + regexp.QuoteMeta(target) + `\)`),
		target:  target,
		dest:    dest,
	}
}

// relinkPage applies links to the page body. Front matter is left as is.
func relinkPage(content string, links []linkRewrite) string {
	header, body := splitFrontMatter(content)
	for _, l := range links {
		body = l.pattern.ReplaceAllStringFunc(body, func(m string) string {
			if strings.HasPrefix(m, `\`) {
				return m
			}
			label := m[:len(m)-len("]("+l.target+")")]
			return label + "](" + l.dest + ")"
		})
	}
	return header + body
}

// splitFrontMatter splits a page file into its YAML header, delimiters
// included, and the rest.
func splitFrontMatter(content string) (string, string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	end := strings.Index(content[len("---\n"):], "\n---\n")
	if end < 0 {
		return "", content
	}
	cut := len("---\n") + end + len("\n---\n")
	return content[:cut], content[cut:]
}
