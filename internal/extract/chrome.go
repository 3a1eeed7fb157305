package extract

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ChromeRule identifies one kind of non-content element by CSS selector.
// Rules are evaluated in order and the first match removes the element.
type ChromeRule struct {
	// Name identifies the rule in site configuration and logs.
	Name string

	// Selector is a CSS selector group, e.g. "nav, [role=navigation]".
	Selector string
}

// DefaultChromeRules covers MediaWiki skins (Vector, MonoBook, Timeless,
// Minerva) and the generic landmarks most other skins use.
var DefaultChromeRules = []ChromeRule{
	{Name: "scripts", Selector: "script, style, noscript, template, link, meta, iframe, object, embed"},
	{Name: "hidden", Selector: `[hidden], [aria-hidden="true"], [style*="display:none"], [style*="display: none"]`},
	{Name: "navigation", Selector: "nav, [role=navigation], #mw-navigation, #mw-panel, #mw-head, #p-navigation, .vector-header-container, .vector-main-menu-container, .mw-jump-link, #jump-to-nav, .breadcrumbs"},
	{Name: "sidebar", Selector: "aside, [role=complementary], #sidebar, .sidebar, #column-one, .vector-column-end, .mw-portlet"},
	{Name: "footer", Selector: "footer, [role=contentinfo], #footer, .printfooter, #catlinks, .catlinks"},
	{Name: "edit_links", Selector: ".mw-editsection, #siteSub, #contentSub, #contentSub2, .mw-indicators"},
	{Name: "toc", Selector: "#toc, .toc, .vector-toc, #mw-toc-heading"},
	{Name: "navboxes", Selector: ".navbox, .vertical-navbox, .metadata, .noprint, .mw-empty-elt, .ambox, .hatnote"},
	{Name: "citations", Selector: "sup.reference, .mw-cite-backlink"},
	{Name: "forms", Selector: "form, button, input, select, textarea"},
}

// compiledRule is a ChromeRule with its selector parsed.
type compiledRule struct {
	name    string
	matcher cascadia.Matcher
}

// compileRules parses every rule selector, skipping disabled names.
func compileRules(rules []ChromeRule, disabled map[string]bool) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if disabled[r.Name] {
			continue
		}
		group, err := cascadia.ParseGroup(r.Selector)
		if err != nil {
			return nil, fmt.Errorf("chrome rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{name: r.Name, matcher: group})
	}
	return compiled, nil
}

// stripChrome removes every element under root matched by a rule and
// returns the number of removals per rule name. root itself is never removed.
func stripChrome(root *html.Node, rules []compiledRule) map[string]int {
	removed := make(map[string]int)
	if len(rules) == 0 {
		return removed
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode {
				if name, ok := matchRule(c, rules); ok {
					n.RemoveChild(c)
					removed[name]++
					c = next
					continue
				}
				walk(c)
			} else if c.Type == html.CommentNode {
				n.RemoveChild(c)
			}
			c = next
		}
	}
	walk(root)
	return removed
}

func matchRule(n *html.Node, rules []compiledRule) (string, bool) {
	for _, r := range rules {
		if r.matcher.Match(n) {
			return r.name, true
		}
	}
	return "", false
}
