package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nao1215/markdown"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// lineBreak marks a <br> inside inline text until the paragraph is cleaned.
const lineBreak = "\x00br\x00"

var (
	spaceRun        = regexp.MustCompile(`[ \t\r\n\f]+`)
	orderedLineHead = regexp.MustCompile(`^(\d+)([.)]) `)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	langClass       = regexp.MustCompile(`(?:^|\s)(?:lang|language|mw-highlight-lang)-([A-Za-z0-9_+#-]+)`)
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
)

// inlineElements are rendered as part of the surrounding paragraph.
var inlineElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Bdi: true, atom.Bdo: true,
	atom.Big: true, atom.Br: true, atom.Cite: true, atom.Code: true, atom.Data: true,
	atom.Del: true, atom.Dfn: true, atom.Em: true, atom.Font: true, atom.I: true,
	atom.Img: true, atom.Ins: true, atom.Kbd: true, atom.Label: true, atom.Mark: true,
	atom.Q: true, atom.S: true, atom.Samp: true, atom.Small: true, atom.Span: true,
	atom.Strike: true, atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Time: true,
	atom.Tt: true, atom.U: true, atom.Var: true,
}

// converter renders an HTML subtree as Markdown blocks.
type converter struct {
	md    *markdown.Markdown
	links *linkSet
	para  strings.Builder
}

func newConverter(links *linkSet) *converter {
	return &converter{
		md:    markdown.NewMarkdown(io.Discard),
		links: links,
	}
}

// convert renders root and returns the Markdown body without a trailing newline.
func (c *converter) convert(root *html.Node) (string, error) {
	c.blocks(root)
	if err := c.md.Error(); err != nil {
		return "", err
	}
	out := blankLines.ReplaceAllString(c.md.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

// emit appends a block followed by a blank line.
func (c *converter) emit(add func(md *markdown.Markdown)) {
	add(c.md)
	c.md.PlainText("")
}

// flush emits the pending inline text as a paragraph.
func (c *converter) flush() {
	text := cleanInline(c.para.String())
	c.para.Reset()
	if text == "" {
		return
	}
	c.emit(func(md *markdown.Markdown) { md.PlainText(escapeLineStart(text)) })
}

func (c *converter) blocks(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if isInline(child) {
			c.para.WriteString(c.inline(child))
			continue
		}
		if child.Type != html.ElementNode {
			continue
		}
		c.flush()
		c.block(child)
	}
	c.flush()
}

func (c *converter) block(n *html.Node) {
	switch n.DataAtom {
	case atom.H1, atom.H2:
		c.heading(n, (*markdown.Markdown).H2)
	case atom.H3:
		c.heading(n, (*markdown.Markdown).H3)
	case atom.H4:
		c.heading(n, (*markdown.Markdown).H4)
	case atom.H5:
		c.heading(n, (*markdown.Markdown).H5)
	case atom.H6:
		c.heading(n, (*markdown.Markdown).H6)
	case atom.P:
		c.para.WriteString(c.inlineChildren(n))
		c.flush()
	case atom.Ul, atom.Ol:
		c.list(n)
	case atom.Dl:
		c.definitionList(n)
	case atom.Table:
		c.table(n)
	case atom.Blockquote:
		c.blockquote(n)
	case atom.Pre:
		c.pre(n)
	case atom.Hr:
		c.emit(func(md *markdown.Markdown) { md.HorizontalRule() })
	default:
		c.blocks(n)
	}
}

func (c *converter) heading(n *html.Node, add func(*markdown.Markdown, string) *markdown.Markdown) {
	text := cleanInline(c.inlineChildren(n))
	text = strings.ReplaceAll(text, "  \n", " ")
	if text == "" {
		return
	}
	c.emit(func(md *markdown.Markdown) { add(md, text) })
}

// list renders ul/ol. Flat lists go through the builder; nested lists are
// indented under their parent item.
func (c *converter) list(n *html.Node) {
	if !hasNestedList(n) {
		items := c.listItems(n)
		if len(items) == 0 {
			return
		}
		c.emit(func(md *markdown.Markdown) {
			if n.DataAtom == atom.Ol {
				md.OrderedList(items...)
			} else {
				md.BulletList(items...)
			}
		})
		return
	}

	lines := c.nestedList(n, "")
	if len(lines) == 0 {
		return
	}
	c.emit(func(md *markdown.Markdown) { md.PlainText(strings.Join(lines, "\n")) })
}

func hasNestedList(list *html.Node) bool {
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		for child := li.FirstChild; child != nil; child = child.NextSibling {
			if child.DataAtom == atom.Ul || child.DataAtom == atom.Ol {
				return true
			}
		}
	}
	return false
}

func (c *converter) listItems(n *html.Node) []string {
	var items []string
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.DataAtom != atom.Li {
			continue
		}
		text := strings.ReplaceAll(cleanInline(c.inlineChildren(li)), "  \n", " ")
		if text != "" {
			items = append(items, text)
		}
	}
	return items
}

func (c *converter) nestedList(n *html.Node, indent string) []string {
	var lines []string
	number := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.DataAtom != atom.Li {
			continue
		}
		number++
		marker := "-"
		if n.DataAtom == atom.Ol {
			marker = fmt.Sprintf("%d.", number)
		}

		var text strings.Builder
		var sublists []*html.Node
		for child := li.FirstChild; child != nil; child = child.NextSibling {
			if child.DataAtom == atom.Ul || child.DataAtom == atom.Ol {
				sublists = append(sublists, child)
				continue
			}
			text.WriteString(c.inline(child))
		}
		item := strings.ReplaceAll(cleanInline(text.String()), "  \n", " ")
		if item == "" && len(sublists) == 0 {
			continue
		}
		lines = append(lines, strings.TrimRight(indent+marker+" "+item, " "))
		childIndent := indent + strings.Repeat(" ", len(marker)+1)
		for _, sub := range sublists {
			lines = append(lines, c.nestedList(sub, childIndent)...)
		}
	}
	return lines
}

func (c *converter) definitionList(n *html.Node) {
	var lines []string
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		text := strings.ReplaceAll(cleanInline(c.inlineChildren(child)), "  \n", " ")
		if text == "" {
			continue
		}
		switch child.DataAtom {
		case atom.Dt:
			lines = append(lines, markdown.Bold(text))
		case atom.Dd:
			lines = append(lines, ": "+text)
		}
	}
	if len(lines) == 0 {
		return
	}
	c.emit(func(md *markdown.Markdown) { md.PlainText(strings.Join(lines, "  \n")) })
}

// table renders a table with its first row as the header. Rows are padded
// to the widest row.
func (c *converter) table(n *html.Node) {
	var caption string
	var rows [][]string
	width := 0

	var collect func(*html.Node)
	collect = func(parent *html.Node) {
		for child := parent.FirstChild; child != nil; child = child.NextSibling {
			switch child.DataAtom {
			case atom.Caption:
				caption = cleanInline(c.inlineChildren(child))
			case atom.Thead, atom.Tbody, atom.Tfoot:
				collect(child)
			case atom.Tr:
				row := c.tableRow(child)
				if len(row) == 0 {
					continue
				}
				width = max(width, len(row))
				rows = append(rows, row)
			}
		}
	}
	collect(n)

	if caption != "" {
		c.emit(func(md *markdown.Markdown) { md.PlainText(markdown.Bold(caption)) })
	}
	if len(rows) == 0 {
		return
	}
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	c.emit(func(md *markdown.Markdown) {
		md.Table(markdown.TableSet{Header: rows[0], Rows: rows[1:]})
	})
}

func (c *converter) tableRow(tr *html.Node) []string {
	var row []string
	for cell := tr.FirstChild; cell != nil; cell = cell.NextSibling {
		if cell.DataAtom != atom.Td && cell.DataAtom != atom.Th {
			continue
		}
		text := cleanInline(c.inlineChildren(cell))
		text = strings.ReplaceAll(text, "  \n", " ")
		row = append(row, strings.ReplaceAll(text, "|", `\|`))
	}
	return row
}

func (c *converter) blockquote(n *html.Node) {
	sub := newConverter(c.links)
	text, err := sub.convert(n)
	if err != nil || text == "" {
		return
	}
	c.emit(func(md *markdown.Markdown) { md.Blockquote(text) })
}

func (c *converter) pre(n *html.Node) {
	text := strings.Trim(textContent(n), "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	lang := codeLanguage(n)
	c.emit(func(md *markdown.Markdown) { md.CodeBlocks(markdown.SyntaxHighlight(lang), text) })
}

// codeLanguage reads the language from the class of the pre, its code
// child, or the MediaWiki highlight wrapper.
func codeLanguage(pre *html.Node) string {
	nodes := []*html.Node{pre, pre.Parent}
	if code := pre.FirstChild; code != nil && code.DataAtom == atom.Code {
		nodes = append(nodes, code)
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if m := langClass.FindStringSubmatch(attr(n, "class")); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}

func (c *converter) inlineChildren(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(c.inline(child))
	}
	return b.String()
}

func (c *converter) inline(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return markdownEscaper.Replace(spaceRun.ReplaceAllString(n.Data, " "))
	case html.ElementNode:
	default:
		return ""
	}

	switch n.DataAtom {
	case atom.Br:
		return lineBreak
	case atom.Strong, atom.B:
		return wrapInline(c.inlineChildren(n), markdown.Bold)
	case atom.Em, atom.I, atom.Cite, atom.Dfn, atom.Var:
		return wrapInline(c.inlineChildren(n), markdown.Italic)
	case atom.Del, atom.S, atom.Strike:
		return wrapInline(c.inlineChildren(n), markdown.Strikethrough)
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		text := collapseSpace(textContent(n))
		if text == "" {
			return ""
		}
		return markdown.Code(text)
	case atom.A:
		return c.anchor(n)
	case atom.Img:
		return c.image(n)
	case atom.Ul, atom.Ol, atom.Table, atom.Pre, atom.P, atom.Div, atom.Li, atom.Dd, atom.Dt:
		// Block content inside an inline context (a list item or table cell).
		return " " + c.inlineChildren(n) + " "
	default:
		return c.inlineChildren(n)
	}
}

func (c *converter) anchor(n *html.Node) string {
	text := c.inlineChildren(n)
	href, ok := attrOK(n, "href")
	if !ok || c.links == nil {
		return text
	}
	dest := c.links.destination(href)
	if dest == "" {
		return text
	}
	label := cleanInline(text)
	label = strings.ReplaceAll(label, "  \n", " ")
	if label == "" {
		label = markdownEscaper.Replace(dest)
	}
	return markdown.Link(label, dest)
}

func (c *converter) image(n *html.Node) string {
	src := attr(n, "src")
	if src == "" || c.links == nil {
		return ""
	}
	dest := c.links.resolve(src)
	if dest == "" {
		return ""
	}
	alt := collapseSpace(attr(n, "alt"))
	return markdown.Image(markdownEscaper.Replace(alt), dest)
}

// wrapInline applies a span style while keeping surrounding spaces
// outside the markers, so "<b> x </b>" becomes " **x** ".
func wrapInline(text string, style func(string) string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	lead := ""
	if strings.HasPrefix(text, " ") {
		lead = " "
	}
	trail := ""
	if strings.HasSuffix(text, " ") {
		trail = " "
	}
	return lead + style(trimmed) + trail
}

// cleanInline collapses whitespace and turns line break markers into
// Markdown hard breaks.
func cleanInline(s string) string {
	parts := strings.Split(s, lineBreak)
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(spaceRun.ReplaceAllString(p, " "))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "  \n")
}

// escapeLineStart escapes text that would otherwise open a heading, quote,
// list or rule at the start of a paragraph.
func escapeLineStart(s string) string {
	switch {
	case strings.HasPrefix(s, "#"), strings.HasPrefix(s, ">"):
		return `\` + s
	case strings.HasPrefix(s, "- "), strings.HasPrefix(s, "+ "), strings.HasPrefix(s, "---"):
		return `\` + s
	}
	if m := orderedLineHead.FindStringSubmatchIndex(s); m != nil {
		return s[:m[3]] + `\` + s[m[3]:]
	}
	return s
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		return inlineElements[n.DataAtom]
	default:
		return false
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
