package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/markdave123-py/Inkwell/internal/models"
)

type run struct {
	text      string
	bold      bool
	italic    bool
	underline bool
	lineBreak bool
}

type paragraph struct {
	style           string // "", "Title", "Heading1".."Heading3"
	center          bool
	pageBreakBefore bool
	spaceBefore     int // twentieths of a point
	spaceAfter      int
	runs            []run
}

// DOCX renders a WordprocessingML package: a title page (title, genre,
// synopsis) followed by one Heading 1 per chapter, each chapter after the
// first starting on a new page.
func DOCX(project *models.Project, chapters []models.Chapter) ([]byte, error) {
	var body []paragraph

	body = append(body, paragraph{style: "Title", center: true, spaceAfter: 400, runs: []run{{text: project.Title}}})
	if project.Genre != "" {
		body = append(body, paragraph{center: true, spaceAfter: 200, runs: []run{{text: "Genre: " + project.Genre, italic: true}}})
	}
	if project.Description != "" {
		body = append(body,
			paragraph{style: "Heading2", spaceBefore: 400, spaceAfter: 200, runs: []run{{text: "Synopsis"}}},
			paragraph{spaceAfter: 400, runs: []run{{text: project.Description}}},
		)
	}
	body = append(body, paragraph{pageBreakBefore: true})

	for i, ch := range chapters {
		heading := paragraph{style: "Heading1", spaceAfter: 300, runs: []run{{text: ch.Title}}}
		if i > 0 {
			heading.spaceBefore = 400
			heading.pageBreakBefore = true
		}
		body = append(body, heading)
		body = append(body, markupParagraphs(ch.Content)...)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", corePropsXML(project.Title, time.Now().UTC())},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML(body)},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

// markupParagraphs maps chapter markup onto paragraphs. Recognised blocks are
// p, h1-h3 and li; b/strong, i/em and u toggle run formatting. Text outside
// any block forms its own paragraph.
func markupParagraphs(markup string) []paragraph {
	var (
		out                 []paragraph
		cur                 *paragraph
		bold, italic, under int
	)

	flush := func() {
		if cur != nil && hasText(cur.runs) {
			out = append(out, *cur)
		}
		cur = nil
	}
	open := func(style string) {
		flush()
		cur = &paragraph{style: style, spaceAfter: 200}
	}

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			text := string(z.Text())
			if cur == nil {
				if strings.TrimSpace(text) == "" {
					continue
				}
				open("")
			}
			cur.runs = append(cur.runs, run{text: text, bold: bold > 0, italic: italic > 0, underline: under > 0})
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "h4", "h5", "h6":
				open("")
			case "h1":
				open("Heading1")
			case "h2":
				open("Heading2")
			case "h3":
				open("Heading3")
			case "li":
				open("")
				cur.runs = append(cur.runs, run{text: "• "})
			case "b", "strong":
				bold++
			case "i", "em":
				italic++
			case "u":
				under++
			case "br":
				if cur != nil {
					cur.runs = append(cur.runs, run{lineBreak: true})
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li":
				flush()
			case "b", "strong":
				bold = max(bold-1, 0)
			case "i", "em":
				italic = max(italic-1, 0)
			case "u":
				under = max(under-1, 0)
			}
		}
	}
	flush()

	if len(out) == 0 {
		return []paragraph{{}}
	}
	return out
}

func hasText(runs []run) bool {
	for _, r := range runs {
		if strings.TrimSpace(r.text) != "" && r.text != "• " {
			return true
		}
	}
	return false
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

func documentXML(body []paragraph) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range body {
		sb.WriteString("<w:p>")
		if p.style != "" || p.center || p.pageBreakBefore || p.spaceBefore > 0 || p.spaceAfter > 0 {
			sb.WriteString("<w:pPr>")
			if p.style != "" {
				fmt.Fprintf(&sb, `<w:pStyle w:val="%s"/>`, p.style)
			}
			if p.pageBreakBefore {
				sb.WriteString("<w:pageBreakBefore/>")
			}
			if p.spaceBefore > 0 || p.spaceAfter > 0 {
				fmt.Fprintf(&sb, `<w:spacing w:before="%d" w:after="%d"/>`, p.spaceBefore, p.spaceAfter)
			}
			if p.center {
				sb.WriteString(`<w:jc w:val="center"/>`)
			}
			sb.WriteString("</w:pPr>")
		}
		for _, r := range p.runs {
			sb.WriteString("<w:r>")
			if r.bold || r.italic || r.underline {
				sb.WriteString("<w:rPr>")
				if r.bold {
					sb.WriteString("<w:b/>")
				}
				if r.italic {
					sb.WriteString("<w:i/>")
				}
				if r.underline {
					sb.WriteString(`<w:u w:val="single"/>`)
				}
				sb.WriteString("</w:rPr>")
			}
			if r.lineBreak {
				sb.WriteString("<w:br/>")
			} else {
				sb.WriteString(`<w:t xml:space="preserve">`)
				sb.WriteString(escape(r.text))
				sb.WriteString("</w:t>")
			}
			sb.WriteString("</w:r>")
		}
		sb.WriteString("</w:p>")
	}
	sb.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`)
	sb.WriteString("</w:body></w:document>")
	return sb.String()
}

func corePropsXML(title string, created time.Time) string {
	return xml.Header +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escape(title) + `</dc:title>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created.Format(time.RFC3339) + `</dcterms:created>` +
		`</cp:coreProperties>`
}

const contentTypesXML = xml.Header +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header +
	`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="24"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="30"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`</w:styles>`
