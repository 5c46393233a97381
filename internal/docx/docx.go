// Package docx parses and reconstructs Microsoft Word (.docx) documents for
// the translation pipeline: paragraph and table-cell extraction in document
// order, tracked-change-aware text extraction, and export of translated text
// back into the original formatting.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Errors surfaced by the codec. CorruptXML and InvalidDocx are import-time
// failures; anything else from the filesystem or zip reader is returned
// wrapped with the file or entry name.
var (
	ErrInvalidDocx = errors.New("docx: not a valid DOCX container")
	ErrCorruptXML  = errors.New("docx: malformed document.xml")
)

// TextMode selects which tracked-change branch of a run to keep.
type TextMode int

const (
	// Original keeps w:del/w:delText content and drops w:ins content.
	Original TextMode = iota
	// Final keeps w:ins content and drops w:del/w:delText content.
	Final
)

// TableInfo locates a paragraph that is really a table cell.
type TableInfo struct {
	TableIndex int
	RowIndex   int
	CellIndex  int
}

// ParagraphInfo is one unit of extracted document content, in document
// order (paragraphs and table cells interleaved as they appear in the XML).
type ParagraphInfo struct {
	ParagraphID      int
	Text             string
	Style            string
	DocumentPosition int
	IsTableCell      bool
	Table            *TableInfo
}

// Document is the parsed, in-memory representation of one DOCX import,
// alive for the lifetime of a load-export round trip.
type Document struct {
	Paragraphs []ParagraphInfo
	body       *wBody
	zipFile    map[string][]byte // every zip entry, verbatim, for re-zipping on export
}

// Load parses a .docx file at path, extracting paragraphs and table cells
// in document order with tracked-change-aware text (Final mode, the normal
// "what the document currently reads" view).
func Load(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("docx: open %s: %w", path, err)
	}
	defer zr.Close()
	return load(&zr.Reader)
}

// LoadFromBytes parses a .docx already held in memory (e.g. loaded by a
// caller-owned file picker, out of this codec's scope).
func LoadFromBytes(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocx, err)
	}
	return load(zr)
}

func load(zr *zip.Reader) (*Document, error) {
	entries := make(map[string][]byte, len(zr.File))
	var docXML []byte
	found := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("docx: read entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("docx: read entry %s: %w", f.Name, err)
		}
		entries[f.Name] = data
		if f.Name == "word/document.xml" {
			docXML = data
			found = true
		}
	}
	if !found {
		return nil, ErrInvalidDocx
	}

	var doc wDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptXML, err)
	}

	d := &Document{
		body:    &doc.Body,
		zipFile: entries,
	}
	d.Paragraphs = flattenBody(&doc.Body)
	return d, nil
}

// flattenBody walks body content in document order, yielding one
// ParagraphInfo per top-level paragraph and per table cell (row-major).
func flattenBody(body *wBody) []ParagraphInfo {
	var out []ParagraphInfo
	pos := 0
	paragraphID := 0
	tableIndex := 0

	emitParagraph := func(p *wP, info *TableInfo) {
		text := extractParagraphText(p, Final)
		style := paragraphStyle(p)
		pi := ParagraphInfo{
			ParagraphID:      paragraphID,
			Text:             text,
			Style:            style,
			DocumentPosition: pos,
			IsTableCell:      info != nil,
			Table:            info,
		}
		out = append(out, pi)
		paragraphID++
		pos++
	}

	for _, item := range body.Items {
		switch item.XMLName.Local {
		case "p":
			emitParagraph(item.Paragraph, nil)
		case "tbl":
			for rowIdx, row := range item.Table.Rows {
				for cellIdx, cell := range row.Cells {
					for _, p := range cell.Paragraphs {
						pCopy := p
						emitParagraph(&pCopy, &TableInfo{
							TableIndex: tableIndex,
							RowIndex:   rowIdx,
							CellIndex:  cellIdx,
						})
					}
				}
			}
			tableIndex++
		}
	}
	return out
}

func paragraphStyle(p *wP) string {
	if p.Properties != nil && p.Properties.Style != nil && p.Properties.Style.Val != "" {
		return p.Properties.Style.Val
	}
	return "Normal"
}

// extractParagraphText walks a paragraph's children in document order,
// honouring the tracked-change mode: Original keeps w:del/w:delText content
// and drops w:ins content, Final is the mirror. Runs accumulate w:t,
// w:tab -> \t, w:br -> \n.
func extractParagraphText(p *wP, mode TextMode) string {
	var sb strings.Builder
	for _, c := range p.Children {
		switch c.Kind {
		case "r":
			writeRunText(&sb, c.Run)
		case "ins":
			if mode == Final {
				for i := range c.Ins.Runs {
					writeRunText(&sb, &c.Ins.Runs[i])
				}
			}
		case "del":
			if mode == Original {
				for i := range c.Del.Runs {
					writeDelRunText(&sb, &c.Del.Runs[i])
				}
			}
		case "hyperlink":
			for i := range c.Hyperlink.Runs {
				writeRunText(&sb, &c.Hyperlink.Runs[i])
			}
		}
	}
	return tidyWhitespace(sb.String())
}

func writeRunText(sb *strings.Builder, run *wR) {
	for _, t := range run.Text {
		sb.WriteString(t.Content)
	}
	for range run.Tab {
		sb.WriteString("\t")
	}
	for range run.Break {
		sb.WriteString("\n")
	}
}

func writeDelRunText(sb *strings.Builder, run *wR) {
	for _, t := range run.DelText {
		sb.WriteString(t.Content)
	}
	for range run.Tab {
		sb.WriteString("\t")
	}
	for range run.Break {
		sb.WriteString("\n")
	}
}

var (
	trailingSpaceBeforeNewline = regexp.MustCompile(`[ \t]+\n`)
	runsOfNewlines             = regexp.MustCompile(`\n{2,}`)
)

func tidyWhitespace(s string) string {
	s = trailingSpaceBeforeNewline.ReplaceAllString(s, "\n")
	s = runsOfNewlines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// ExtractAllText returns every paragraph's text under the given
// tracked-change mode, in the same order as Paragraphs, so a caller can
// diff the Original and Final views paragraph by paragraph.
func (d *Document) ExtractAllText(mode TextMode) []string {
	flat := collectParagraphPointers(d.body)
	out := make([]string, len(flat))
	for i, p := range flat {
		out[i] = extractParagraphText(p, mode)
	}
	return out
}

// ExportRecord is one paragraph's replacement text for Export.
type ExportRecord struct {
	ParagraphID int
	Source      string
	Target      string
}

// Export writes a new .docx to w, replacing each paragraph's run text with
// its target from records (matched by ParagraphID), preserving style and
// giving the whole target the bold/italic/underline of the paragraph's
// first text run (formatting of later runs is not mapped onto the target),
// and passing everything else (media, headers, footers,
// numbering, section properties) through unchanged.
func (d *Document) Export(w io.Writer, records []ExportRecord) error {
	byID := make(map[int]string, len(records))
	for _, r := range records {
		byID[r.ParagraphID] = r.Target
	}

	newBody := cloneBody(d.body)
	applyTranslations(newBody, d.Paragraphs, byID)

	newDoc := wDocument{Body: *newBody}
	out, err := xml.Marshal(newDoc)
	if err != nil {
		return fmt.Errorf("docx: marshal export: %w", err)
	}
	out = append([]byte(xml.Header), out...)

	zw := zip.NewWriter(w)
	for name, data := range d.zipFile {
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("docx: write entry %s: %w", name, err)
		}
		if name == "word/document.xml" {
			if _, err := fw.Write(out); err != nil {
				return fmt.Errorf("docx: write document.xml: %w", err)
			}
			continue
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("docx: write entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// applyTranslations walks the flattened paragraph list in the same order
// flattenBody produced it, replacing run text for matched paragraph ids.
func applyTranslations(body *wBody, infos []ParagraphInfo, byID map[int]string) {
	flat := collectParagraphPointers(body)
	for i, pi := range infos {
		if i >= len(flat) {
			break
		}
		target, ok := byID[pi.ParagraphID]
		if !ok {
			continue
		}
		replaceParagraphText(flat[i], target)
	}
}

func collectParagraphPointers(body *wBody) []*wP {
	var out []*wP
	for _, item := range body.Items {
		switch item.XMLName.Local {
		case "p":
			out = append(out, item.Paragraph)
		case "tbl":
			for _, row := range item.Table.Rows {
				for _, cell := range row.Cells {
					for i := range cell.Paragraphs {
						out = append(out, &cell.Paragraphs[i])
					}
				}
			}
		}
	}
	return out
}

// replaceParagraphText maps source run boundaries onto the target string:
// the first run carrying text keeps its formatting and absorbs the whole
// translation; subsequent text runs are emptied. This preserves bold,
// italic and underline on the common case of a single formatted run, and
// degrades gracefully (first run wins) when a source paragraph had mixed
// formatting that the target no longer aligns with.
func replaceParagraphText(p *wP, target string) {
	// Collapse tracked-change children to plain runs: export reflects the
	// final, now-translated text, not the revision history.
	var runs []*wR
	for i := range p.Children {
		c := &p.Children[i]
		switch c.Kind {
		case "r":
			runs = append(runs, c.Run)
		case "ins":
			runs = append(runs, runPtrs(c.Ins.Runs)...)
		case "hyperlink":
			runs = append(runs, runPtrs(c.Hyperlink.Runs)...)
			// "del" children are dropped entirely: their text never
			// reached the final document.
		}
	}

	assigned := false
	for _, run := range runs {
		if len(run.Text) == 0 && len(run.Tab) == 0 && len(run.Break) == 0 {
			continue
		}
		if !assigned {
			run.Text = []wText{{Content: target, Space: "preserve"}}
			run.Tab = nil
			run.Break = nil
			assigned = true
		} else {
			run.Text = nil
			run.Tab = nil
			run.Break = nil
		}
	}

	if assigned {
		p.Children = []pChild{{Kind: "r", Run: firstNonEmptyRun(runs)}}
		return
	}

	if len(runs) > 0 {
		runs[0].Text = []wText{{Content: target, Space: "preserve"}}
		p.Children = []pChild{{Kind: "r", Run: runs[0]}}
		return
	}

	p.Children = []pChild{{Kind: "r", Run: &wR{Text: []wText{{Content: target, Space: "preserve"}}}}}
}

func runPtrs(runs []wR) []*wR {
	out := make([]*wR, len(runs))
	for i := range runs {
		out[i] = &runs[i]
	}
	return out
}

func firstNonEmptyRun(runs []*wR) *wR {
	for _, r := range runs {
		if len(r.Text) > 0 && r.Text[0].Content != "" {
			return r
		}
	}
	if len(runs) > 0 {
		return runs[0]
	}
	return &wR{}
}

func cloneBody(body *wBody) *wBody {
	// xml.Unmarshal-free deep copy via re-marshal/unmarshal keeps the
	// implementation small and correct for our nested, pointer-heavy tree.
	data, err := xml.Marshal(body)
	if err != nil {
		// body was itself produced by Unmarshal, so this cannot fail in
		// practice; fall back to sharing the tree if it somehow does.
		return body
	}
	var clone wBody
	if err := xml.Unmarshal(data, &clone); err != nil {
		return body
	}
	return &clone
}
