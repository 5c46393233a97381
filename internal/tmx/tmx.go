// Package tmx reads and writes TMX 1.4 translation memory files: a
// simple-pair in-memory codec for small files, and helpers a
// database-backed large-file mode can build on.
package tmx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrCodecFailure = errors.New("tmx: parse or write failure")

// Pair is one (source, target) translation pair.
type Pair struct {
	Source string
	Target string
}

type tmx14 struct {
	XMLName xml.Name `xml:"tmx"`
	Version string   `xml:"version,attr"`
	Header  header   `xml:"header"`
	Body    body      `xml:"body"`
}

type header struct {
	CreationTool        string `xml:"creationtool,attr"`
	CreationToolVersion string `xml:"creationtoolversion,attr"`
	SegType             string `xml:"segtype,attr"`
	AdminLang           string `xml:"adminlang,attr"`
	SrcLang             string `xml:"srclang,attr"`
	DataType            string `xml:"datatype,attr"`
	CreationDate        string `xml:"creationdate,attr"`
}

type body struct {
	TUs []tu `xml:"tu"`
}

type tu struct {
	TUVs []tuv `xml:"tuv"`
}

// tuv is hand-marshalled so the language attribute round-trips as
// xml:lang (the TMX-mandated form) rather than Go's namespace-prefixed
// rendering of a qualified attribute name.
type tuv struct {
	Lang string
	Seg  seg
}

func (v *tuv) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "lang" {
			v.Lang = attr.Value
			break
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "seg" {
				var s seg
				if err := d.DecodeElement(&s, &t); err != nil {
					return err
				}
				v.Seg = s
			} else if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func (v tuv) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "tuv"}
	start.Attr = []xml.Attr{{Name: xml.Name{Local: "xml:lang"}, Value: v.Lang}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeElement(v.Seg, xml.StartElement{Name: xml.Name{Local: "seg"}}); err != nil {
		return err
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

type seg struct {
	Content string `xml:",innerxml"`
}

// simpleLang reduces a BCP-47-ish tag to its primary subtag: "en-US" ->
// "en". Used for the prefix match TMX readers are expected to do.
func simpleLang(tag string) string {
	if idx := strings.IndexAny(tag, "-_"); idx >= 0 {
		return strings.ToLower(tag[:idx])
	}
	return strings.ToLower(tag)
}

// stripTags removes any inline markup inside a <seg> (bpt/ept/ph/it,
// etc.) and unescapes entities, keeping only the segment's plain text.
func stripTags(innerXML string) string {
	decoder := xml.NewDecoder(strings.NewReader("<seg>" + innerXML + "</seg>"))
	var sb strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
		}
	}
	return sb.String()
}

// Read parses a TMX 1.4 document, returning (source, target) pairs for
// every <tu> that has a <tuv> whose xml:lang prefix-matches sourceLang
// and another matching targetLang. TUs lacking either side are skipped.
func Read(r io.Reader, sourceLang, targetLang string) ([]Pair, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	var doc tmx14
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}

	wantSrc := simpleLang(sourceLang)
	wantTgt := simpleLang(targetLang)

	var pairs []Pair
	for _, unit := range doc.Body.TUs {
		var source, target string
		var haveSource, haveTarget bool
		for _, v := range unit.TUVs {
			lang := simpleLang(v.Lang)
			text := stripTags(v.Seg.Content)
			if lang == wantSrc && !haveSource {
				source = text
				haveSource = true
			}
			if lang == wantTgt && !haveTarget {
				target = text
				haveTarget = true
			}
		}
		if haveSource && haveTarget {
			pairs = append(pairs, Pair{Source: source, Target: target})
		}
	}
	return pairs, nil
}

// errorMarkerPrefixes identify placeholder targets that Write must
// never persist as real translations.
var errorMarkerPrefixes = []string{"[ERR", "[Missing"}

func isErrorMarker(s string) bool {
	for _, prefix := range errorMarkerPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// WriteOptions configures the TMX header Write emits.
type WriteOptions struct {
	SourceLang          string
	TargetLang          string
	CreationDate        time.Time
	CreationToolVersion string
}

// Write emits a TMX 1.4 document for pairs, skipping any pair with an
// empty source or an empty/error-marker target.
func Write(w io.Writer, pairs []Pair, opts WriteOptions) error {
	doc := tmx14{
		Version: "1.4",
		Header: header{
			CreationTool:        "Supervertaler",
			CreationToolVersion: opts.CreationToolVersion,
			SegType:             "sentence",
			AdminLang:           "en",
			SrcLang:             opts.SourceLang,
			DataType:            "plaintext",
			CreationDate:        opts.CreationDate.UTC().Format("20060102T150405Z"),
		},
	}
	for _, p := range pairs {
		if p.Source == "" || p.Target == "" || isErrorMarker(p.Target) {
			continue
		}
		doc.Body.TUs = append(doc.Body.TUs, tu{
			TUVs: []tuv{
				{Lang: opts.SourceLang, Seg: seg{Content: xmlEscape(p.Source)}},
				{Lang: opts.TargetLang, Seg: seg{Content: xmlEscape(p.Target)}},
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	return nil
}

func xmlEscape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
