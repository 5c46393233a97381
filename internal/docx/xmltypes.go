package docx

import "encoding/xml"

// This file holds the minimal WordprocessingML object model the codec
// needs, decoded with hand-rolled UnmarshalXML so that document order is
// preserved exactly as it appears in word/document.xml — both at the body
// level (paragraphs interleaved with tables) and within a paragraph (plain
// runs interleaved with w:ins/w:del tracked-change runs), which plain
// struct-tag decoding cannot express.

type wDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    wBody    `xml:"body"`
}

// wBody is the ordered sequence of block-level content: paragraphs and
// tables, in the order they occur. Anything else (sectPr, bookmarks, …) is
// skipped and passed through untouched by virtue of never being parsed out
// of the original bytes used for re-zipping.
type wBody struct {
	Items []bodyItem
}

type bodyItem struct {
	XMLName   xml.Name
	Paragraph *wP
	Table     *wTbl
}

func (b *wBody) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				var p wP
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				b.Items = append(b.Items, bodyItem{XMLName: t.Name, Paragraph: &p})
			case "tbl":
				var tbl wTbl
				if err := d.DecodeElement(&tbl, &t); err != nil {
					return err
				}
				b.Items = append(b.Items, bodyItem{XMLName: t.Name, Table: &tbl})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func (b wBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:body"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range b.Items {
		if item.Paragraph != nil {
			if err := e.EncodeElement(item.Paragraph, xml.StartElement{Name: xml.Name{Local: "w:p"}}); err != nil {
				return err
			}
		}
		if item.Table != nil {
			if err := e.EncodeElement(item.Table, xml.StartElement{Name: xml.Name{Local: "w:tbl"}}); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// wP is a paragraph: an ordered mix of plain runs, tracked-change runs and
// hyperlinks, plus paragraph properties (style).
type wP struct {
	Properties *wPProps
	Children   []pChild
}

type pChild struct {
	Kind      string // "r", "ins", "del", "hyperlink"
	Run       *wR
	Ins       *wIns
	Del       *wDel
	Hyperlink *wHyperlink
}

func (p *wP) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				var props wPProps
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				p.Properties = &props
			case "r":
				var r wR
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, pChild{Kind: "r", Run: &r})
			case "ins":
				var ins wIns
				if err := d.DecodeElement(&ins, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, pChild{Kind: "ins", Ins: &ins})
			case "del":
				var del wDel
				if err := d.DecodeElement(&del, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, pChild{Kind: "del", Del: &del})
			case "hyperlink":
				var h wHyperlink
				if err := d.DecodeElement(&h, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, pChild{Kind: "hyperlink", Hyperlink: &h})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func (p wP) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "w:p"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if p.Properties != nil {
		if err := e.EncodeElement(p.Properties, xml.StartElement{Name: xml.Name{Local: "w:pPr"}}); err != nil {
			return err
		}
	}
	for _, c := range p.Children {
		var err error
		switch c.Kind {
		case "r":
			err = e.EncodeElement(c.Run, xml.StartElement{Name: xml.Name{Local: "w:r"}})
		case "ins":
			err = e.EncodeElement(c.Ins, xml.StartElement{Name: xml.Name{Local: "w:ins"}})
		case "del":
			err = e.EncodeElement(c.Del, xml.StartElement{Name: xml.Name{Local: "w:del"}})
		case "hyperlink":
			err = e.EncodeElement(c.Hyperlink, xml.StartElement{Name: xml.Name{Local: "w:hyperlink"}})
		}
		if err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

type wPProps struct {
	Style *wStyle `xml:"pStyle"`
}

type wStyle struct {
	Val string `xml:"val,attr"`
}

type wR struct {
	Text    []wText    `xml:"t"`
	DelText []wText    `xml:"delText"`
	Tab     []struct{} `xml:"tab"`
	Break   []struct{} `xml:"br"`
	RunProps *wRPr     `xml:"rPr"`
}

// wRPr carries the run-formatting flags the exporter tries to preserve.
type wRPr struct {
	Bold      *struct{} `xml:"b"`
	Italic    *struct{} `xml:"i"`
	Underline *wU       `xml:"u"`
}

type wU struct {
	Val string `xml:"val,attr"`
}

type wText struct {
	Content string `xml:",chardata"`
	Space   string `xml:"space,attr,omitempty"`
}

type wIns struct {
	Runs []wR `xml:"r"`
}

type wDel struct {
	Runs []wR `xml:"r"`
}

type wHyperlink struct {
	Runs []wR `xml:"r"`
}

type wTbl struct {
	Rows []wTr `xml:"tr"`
}

type wTr struct {
	Cells []wTc `xml:"tc"`
}

type wTc struct {
	Paragraphs []wP `xml:"p"`
}
