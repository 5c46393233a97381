package docx

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

const minimalDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading 1"/></w:pPr>
      <w:r><w:t>Title</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t xml:space="preserve">Hello </w:t></w:r>
      <w:del><w:r><w:delText xml:space="preserve">old </w:delText></w:r></w:del>
      <w:ins><w:r><w:t xml:space="preserve">new </w:t></w:r></w:ins>
      <w:r><w:t>world.</w:t></w:r>
    </w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Cell A1</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Cell B1</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type DocxSuite struct {
	suite.Suite
}

func TestDocxSuite(t *testing.T) {
	suite.Run(t, new(DocxSuite))
}

func (s *DocxSuite) TestLoadFromBytes_ParagraphsAndTables() {
	data := buildDocx(s.T(), minimalDocumentXML)
	doc, err := LoadFromBytes(data)
	s.Require().NoError(err)
	s.Require().Len(doc.Paragraphs, 4)

	s.Equal("Title", doc.Paragraphs[0].Text)
	s.Equal("Heading 1", doc.Paragraphs[0].Style)
	s.False(doc.Paragraphs[0].IsTableCell)

	s.Equal("Hello new world.", doc.Paragraphs[1].Text)

	s.True(doc.Paragraphs[2].IsTableCell)
	s.Equal("Cell A1", doc.Paragraphs[2].Text)
	s.Equal(&TableInfo{TableIndex: 0, RowIndex: 0, CellIndex: 0}, doc.Paragraphs[2].Table)
	s.True(doc.Paragraphs[3].IsTableCell)
	s.Equal("Cell B1", doc.Paragraphs[3].Text)
}

func (s *DocxSuite) TestOriginalVsFinalTrackedChange() {
	data := buildDocx(s.T(), minimalDocumentXML)
	doc, err := LoadFromBytes(data)
	s.Require().NoError(err)

	p := collectParagraphPointers(doc.body)[1]
	s.Equal("Hello new world.", extractParagraphText(p, Final))
	s.Equal("Hello old world.", extractParagraphText(p, Original))
}

func (s *DocxSuite) TestInvalidDocx() {
	_, err := LoadFromBytes([]byte("not a zip"))
	s.ErrorIs(err, ErrInvalidDocx)
}

func (s *DocxSuite) TestExportRoundTripWithIdenticalTarget() {
	data := buildDocx(s.T(), minimalDocumentXML)
	doc, err := LoadFromBytes(data)
	s.Require().NoError(err)

	records := make([]ExportRecord, len(doc.Paragraphs))
	for i, p := range doc.Paragraphs {
		records[i] = ExportRecord{ParagraphID: p.ParagraphID, Source: p.Text, Target: p.Text}
	}

	var out bytes.Buffer
	s.Require().NoError(doc.Export(&out, records))

	reimported, err := LoadFromBytes(out.Bytes())
	s.Require().NoError(err)
	s.Require().Len(reimported.Paragraphs, len(doc.Paragraphs))
	for i := range doc.Paragraphs {
		s.Equal(doc.Paragraphs[i].Text, reimported.Paragraphs[i].Text)
	}
}

func (s *DocxSuite) TestExportReplacesText() {
	data := buildDocx(s.T(), minimalDocumentXML)
	doc, err := LoadFromBytes(data)
	s.Require().NoError(err)

	records := []ExportRecord{
		{ParagraphID: 0, Source: "Title", Target: "Titre"},
		{ParagraphID: 1, Source: "Hello new world.", Target: "Bonjour le monde."},
	}
	var out bytes.Buffer
	s.Require().NoError(doc.Export(&out, records))

	reimported, err := LoadFromBytes(out.Bytes())
	s.Require().NoError(err)
	s.Equal("Titre", reimported.Paragraphs[0].Text)
	s.Equal("Bonjour le monde.", reimported.Paragraphs[1].Text)
	// untouched paragraph (no matching record) keeps its original text
	s.Equal("Cell A1", reimported.Paragraphs[2].Text)
}
