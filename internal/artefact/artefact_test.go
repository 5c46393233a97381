package artefact

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/supervertaler/supervertaler/internal/tmx"
)

type ArtefactSuite struct {
	suite.Suite
}

func TestArtefactSuite(t *testing.T) {
	suite.Run(t, new(ArtefactSuite))
}

func (s *ArtefactSuite) TestWriteTranslateTXT_EmitsSourceTabTarget() {
	var buf bytes.Buffer
	err := WriteTranslateTXT(&buf, []Row{{Source: "Hello", Target: "Hallo"}})
	s.Require().NoError(err)
	s.Equal("Hello\tHallo\n", buf.String())
}

func (s *ArtefactSuite) TestWriteProofreadTXT_CommentConcatenatesOriginalAndProofreaderParts() {
	var buf bytes.Buffer
	rows := []Row{
		{Source: "Hi", OriginalTarget: "hallo", RevisedTarget: "Hallo", OriginalComment: "typo?", ChangesSummary: "Capitalized"},
		{Source: "Bye", OriginalTarget: "Tot ziens", RevisedTarget: "Tot ziens"},
	}
	err := WriteProofreadTXT(&buf, rows)
	s.Require().NoError(err)

	lines := buf.String()
	s.Contains(lines, "Hi\tHallo\tORIGINAL COMMENT: typo? | PROOFREADER COMMENT (AI): Capitalized\n")
	s.Contains(lines, "Bye\tTot ziens\t\n")
}

func (s *ArtefactSuite) TestWriteProofreadTXT_UsesDefaultCommentWhenNoSummaryButTargetDiffers() {
	var buf bytes.Buffer
	rows := []Row{{Source: "Hi", OriginalTarget: "hallo", RevisedTarget: "Hallo"}}
	s.Require().NoError(WriteProofreadTXT(&buf, rows))
	s.Contains(buf.String(), "PROOFREADER COMMENT (AI): Reviewed, no issues found")
}

func (s *ArtefactSuite) TestWriteTMX_SkipsEmptyTargets() {
	var buf bytes.Buffer
	rows := []Row{
		{Source: "Hello", Target: "Hallo"},
		{Source: "Skip me", Target: ""},
	}
	err := WriteTMX(&buf, rows, tmx.WriteOptions{SourceLang: "en", TargetLang: "nl", CreationDate: time.Now()})
	s.Require().NoError(err)

	pairs, err := tmx.Read(&buf, "en", "nl")
	s.Require().NoError(err)
	s.Require().Len(pairs, 1)
	s.Equal("Hello", pairs[0].Source)
}

func (s *ArtefactSuite) TestWriteRunReport_IncludesCoreFields() {
	var buf bytes.Buffer
	err := WriteRunReport(&buf, RunReport{
		Timestamp:  time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		Version:    "1.0.0",
		Mode:       "translate",
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		SourceLang: "en",
		TargetLang: "nl",
		ChunkSize:  100,
		SegmentsTotal: 10,
		SegmentsModified: 4,
		SystemPromptSent: "Translate en to nl.",
	})
	s.Require().NoError(err)

	out := buf.String()
	s.Contains(out, "Mode: translate")
	s.Contains(out, "Provider/model: openai / gpt-4o-mini")
	s.Contains(out, "Translate en to nl.")
	s.Contains(out, "Segments: 10 total, 4 modified")
}
