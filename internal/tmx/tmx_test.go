package tmx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TMXSuite struct {
	suite.Suite
}

func TestTMXSuite(t *testing.T) {
	suite.Run(t, new(TMXSuite))
}

func (s *TMXSuite) TestWriteThenRead_RoundTripsPairs() {
	pairs := []Pair{
		{Source: "Hello world", Target: "Hallo wereld"},
		{Source: "Good morning", Target: "Goedemorgen"},
	}

	var buf bytes.Buffer
	err := Write(&buf, pairs, WriteOptions{
		SourceLang: "en", TargetLang: "nl", CreationDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)

	got, err := Read(&buf, "en", "nl")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.ElementsMatch(pairs, got)
}

func (s *TMXSuite) TestWrite_SkipsEmptyAndErrorMarkerTargets() {
	pairs := []Pair{
		{Source: "Has error", Target: "[ERR: failed]"},
		{Source: "Has missing", Target: "[Missing line]"},
		{Source: "Empty target", Target: ""},
		{Source: "", Target: "Empty source"},
		{Source: "Good one", Target: "Goed"},
	}

	var buf bytes.Buffer
	err := Write(&buf, pairs, WriteOptions{SourceLang: "en", TargetLang: "nl", CreationDate: time.Now()})
	s.Require().NoError(err)

	got, err := Read(&buf, "en", "nl")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Good one", got[0].Source)
}

func (s *TMXSuite) TestRead_LanguagePrefixMatching() {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<tmx version="1.4">
  <header creationtool="Other" creationtoolversion="1" segtype="sentence" adminlang="en" srclang="en-US" datatype="plaintext" creationdate="20260101T000000Z"/>
  <body>
    <tu>
      <tuv xml:lang="en-US"><seg>Hello</seg></tuv>
      <tuv xml:lang="nl-NL"><seg>Hallo</seg></tuv>
    </tu>
  </body>
</tmx>`

	got, err := Read(bytes.NewBufferString(doc), "en", "nl")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Hello", got[0].Source)
	s.Equal("Hallo", got[0].Target)
}
