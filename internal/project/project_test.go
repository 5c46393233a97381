package project

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProjectSuite struct {
	suite.Suite
}

func TestProjectSuite(t *testing.T) {
	suite.Run(t, new(ProjectSuite))
}

func (s *ProjectSuite) TestSaveThenLoad_RoundTrips() {
	path := filepath.Join(s.T().TempDir(), "proj.json")
	f := File{SourceLang: "en", TargetLang: "nl", Provider: "openai", ChunkSize: 50}
	s.Require().NoError(Save(path, f))

	loaded, err := Load(path)
	s.Require().NoError(err)
	s.Equal("en", loaded.SourceLang)
	s.Equal(CurrentVersion, loaded.Version)
}

func (s *ProjectSuite) TestParseAPIKeys_RecognisesAliasesAndSkipsComments() {
	const content = `# comment
openai = sk-abc
claude = sk-ant-def
gemini = ghi
unknown = jkl
`
	keys, err := ParseAPIKeys(strings.NewReader(content))
	s.Require().NoError(err)
	s.Equal("sk-abc", keys.OpenAI)
	s.Equal("sk-ant-def", keys.Anthropic)
	s.Equal("ghi", keys.Gemini)
}

func (s *ProjectSuite) TestLoadAPIKeys_CreatesTemplateWhenMissing() {
	path := filepath.Join(s.T().TempDir(), "api_keys.txt")
	keys, err := LoadAPIKeys(path)
	s.Require().NoError(err)
	s.Equal(APIKeys{}, keys)

	keys2, err := LoadAPIKeys(path)
	s.Require().NoError(err)
	s.Equal(APIKeys{}, keys2)
}
