package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ErrorCodeIsLexical(t *testing.T) {
	assert.Equal(t, Lexical, Classify("ERR_TIMEOUT"))
}

func TestClassify_QuotedPhraseIsLexical(t *testing.T) {
	assert.Equal(t, Lexical, Classify(`"exact phrase"`))
}

func TestClassify_FilePathIsLexical(t *testing.T) {
	assert.Equal(t, Lexical, Classify("internal/engine/engine.go"))
}

func TestClassify_CamelCaseIdentifierIsLexical(t *testing.T) {
	assert.Equal(t, Lexical, Classify("handleRequest"))
}

func TestClassify_NaturalLanguageQuestionIsSemantic(t *testing.T) {
	assert.Equal(t, Semantic, Classify("how does personalization work"))
}

func TestClassify_LongMultiWordQueryIsSemantic(t *testing.T) {
	assert.Equal(t, Semantic, Classify("rollback deployment incident last night"))
}

func TestClassify_ShortAmbiguousQueryIsMixed(t *testing.T) {
	assert.Equal(t, Mixed, Classify("rollback deploy"))
}

func TestClassify_EmptyQueryIsMixed(t *testing.T) {
	assert.Equal(t, Mixed, Classify("   "))
}
