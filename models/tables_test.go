package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityLabel(t *testing.T) {
	assert.Equal(t, "4K", QualityLabel(2160))
	assert.Equal(t, "720p", QualityLabel(720))
	assert.Equal(t, "", QualityLabel(0))
	assert.Equal(t, "", QualityLabel(999))
}

func TestDetectLanguages(t *testing.T) {
	assert.Equal(t, []string{LanguageMulti, "french"}, DetectLanguages("Movie.2020.MULTi.FRENCH.1080p"))
	assert.Equal(t, []string{"english"}, DetectLanguages("Movie 2020 ENG 720p"))
	assert.Nil(t, DetectLanguages("Movie.2020.1080p.WEB"))
	assert.Equal(t, "🇫🇷", LanguageEmoji("french"))
	assert.Equal(t, "", LanguageEmoji("klingon"))
	assert.Equal(t, "🇫🇷 French", Languages[6].Label)
}
