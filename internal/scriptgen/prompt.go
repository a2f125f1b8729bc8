package scriptgen

import (
	"fmt"
	"strings"
)

// Default generation bounds.
const (
	defaultTargetTurns = 12
	maxDocumentChars   = 4000
)

const basePromptFormat = `You are an expert podcast script writer. Create a %s podcast script based on the document content provided.
The podcast has these speakers: %s. Aim for about %d dialogue turns. Write in %s.

Format the script as a JSON object with the following structure:
{
  "title": "Podcast title based on the document",
  "description": "Brief description of the podcast",
  "speakers": [%s],
  "script": [
    {"speaker": "%s", "text": "Welcome to our podcast..."}
  ]
}
Only output the JSON object, nothing else.`

const researchArticleInstructions = `
This is a RESEARCH ARTICLE. The script should be analytical and detailed,
covering the methods, results, and implications, with the host asking probing
questions and the guests explaining technical concepts accessibly.`

const reviewArticleInstructions = `
This is a REVIEW ARTICLE. The script should synthesize and compare the
reviewed studies, highlight consensus and disagreement, and identify gaps and
future directions.`

const caseStudyInstructions = `
This is a CASE STUDY. The script should be conversational and
narrative-driven, telling the story of the case chronologically and drawing
broader lessons from it.`

const defaultInstructions = `
Make the conversation natural, engaging, and informative: an introduction, a
discussion of the main points, questions and answers between speakers, and a
conclusion with key takeaways.`

// SystemPrompt builds the generation prompt for a document type, tone,
// language, and speaker roster.
func SystemPrompt(docType, tone, language string, targetTurns int, roster []string) string {
	if tone == "" {
		tone = "engaging"
	}

	if language == "" {
		language = "English"
	}

	if targetTurns <= 0 {
		targetTurns = defaultTargetTurns
	}

	quoted := make([]string, len(roster))
	for i, speaker := range roster {
		quoted[i] = fmt.Sprintf("%q", speaker)
	}

	lead := "Host"
	if len(roster) > 0 {
		lead = roster[0]
	}

	prompt := fmt.Sprintf(
		basePromptFormat,
		tone,
		strings.Join(roster, ", "),
		targetTurns,
		language,
		strings.Join(quoted, ", "),
		lead,
	)

	switch docType {
	case DocTypeResearchArticle:
		return prompt + researchArticleInstructions
	case DocTypeReviewArticle:
		return prompt + reviewArticleInstructions
	case DocTypeCaseStudy:
		return prompt + caseStudyInstructions
	default:
		return prompt + defaultInstructions
	}
}

// TruncateDocument bounds the document text passed to the generator.
func TruncateDocument(text string) string {
	if len(text) <= maxDocumentChars {
		return text
	}

	return text[:maxDocumentChars]
}
