package gemini

// promptData is the input to the flashcard prompt template.
type promptData struct {
	Content      string
	Language     string
	Complexity   string
	MaxCards     int
	IncludeHints bool
	IncludeTags  bool
	Style        string
}

// CardSchema is a single flashcard in the model's JSON response.
type CardSchema struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Hint  string   `json:"hint,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// ResponseSchema is the JSON document the model is instructed to return.
type ResponseSchema struct {
	Title string       `json:"title,omitempty"`
	Cards []CardSchema `json:"cards"`
}

// flashcardPromptTemplate instructs the model to emit a ResponseSchema
// document. Keep the instructions in sync with that type.
const flashcardPromptTemplate = `You are a flashcard author. Create up to {{.MaxCards}} study flashcards from the content below.

Rules:
- Write the cards in {{.Language}}.
- Target a {{.Complexity}} difficulty level.
{{- if eq .Style "quiz"}}
- Phrase every front as a quiz question.
{{- else if eq .Style "detailed"}}
- Write thorough, self-contained answers on the back.
{{- else}}
- Keep both sides short and direct.
{{- end}}
{{- if .IncludeHints}}
- Add a short "hint" to each card.
{{- end}}
{{- if .IncludeTags}}
- Add one to three topical "tags" to each card.
{{- end}}
- Only use facts present in the content. Do not invent material.

Respond with JSON only, matching exactly:
{"title": "short set title", "cards": [{"front": "...", "back": "..."{{if .IncludeHints}}, "hint": "..."{{end}}{{if .IncludeTags}}, "tags": ["..."]{{end}}}]}

Content:
{{.Content}}`
