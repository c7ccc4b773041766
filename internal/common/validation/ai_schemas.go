package validation

// Schema names for AI backend responses.
const (
	SchemaQuestion    = "question"
	SchemaTitle       = "title"
	SchemaSections    = "sections"
	SchemaSuggestions = "suggestions"
)

const questionSchema = `{
  "type": "object",
  "properties": {
    "question": {
      "type": ["object", "null"],
      "properties": {
        "text": {"type": "string", "minLength": 1, "pattern": "\\S"},
        "type": {"type": "string", "enum": ["text", "numeric", "number"]},
        "keywords": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["text"]
    },
    "done": {"type": "boolean"}
  }
}`

const titleSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "\\S"}
  },
  "required": ["title"]
}`

const sectionsSchema = `{
  "type": "object",
  "properties": {
    "sections": {
      "type": "object",
      "properties": {
        "executive_summary":  {"type": "string", "minLength": 1},
        "market_analysis":    {"type": "string", "minLength": 1},
        "swot_analysis":      {"type": "string", "minLength": 1},
        "marketing_strategy": {"type": "string", "minLength": 1},
        "financial_plan":     {"type": "string", "minLength": 1},
        "operational_plan":   {"type": "string", "minLength": 1}
      },
      "required": ["executive_summary", "market_analysis", "swot_analysis",
                   "marketing_strategy", "financial_plan", "operational_plan"]
    }
  },
  "required": ["sections"]
}`

const suggestionsSchema = `{
  "type": "object",
  "properties": {
    "suggestions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "content": {"type": "string", "minLength": 1},
          "priority": {"type": "string"}
        },
        "required": ["type", "content"]
      }
    }
  },
  "required": ["suggestions"]
}`

// NewAIResponseValidator returns a validator with every AI response schema
// registered.
func NewAIResponseValidator() *Validator {
	return NewValidator().
		MustRegister(SchemaQuestion, questionSchema).
		MustRegister(SchemaTitle, titleSchema).
		MustRegister(SchemaSections, sectionsSchema).
		MustRegister(SchemaSuggestions, suggestionsSchema)
}
