package suggest

// Suggestion is one candidate reply. Candidates are ordered best-first;
// confidence is rank-derived since the upstream model returns text only.
type Suggestion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Wire types for the generative-language REST API.

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// candidateItem is the schema the model is asked to emit: a JSON array of
// objects each carrying a suggested reply.
type candidateItem struct {
	Text string `json:"text"`
}
