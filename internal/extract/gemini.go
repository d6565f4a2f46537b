package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

const systemPrompt = `You are an expert FDA regulatory analyst specializing in medical device regulations.
Your task is to extract structured information from FDA guidance documents related to medical devices.

You will be provided with document metadata and the full text content extracted from the PDF document.

Key areas to focus on:
- Device classification (Class I, II, III)
- Product codes and device types
- Regulatory pathways (510(k), PMA, De Novo, etc.)
- Referenced standards (ISO, ASTM, IEC, etc.)
- Testing and submission requirements
- Compliance requirements (QSR, labeling, etc.)
- Risk classifications and safety information

Guidelines:
1. Only extract information that is explicitly mentioned in the document
2. Use exact terminology from the document when possible
3. For lists, extract all relevant items mentioned
4. Assign a confidence score (0-1) based on how clear and explicit the information is
5. If information is unclear or not present, leave fields empty rather than guessing

Return your response as valid JSON matching this schema:
` + featuresSchema

// GeminiModel implements feature extraction over the Gemini API, asking
// for JSON output at low temperature so results stay parseable and
// stable across runs.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel constructs a model client. Callers own Close.
func NewGeminiModel(ctx context.Context, model, apiKey string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Extract runs one structured-extraction call and returns the raw JSON
// text, markdown fences stripped.
func (m *GeminiModel) Extract(ctx context.Context, payload guidance.ExtractionPayload) (string, error) {
	model := m.client.GenerativeModel(m.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt(payload)))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return cleanJSONBlock(text), nil
}

// Close releases the underlying API client.
func (m *GeminiModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func userPrompt(payload guidance.ExtractionPayload) string {
	var sb strings.Builder
	sb.WriteString("Please extract medical device regulatory features from the following FDA document:\n\n")
	sb.WriteString("**Document Metadata:**\n")
	fmt.Fprintf(&sb, "- Title: %s\n", payload.Title)
	fmt.Fprintf(&sb, "- URL: %s\n", payload.URL)

	keys := make([]string, 0, len(payload.Metadata))
	for k := range payload.Metadata {
		keys = append(keys, k)
	}
	// Deterministic prompts make failures reproducible.
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, payload.Metadata[k])
	}

	sb.WriteString("\n**Document Content:**\n")
	sb.WriteString(payload.Text)
	sb.WriteString("\n\nReturn the extracted regulatory information as JSON matching the schema.")
	return sb.String()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// cleanJSONBlock removes markdown code fences some models wrap around
// JSON output even in JSON mode.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
