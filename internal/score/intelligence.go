package score

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/pkg/anthropic"
)

const analyzerSystemPrompt = `You assess Brazilian small-business leads for B2B outbound prospecting.
Given a lead, respond with a single JSON object and nothing else:
{"score": <0-100>, "tags": ["..."]}
Score high when the business looks like an independent local operation in
the stated sector; score low for aggregators, franchises of large chains,
or anything that is not an actual business.`

// LLMAnalyzer implements Analyzer with the Anthropic message API.
type LLMAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewLLMAnalyzer builds the analyzer from config.
func NewLLMAnalyzer(client anthropic.Client, cfg config.IntelligenceConfig) *LLMAnalyzer {
	return &LLMAnalyzer{client: client, model: cfg.Model}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, lead *model.Lead, sector string) (*Assessment, error) {
	prompt := fmt.Sprintf("Sector: %s\nRegion: %s\nName: %s\nAddress: %s\nPhone: %s\nWebsite: %s\nSnippet: %s",
		sector, lead.Region, lead.RawName, lead.Address, lead.Phone, lead.Website, lead.Snippet)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 256,
		System:    analyzerSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "score: analyze lead")
	}

	assessment, err := parseAssessment(resp.Text())
	if err != nil {
		return nil, err
	}
	assessment.CostUSD = resp.Usage.EstimateCost(a.model)
	return assessment, nil
}

type assessmentJSON struct {
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

// parseAssessment extracts the JSON object from the model output,
// tolerating surrounding prose or code fences.
func parseAssessment(text string) (*Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("score: no JSON object in analyzer output: %q", text)
	}

	var parsed assessmentJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "score: unmarshal analyzer output")
	}
	if parsed.Score < 0 || parsed.Score > 100 {
		return nil, eris.Errorf("score: analyzer score %v out of range", parsed.Score)
	}
	return &Assessment{Score: parsed.Score, Tags: parsed.Tags}, nil
}
