package infringement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
	"patentwatch/internal/rules"
)

const (
	// The model asks follow-up questions with this phrase when clue
	// information is incomplete.
	clarificationSentinel = "请提供"

	// Canned reply standing in for an enterprise knowledge base lookup.
	clarificationReply = "线索A的公开日为2024-05-15，实施地在中国广东"
)

func needsClarification(content string) bool {
	return strings.Contains(content, clarificationSentinel)
}

// EvaluationAgent scores the research stage's clues against the patent text
// over a short clarification dialogue.
type EvaluationAgent struct {
	adapter  llm.Adapter
	criteria map[string]rules.Criterion
}

func NewEvaluationAgent(adapter llm.Adapter, criteria map[string]rules.Criterion) *EvaluationAgent {
	return &EvaluationAgent{adapter: adapter, criteria: criteria}
}

// ConductEvaluation runs up to maxEvaluationRounds turns. A reply containing
// the clarification sentinel gets the canned follow-up answer and another
// round; any other reply is parsed into verdicts and returned. Exhausting the
// rounds without a conclusive reply returns nil, which is a hard failure and
// distinct from a parsed-but-empty result (the parser never returns empty).
func (a *EvaluationAgent) ConductEvaluation(ctx context.Context, materials *Materials, systemPrompt string, targetCompanies []string) ([]Verdict, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: a.buildEvaluationContext(materials)},
	}

	for round := 0; round < maxEvaluationRounds; round++ {
		resp, err := a.adapter.GetResponse(ctx, messages, llm.WithTemperature(0.3))
		if err != nil {
			return nil, fmt.Errorf("evaluation round %d: %w", round+1, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return nil, fmt.Errorf("evaluation round %d: empty response", round+1)
		}
		msg := resp.FirstMessage()

		if needsClarification(msg.Content) {
			logger.Log.Info("评估模型请求补充线索信息，使用模拟回复继续")
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: msg.Content},
				llm.Message{Role: llm.RoleUser, Content: clarificationReply},
			)
			continue
		}

		verdicts := ParseEvaluationResult(msg.Content)
		applyTargetCompanyPolicy(verdicts, targetCompanies)
		return verdicts, nil
	}

	return nil, fmt.Errorf("evaluation did not conclude within %d rounds", maxEvaluationRounds)
}

// buildEvaluationContext pairs the length-capped patent text with the
// numbered clue digests. The criteria digest reminds the model which named
// rules its prompt's scoring formula refers to.
func (a *EvaluationAgent) buildEvaluationContext(materials *Materials) string {
	var b strings.Builder
	b.WriteString("目标专利内容：\n")
	b.WriteString(truncate(materials.OriginalText, researchTextLimit))
	b.WriteString("\n\n待评估侵权线索：\n")
	for i, sr := range materials.SearchResults {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "线索%d: %s", i+1, sr.Result)
	}
	if digest := a.criteriaDigest(); digest != "" {
		b.WriteString("\n\n评估标准参考：\n")
		b.WriteString(digest)
	}
	return b.String()
}

func (a *EvaluationAgent) criteriaDigest() string {
	if len(a.criteria) == 0 {
		return ""
	}
	names := make([]string, 0, len(a.criteria))
	for name := range a.criteria {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		c := a.criteria[name]
		lines = append(lines, fmt.Sprintf("- %s（权重%.2f）：%s", name, c.Weight, c.Description))
	}
	return strings.Join(lines, "\n")
}
