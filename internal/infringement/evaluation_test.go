package infringement

import (
	"context"
	"strings"
	"testing"

	"patentwatch/internal/llm"
	"patentwatch/internal/rules"
)

func testCriteria() map[string]rules.Criterion {
	return map[string]rules.Criterion{
		"技术特征匹配": {Weight: 0.6, Description: "技术特征重合程度"},
		"时间有效性":  {Weight: 0.4, Description: "公开时间晚于申请日"},
	}
}

func TestConductEvaluationParsesFirstConclusiveReply(t *testing.T) {
	adapter := &fakeAdapter{responses: []*llm.Response{
		contentResponse(verdictSection(1, 82, "高", "AcmeTech 产品证据。")),
	}}
	agent := NewEvaluationAgent(adapter, testCriteria())
	materials := &Materials{
		OriginalText:  "专利全文",
		SearchResults: []SearchResult{{Query: "q1", Result: "digest-1"}, {Query: "q2", Result: "digest-2"}},
	}

	verdicts, err := agent.ConductEvaluation(context.Background(), materials, "system", []string{"AcmeTech"})
	if err != nil {
		t.Fatalf("ConductEvaluation: %v", err)
	}
	if len(verdicts) != 1 || verdicts[0].MatchScore != 82 {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}
	if !verdicts[0].IsTargetCompany || verdicts[0].RiskLevel != RiskHigh {
		t.Fatalf("target company policy not applied: %+v", verdicts[0])
	}

	sent := adapter.seen[0]
	user := sent[1].Content
	for _, want := range []string{"目标专利内容：", "线索1: digest-1", "线索2: digest-2", "评估标准参考：", "技术特征匹配", "时间有效性"} {
		if !strings.Contains(user, want) {
			t.Fatalf("evaluation context missing %q:\n%s", want, user)
		}
	}
}

func TestConductEvaluationCapsPatentText(t *testing.T) {
	adapter := &fakeAdapter{responses: []*llm.Response{
		contentResponse(verdictSection(1, 70, "中", "证据。")),
	}}
	agent := NewEvaluationAgent(adapter, nil)
	materials := &Materials{
		OriginalText:  strings.Repeat("甲", researchTextLimit+5000),
		SearchResults: []SearchResult{{Query: "q1", Result: "digest-1"}},
	}

	if _, err := agent.ConductEvaluation(context.Background(), materials, "system", nil); err != nil {
		t.Fatalf("ConductEvaluation: %v", err)
	}

	user := adapter.seen[0][1].Content
	if !strings.Contains(user, truncationMarker) {
		t.Fatalf("long patent text sent without truncation marker:\n%s", user[:200])
	}
	if got := strings.Count(user, "甲"); got != researchTextLimit {
		t.Fatalf("patent text not capped at %d runes, got %d", researchTextLimit, got)
	}
}

func TestConductEvaluationClarificationRound(t *testing.T) {
	adapter := &fakeAdapter{responses: []*llm.Response{
		contentResponse("信息不足，请提供线索A的公开日和实施地。"),
		contentResponse(verdictSection(1, 75, "中", "补充信息后的证据。")),
	}}
	agent := NewEvaluationAgent(adapter, testCriteria())

	verdicts, err := agent.ConductEvaluation(context.Background(), &Materials{OriginalText: "text"}, "system", nil)
	if err != nil {
		t.Fatalf("ConductEvaluation: %v", err)
	}
	if len(verdicts) != 1 || verdicts[0].RiskLevel != RiskMedium {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}

	second := adapter.seen[1]
	if len(second) != 4 {
		t.Fatalf("expected system+user+assistant+reply, got %d messages", len(second))
	}
	if second[3].Role != llm.RoleUser || !strings.Contains(second[3].Content, "2024-05-15") {
		t.Fatalf("canned clarification reply not appended: %+v", second[3])
	}
}

func TestConductEvaluationExhaustionFails(t *testing.T) {
	clarify := contentResponse("请提供更多信息。")
	adapter := &fakeAdapter{responses: []*llm.Response{clarify, clarify, clarify}}
	agent := NewEvaluationAgent(adapter, testCriteria())

	verdicts, err := agent.ConductEvaluation(context.Background(), &Materials{OriginalText: "text"}, "system", nil)
	if err == nil || verdicts != nil {
		t.Fatalf("expected hard failure after round exhaustion, got %v, %v", verdicts, err)
	}
}
