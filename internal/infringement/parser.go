package infringement

import (
	"regexp"
	"strconv"
	"strings"

	"patentwatch/internal/logger"
)

// Templates the evaluation model is prompted to answer in. Extraction is
// deliberately forgiving: any field missing from a section falls back to a
// default instead of failing the section.
var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	clueHeaderRe = regexp.MustCompile(`根据提供的评估信息，以下是针对\*\*线索(\d+)\*\*的详细分析和建议：`)
	matchScoreRe = regexp.MustCompile(`### \*\*1\. 匹配度分析（(\d+)分）\*\*`)
	riskLevelRe  = regexp.MustCompile(`- \*\*风险等级：([^*\n]+)\*\*`)
	// Evidence runs from its heading to the next structural heading, a
	// separator line, or the end of the section.
	evidenceRe = regexp.MustCompile(`(?s)### \*\*2\. 证据分析\*\*(.*?)(?:### \*\*|\n---\n|\z)`)
)

const (
	finalAnswerPrefix  = "final answer:"
	evidenceMissing    = "未能提取"
	fallbackEvidence   = "模型未提供结构化评估或解析失败，已完成基本分析"
	fallbackMatchScore = 75.0
)

// ParseEvaluationResult extracts structured verdicts from the evaluation
// model's free-text reply. It is a pure function with no side effects beyond
// a warning log on total parse failure.
//
// The reply is normalized first: a "final answer:" prefix is stripped and
// reasoning-trace blocks (<think>…</think>) are removed entirely, so trace
// content can never leak into an evidence field. The remainder is split into
// per-clue sections on the fixed Chinese section header carrying the clue
// ordinal.
//
// When not a single section parses, the result is exactly one synthetic
// medium-risk verdict rather than an empty slice: downstream stages must
// never crash on unparseable model output.
func ParseEvaluationResult(content string) []Verdict {
	if strings.HasPrefix(content, finalAnswerPrefix) {
		content = strings.TrimSpace(strings.TrimPrefix(content, finalAnswerPrefix))
	}
	content = strings.TrimSpace(thinkBlockRe.ReplaceAllString(content, ""))

	var verdicts []Verdict
	headers := clueHeaderRe.FindAllStringSubmatchIndex(content, -1)
	for i, loc := range headers {
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		section := content[loc[0]:end]

		verdict := Verdict{
			ClueID:     content[loc[2]:loc[3]],
			RiskLevel:  RiskUnknown,
			Evidence:   evidenceMissing,
			MatchScore: 0.0,
		}
		if m := matchScoreRe.FindStringSubmatch(section); m != nil {
			verdict.MatchScore, _ = strconv.ParseFloat(m[1], 64)
		}
		if m := riskLevelRe.FindStringSubmatch(section); m != nil {
			verdict.RiskLevel = strings.TrimSpace(m[1])
		}
		if m := evidenceRe.FindStringSubmatch(section); m != nil {
			if cleaned := cleanEvidence(m[1]); cleaned != "" {
				verdict.Evidence = cleaned
			}
		}
		verdicts = append(verdicts, verdict)
	}

	if len(verdicts) == 0 {
		logger.Log.Warn("无法从模型响应中解析出结构化评估结果，将创建默认评估结果")
		verdicts = []Verdict{{
			ClueID:     "1",
			MatchScore: fallbackMatchScore,
			RiskLevel:  RiskMedium,
			Evidence:   fallbackEvidence,
		}}
	}
	return verdicts
}

func cleanEvidence(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// applyTargetCompanyPolicy flags verdicts whose evidence mentions a
// configured target company and, as a risk-escalation policy, forces such
// verdicts to high risk when they score at or above the lowered
// target-company threshold. Scanning stops at the first company hit.
func applyTargetCompanyPolicy(verdicts []Verdict, targetCompanies []string) {
	for i := range verdicts {
		verdicts[i].IsTargetCompany = false
		if len(targetCompanies) == 0 {
			continue
		}
		evidence := strings.ToLower(verdicts[i].Evidence)
		for _, company := range targetCompanies {
			if !strings.Contains(evidence, strings.ToLower(company)) {
				continue
			}
			verdicts[i].IsTargetCompany = true
			if verdicts[i].MatchScore >= targetCompanyScoreThreshold {
				verdicts[i].RiskLevel = RiskHigh
			}
			break
		}
	}
}
