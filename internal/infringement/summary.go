package infringement

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
)

// SummaryFailedNotice is the report body when the summary model cannot be
// reached. The pipeline still returns a report in this case.
const SummaryFailedNotice = "总结失败"

// SummaryAgent condenses the evaluated materials into the final report text
// in a single model round.
type SummaryAgent struct {
	adapter llm.Adapter
}

func NewSummaryAgent(adapter llm.Adapter) *SummaryAgent {
	return &SummaryAgent{adapter: adapter}
}

// GenerateSummary builds the report context from the patent text, the
// verdict digest and the search digest, and returns the model's answer
// wrapped under the report heading.
func (a *SummaryAgent) GenerateSummary(ctx context.Context, materials *Materials, systemPrompt string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: buildSummaryContext(materials)},
	}
	resp, err := a.adapter.GetResponse(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary: empty response")
	}
	msg := resp.FirstMessage()
	logger.Log.Debugf("总结阶段完成，报告长度 %d 字符", len(msg.Content))
	return fmt.Sprintf("## 分析结果\n%s\n\n", msg.Content), nil
}

func buildSummaryContext(materials *Materials) string {
	return fmt.Sprintf("原始专利内容：\n%s\n\n评估后侵权线索：\n%s\n\n搜索结果摘要：\n%s",
		truncate(materials.OriginalText, summaryTextLimit),
		buildVerdictDigest(materials.EvaluatedClues),
		buildSearchDigest(materials.SearchResults))
}

func buildVerdictDigest(verdicts []Verdict) string {
	blocks := make([]string, 0, len(verdicts))
	for i, v := range verdicts {
		var b strings.Builder
		fmt.Fprintf(&b, "### 线索%d评估结果\n", i+1)
		fmt.Fprintf(&b, "- 匹配度：%s分\n", strconv.FormatFloat(v.MatchScore, 'f', -1, 64))
		fmt.Fprintf(&b, "- 风险等级：%s\n", v.RiskLevel)
		fmt.Fprintf(&b, "- 证据：%s", v.Evidence)
		if v.IsTargetCompany {
			b.WriteString("\n- 目标企业：是")
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// buildSearchDigest keeps at most three non-blank snippet lines per query,
// numbered by order found. Query blocks are separated by exactly one blank
// line with none after the last block.
func buildSearchDigest(results []SearchResult) string {
	var lines []string
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("### 搜索查询 %d: %s", i+1, r.Query))
		kept := 0
		for _, snippet := range strings.Split(r.Result, "\n") {
			if kept >= maxSnippetsPerQuery {
				break
			}
			snippet = strings.TrimSpace(snippet)
			if snippet == "" {
				continue
			}
			kept++
			lines = append(lines, fmt.Sprintf("- 片段 %d: %s", kept, snippet))
		}
		if kept == 0 {
			lines = append(lines, "- 无有效片段")
		}
		lines = append(lines, "")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

var (
	reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	reportPolicy   = bluemonday.UGCPolicy()
)

// RenderHTML converts report markdown to sanitized HTML for the web front
// end.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return reportPolicy.Sanitize(buf.String()), nil
}
