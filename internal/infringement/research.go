package infringement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
	"patentwatch/internal/prompts"
	"patentwatch/internal/search"
)

// researchDoneSentinel ends the research conversation. The model signals
// completion by emitting this phrase in place of a tool call; the fragile
// string literal lives only here.
const researchDoneSentinel = "研究完成"

func researchComplete(content string) bool {
	return strings.Contains(content, researchDoneSentinel)
}

const searchToolName = "search_internet"

var searchTools = []llm.Tool{{
	Type: "function",
	Function: llm.FunctionDefinition{
		Name:        searchToolName,
		Description: "当需要获取最新互联网信息时使用,如果有多个需要查询的问题可以分成多次查询",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":      map[string]any{"type": "string", "description": "搜索关键词"},
				"after_date": map[string]any{"type": "string", "description": "只返回此日期之后的结果，格式YYYY-MM-DD"},
			},
			"required": []string{"query"},
		},
	},
}}

// Searcher is the external web-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query, afterDate string) (digest string, urls []string, err error)
}

// ResearchAgent drives the tool-augmented research conversation.
type ResearchAgent struct {
	adapter  llm.Adapter
	searcher Searcher
}

func NewResearchAgent(adapter llm.Adapter, searcher Searcher) *ResearchAgent {
	return &ResearchAgent{adapter: adapter, searcher: searcher}
}

// ConductResearch runs up to maxResearchRounds conversational rounds. Each
// round either executes the model's requested searches or ends on the
// completion sentinel. A model failure aborts the stage; round exhaustion
// degrades to returning the partial materials after the target-company
// backfill pass.
func (a *ResearchAgent) ConductResearch(ctx context.Context, patentText, researchPrompt string) (*Materials, error) {
	materials := &Materials{OriginalText: patentText}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: researchPrompt},
		{Role: llm.RoleUser, Content: truncate(patentText, researchTextLimit)},
	}

	for round := 0; round < maxResearchRounds; round++ {
		resp, err := a.adapter.GetResponse(ctx, messages,
			llm.WithTools(searchTools), llm.WithToolChoice("auto"))
		if err != nil || resp == nil || len(resp.Choices) == 0 {
			if err == nil {
				err = errors.New("empty response")
			}
			return nil, fmt.Errorf("research stage: model unavailable: %w", err)
		}

		msg := resp.FirstMessage()
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			if researchComplete(msg.Content) {
				return materials, nil
			}
			continue
		}

		for _, tc := range msg.ToolCalls {
			if tc.Function.Name != searchToolName {
				continue
			}
			messages = append(messages, a.executeSearch(ctx, materials, tc))
		}
		// Throttle between tool rounds to stay inside external rate limits.
		if err := sleepCtx(ctx, searchCooldown); err != nil {
			return nil, err
		}
	}

	// Out of rounds: mark which collected results mention a configured
	// target company, then return the partial materials anyway.
	markTargetResults(materials, extractTargetCompanies(researchPrompt))
	return materials, nil
}

func (a *ResearchAgent) executeSearch(ctx context.Context, materials *Materials, tc llm.ToolCall) llm.Message {
	reply := func(content string) llm.Message {
		return llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: tc.ID,
			Name:       searchToolName,
			Content:    content,
		}
	}

	var args struct {
		Query     string `json:"query"`
		AfterDate string `json:"after_date"`
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		logger.Log.Errorf("search_internet arguments decode failed: %v", err)
		return reply(search.ResultUnavailable)
	}

	logger.Log.Infof("[执行搜索] 关键词: %s 日期筛选: after:%s", args.Query, orNone(args.AfterDate))
	digest, urls, err := a.searcher.Search(ctx, args.Query, args.AfterDate)
	if err != nil {
		return reply(search.ResultUnavailable)
	}

	materials.SearchResults = append(materials.SearchResults, SearchResult{
		Query:     args.Query,
		Result:    digest,
		URLs:      urls,
		AfterDate: args.AfterDate,
	})
	return reply(digest)
}

// extractTargetCompanies recovers the target-company list embedded in a
// customized research prompt by scanning for the marker phrase.
func extractTargetCompanies(researchPrompt string) []string {
	idx := strings.Index(researchPrompt, prompts.TargetCompanyMarker)
	if idx < 0 {
		return nil
	}
	rest := researchPrompt[idx+len(prompts.TargetCompanyMarker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	parts := strings.SplitN(rest, "：", 2)
	if len(parts) != 2 {
		return nil
	}
	var companies []string
	for _, c := range strings.Split(parts[1], "、") {
		if c = strings.TrimSpace(c); c != "" {
			companies = append(companies, c)
		}
	}
	return companies
}

func markTargetResults(materials *Materials, companies []string) {
	for i := range materials.SearchResults {
		text := strings.ToLower(materials.SearchResults[i].Result)
		materials.SearchResults[i].IsTargetCompany = false
		for _, company := range companies {
			if strings.Contains(text, strings.ToLower(company)) {
				materials.SearchResults[i].IsTargetCompany = true
				break
			}
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "无"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
