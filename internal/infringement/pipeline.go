package infringement

import (
	"context"
	"fmt"

	"patentwatch/internal/config"
	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
	"patentwatch/internal/prompts"
	"patentwatch/internal/rules"
)

// Stage-gate notices returned as the report body when a stage cannot
// produce usable output. Callers always get a report string; the pipeline
// degrades rather than aborts.
const (
	AnalysisFailedNotice   = "分析失败"
	EvaluationFailedNotice = "评估失败，线索信息不完整"
)

// Pipeline wires the three stages together and holds the customized system
// prompts built once from the analysis configuration.
type Pipeline struct {
	research   *ResearchAgent
	evaluation *EvaluationAgent
	summary    *SummaryAgent

	researchPrompt   string
	evaluationPrompt string
	summaryPrompt    string
	targetCompanies  []string
}

// NewPipeline builds the full stage chain. When cfg.EnableEvaluation is off
// the evaluation stage is skipped entirely and research output feeds the
// summary with no verdicts, matching the lightweight two-stage mode.
func NewPipeline(adapter llm.Adapter, searcher Searcher, cfg config.AnalysisConfig) (*Pipeline, error) {
	params := prompts.Params{
		CompanyName:      cfg.CompanyName,
		FocusArea:        cfg.FocusArea,
		TargetCompanies:  cfg.TargetCompanies,
		ExcludeCompanies: cfg.ExcludeCompanies,
	}

	p := &Pipeline{
		research:        NewResearchAgent(adapter, searcher),
		summary:         NewSummaryAgent(adapter),
		targetCompanies: cfg.TargetCompanies,
	}

	var err error
	if p.researchPrompt, err = prompts.Customize(prompts.StageResearch, params); err != nil {
		return nil, err
	}
	if p.summaryPrompt, err = prompts.Customize(prompts.StageSummary, params); err != nil {
		return nil, err
	}

	if cfg.EnableEvaluation {
		criteria, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("build pipeline: %w", err)
		}
		p.evaluation = NewEvaluationAgent(adapter, criteria)
		if p.evaluationPrompt, err = prompts.Customize(prompts.StageEvaluation, params); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AnalyzePatent runs research, optional evaluation, and summary over the
// given patent text and returns the report markdown. Stage failures degrade
// to the corresponding notice string; only context cancellation surfaces as
// an error.
func (p *Pipeline) AnalyzePatent(ctx context.Context, patentText string) (string, error) {
	materials, err := p.research.ConductResearch(ctx, patentText, p.researchPrompt)
	if err != nil || materials == nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Log.Errorf("研究阶段失败: %v", err)
		return AnalysisFailedNotice, nil
	}
	logger.Log.Infof("研究阶段完成，共收集 %d 条搜索结果", len(materials.SearchResults))

	if p.evaluation != nil {
		verdicts, err := p.evaluation.ConductEvaluation(ctx, materials, p.evaluationPrompt, p.targetCompanies)
		if err != nil || len(verdicts) == 0 {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Log.Errorf("评估阶段失败: %v", err)
			return EvaluationFailedNotice, nil
		}

		// Only clues at or above the report threshold reach the summary.
		high := verdicts[:0:0]
		for _, v := range verdicts {
			if v.MatchScore >= highRiskThreshold {
				high = append(high, v)
			}
		}
		materials.EvaluatedClues = high
		logger.Log.Infof("评估阶段完成，%d/%d 条线索达到报告阈值", len(high), len(verdicts))
	}

	report, err := p.summary.GenerateSummary(ctx, materials, p.summaryPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Log.Errorf("总结阶段失败: %v", err)
		return SummaryFailedNotice, nil
	}
	return report, nil
}
