// Package conversation drives the prompt chain behind every relay request:
// a generation exchange, an ordered series of correction rounds, and a
// final conversion of the program into structured output.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/config"
	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"go.uber.org/zap"
)

// Pacer admits model calls. Wait blocks until the next call may be sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Stage names used in logs and error messages.
const (
	StageGeneration   = "generation"
	StageFinalization = "finalization"
)

func critiqueStage(round int) string     { return fmt.Sprintf("correction %d critique", round) }
func regenerationStage(round int) string { return fmt.Sprintf("correction %d regeneration", round) }

// Orchestrator runs one conversation per request against a shared provider.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	provider   model.Provider
	pacer      Pacer
	promptPath string
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator. The prompt file at promptPath is
// re-read for every request so edits apply without a restart.
func NewOrchestrator(provider model.Provider, pacer Pacer, promptPath string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider:   provider,
		pacer:      pacer,
		promptPath: promptPath,
		logger:     logger,
	}
}

// Result summarizes a completed run.
type Result struct {
	Reply         string
	Calls         int
	Critiques     int
	Regenerations int
}

// Run executes the conversation and returns the structured reply.
func (o *Orchestrator) Run(ctx context.Context, request []byte) (string, error) {
	res, err := o.RunDetailed(ctx, request)
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

// RunDetailed executes the conversation and reports what it did. On error
// the partial Result is still returned.
func (o *Orchestrator) RunDetailed(ctx context.Context, request []byte) (*Result, error) {
	res := &Result{}

	prompts, err := config.LoadPrompts(o.promptPath)
	if err != nil {
		return res, fmt.Errorf("failed to load prompts: %w", err)
	}

	task := taskText(prompts, request)
	vars := prompts.ExistingVarsSection()
	o.logger.Info("Starting conversation",
		zap.String("task", task),
		zap.Int("correction_prompts", len(prompts.CorrectionPrompts)))

	gen := model.NewConversation(
		model.SystemMessage(prompts.SystemMessage+prompts.LanguageDescription+prompts.FunctionsList+vars),
		model.UserMessage(task),
	)

	code, err := o.send(ctx, StageGeneration, gen.Messages(), res)
	if err != nil {
		return res, err
	}
	gen.Append(model.AssistantMessage(code))

	correctionSystem := prompts.CorrectionSystemMessage + prompts.LanguageDescription + prompts.FunctionsList + vars

	for i, correction := range prompts.CorrectionPrompts {
		round := i + 1

		critique, err := o.send(ctx, critiqueStage(round), []model.Message{
			model.SystemMessage(correctionSystem),
			model.UserMessage(correction + prompts.TaskHeader + task + prompts.CodeHeader + code),
		}, res)
		if err != nil {
			return res, err
		}
		res.Critiques++

		critique = strings.TrimSpace(critique)
		if critique == "" {
			o.logger.Debug("No corrections needed", zap.Int("round", round))
			continue
		}

		gen.Append(model.UserMessage(prompts.CorrectionPreamble + critique))
		code, err = o.send(ctx, regenerationStage(round), gen.Messages(), res)
		if err != nil {
			return res, err
		}
		gen.Append(model.AssistantMessage(code))
		res.Regenerations++
	}

	reply, err := o.send(ctx, StageFinalization, []model.Message{
		model.SystemMessage(prompts.ConvertSystemMessage + prompts.FunctionsList),
		model.UserMessage(prompts.ConvertUserPrompt + code),
	}, res)
	if err != nil {
		return res, err
	}

	res.Reply = reply
	o.logger.Info("Conversation finished",
		zap.Int("calls", res.Calls),
		zap.Int("critiques", res.Critiques),
		zap.Int("regenerations", res.Regenerations))
	return res, nil
}

// send waits for the pacer and performs one model call.
func (o *Orchestrator) send(ctx context.Context, stage string, messages []model.Message, res *Result) (string, error) {
	if err := o.pacer.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	res.Calls++
	reply, err := o.provider.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	o.logger.Debug("Model replied",
		zap.String("stage", stage),
		zap.Int("turns", len(messages)),
		zap.Int("reply_bytes", len(reply.Content)))
	return reply.Content, nil
}

// taskText picks the task for this request. The configured prompt is used
// unless the prompt file opts in to taking the task from the payload.
func taskText(prompts *config.Prompts, request []byte) string {
	if prompts.UseRequestAsTask {
		if payload := strings.TrimSpace(string(request)); payload != "" {
			return payload
		}
	}
	return prompts.UserPrompt
}
