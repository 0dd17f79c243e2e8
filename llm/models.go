package llm

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
)

// ModelLister abstracts the Bedrock control-plane ListFoundationModels call
// for testing. *bedrock.Client satisfies it.
type ModelLister interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// ModelSummary describes one foundation model.
type ModelSummary struct {
	ID               string
	Provider         string
	Name             string
	InputModalities  []string
	OutputModalities []string
	Streaming        bool
	InferenceTypes   []string
	Lifecycle        string
}

// ListModels returns the foundation models visible to the caller, sorted by
// provider then id. A non-empty provider keeps only models whose provider
// name matches it, ignoring case.
func ListModels(ctx context.Context, lister ModelLister, provider string) ([]ModelSummary, error) {
	out, err := lister.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, classifyBedrockControlError(err)
	}

	var models []ModelSummary
	for _, s := range out.ModelSummaries {
		m := fromModelSummary(s)
		if provider != "" && !strings.EqualFold(m.Provider, provider) {
			continue
		}
		models = append(models, m)
	}

	slices.SortFunc(models, func(a, b ModelSummary) int {
		if c := cmp.Compare(strings.ToLower(a.Provider), strings.ToLower(b.Provider)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return models, nil
}

func fromModelSummary(s bedrocktypes.FoundationModelSummary) ModelSummary {
	m := ModelSummary{
		ID:       derefStr(s.ModelId),
		Provider: derefStr(s.ProviderName),
		Name:     derefStr(s.ModelName),
	}
	for _, mod := range s.InputModalities {
		m.InputModalities = append(m.InputModalities, string(mod))
	}
	for _, mod := range s.OutputModalities {
		m.OutputModalities = append(m.OutputModalities, string(mod))
	}
	if s.ResponseStreamingSupported != nil {
		m.Streaming = *s.ResponseStreamingSupported
	}
	for _, t := range s.InferenceTypesSupported {
		m.InferenceTypes = append(m.InferenceTypes, string(t))
	}
	if s.ModelLifecycle != nil {
		m.Lifecycle = string(s.ModelLifecycle.Status)
	}
	return m
}

// classifyBedrockControlError maps control-plane exceptions, which live in a
// different types package from the runtime ones.
func classifyBedrockControlError(err error) error {
	var accessDenied *bedrocktypes.AccessDeniedException
	var throttling *bedrocktypes.ThrottlingException
	var validation *bedrocktypes.ValidationException
	var internal *bedrocktypes.InternalServerException

	switch {
	case errors.As(err, &accessDenied):
		return &Error{Kind: ErrAuthentication, Message: err.Error(), Cause: err}
	case errors.As(err, &throttling):
		return &Error{Kind: ErrRateLimit, Message: err.Error(), Cause: err}
	case errors.As(err, &validation):
		return &Error{Kind: ErrInvalidRequest, Message: err.Error(), Cause: err}
	case errors.As(err, &internal):
		return &Error{Kind: ErrServer, Message: err.Error(), Cause: err}
	}
	// smithy API codes and message heuristics are shared with the runtime
	return classifyBedrockError("", err)
}
