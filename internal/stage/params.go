package stage

import (
	"litsieve/internal/config"
	"litsieve/internal/llm"
)

func inferenceParams(params config.Inference) llm.Params {
	return llm.Params{
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	}
}
