package client

import "context"

// Request is a single image description call
type Request struct {
	Model    string
	Prompt   string
	ImageB64 string
	// MIME is the media type of ImageB64, used by OpenAI-style data URLs
	MIME        string
	MaxTokens   int
	Temperature float64
}

// VisionClient describes images with a vision-language model server
type VisionClient interface {
	Describe(ctx context.Context, req Request) (string, error)
	Ping(ctx context.Context) error
}
