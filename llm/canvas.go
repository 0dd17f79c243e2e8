package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CanvasModelID is the Nova Canvas image generation model.
const CanvasModelID = "amazon.nova-canvas-v1:0"

// ImageRequest is a Nova Canvas text-to-image request.
//
// Canvas is not conversational: Prompt reads best as an image caption, and
// exclusions go in NegativePrompt rather than as negations in Prompt.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Config         *ImageGenerationConfig // nil leaves every setting to the model
}

// ImageGenerationConfig holds the optional Canvas generation settings. Zero
// values are omitted from the request.
type ImageGenerationConfig struct {
	NumberOfImages int     `json:"numberOfImages,omitempty" validate:"omitempty,min=1,max=5"`
	Width          int     `json:"width,omitempty" validate:"omitempty,min=320,max=4096"`
	Height         int     `json:"height,omitempty" validate:"omitempty,min=320,max=4096"`
	CfgScale       float64 `json:"cfgScale,omitempty" validate:"omitempty,min=1.1,max=10"`
	Seed           *int    `json:"seed,omitempty" validate:"omitempty,min=0,max=858993459"`
	Quality        string  `json:"quality,omitempty" validate:"omitempty,oneof=standard premium"`
}

// ImageResponse is the decoded result of a Canvas call.
type ImageResponse struct {
	Images    [][]byte // PNG bytes, in response order
	RequestID string
	// Error is the model-reported error, if any. It does not invalidate
	// Images that were returned alongside it.
	Error string
	Raw   []byte
}

type canvasRequest struct {
	TaskType              string                 `json:"taskType"`
	TextToImageParams     canvasTextToImage      `json:"textToImageParams"`
	ImageGenerationConfig *ImageGenerationConfig `json:"imageGenerationConfig,omitempty"`
}

type canvasTextToImage struct {
	Text         string `json:"text"`
	NegativeText string `json:"negativeText,omitempty"`
}

type canvasResponse struct {
	Images []string `json:"images"`
	Error  *string  `json:"error"`
}

// BuildCanvasBody serializes req into the Canvas TEXT_IMAGE body.
func BuildCanvasBody(req *ImageRequest) ([]byte, error) {
	if req.Prompt == "" {
		return nil, &Error{Kind: ErrInvalidRequest, Provider: "amazon", Message: "prompt is empty"}
	}
	cr := canvasRequest{
		TaskType: "TEXT_IMAGE",
		TextToImageParams: canvasTextToImage{
			Text:         req.Prompt,
			NegativeText: req.NegativePrompt,
		},
	}
	if req.Config != nil && *req.Config != (ImageGenerationConfig{}) {
		cfg := *req.Config
		cr.ImageGenerationConfig = &cfg
	}
	body, err := json.Marshal(cr)
	if err != nil {
		return nil, adapterError("amazon", "failed to marshal canvas request", err, nil)
	}
	return body, nil
}

// ParseCanvasResponse decodes a Canvas response body.
func ParseCanvasResponse(body []byte) (*ImageResponse, error) {
	var cr canvasResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, adapterError("amazon", "failed to unmarshal canvas response", err, body)
	}

	resp := &ImageResponse{Raw: body}
	if cr.Error != nil {
		resp.Error = *cr.Error
	}
	for i, img := range cr.Images {
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, adapterError("amazon", fmt.Sprintf("image %d is not valid base64", i), err, body)
		}
		resp.Images = append(resp.Images, data)
	}
	return resp, nil
}

// GenerateImages runs a Canvas text-to-image request. An empty model
// defaults to CanvasModelID.
func (c *Client) GenerateImages(ctx context.Context, model string, req *ImageRequest) (*ImageResponse, error) {
	if model == "" {
		model = CanvasModelID
	}
	body, err := BuildCanvasBody(req)
	if err != nil {
		return nil, err
	}

	out, err := c.invoke(ctx, "amazon", jsonInvokeInput(model, body))
	if err != nil {
		return nil, err
	}

	resp, err := ParseCanvasResponse(out.Body)
	if err != nil {
		return nil, err
	}
	resp.RequestID = out.RequestID
	return resp, nil
}
