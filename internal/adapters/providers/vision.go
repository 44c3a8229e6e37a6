package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// statusSuccess is the vision API's success code inside a 200 response.
const statusSuccess = 10000

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// DefaultVisionModels maps each sub-model to its public model id.
var DefaultVisionModels = map[core.VisionModel]string{
	core.VisionConcept:              "general-image-recognition",
	core.VisionFaceSentiment:        "face-sentiment-recognition",
	core.VisionFaceAge:              "age-demographics-recognition",
	core.VisionFaceGender:           "gender-demographics-recognition",
	core.VisionFaceMulticulturality: "ethnicity-demographics-recognition",
	core.VisionObject:               "general-image-detection",
	core.VisionCelebrity:            "celebrity-face-recognition",
	core.VisionColor:                "color-recognition",
}

// VisionConfig configures the vision REST client.
type VisionConfig struct {
	BaseURL          string
	APIKey           string
	UserID           string
	AppID            string
	SampleIntervalMs int
	Timeout          time.Duration
	Models           map[core.VisionModel]string
	HTTPClient       *http.Client
}

// VisionConfigFrom converts the vision provider config section.
func VisionConfigFrom(cfg config.VisionConfig) VisionConfig {
	models := make(map[core.VisionModel]string, len(DefaultVisionModels))
	for m, id := range DefaultVisionModels {
		models[m] = id
	}
	for name, id := range cfg.Models {
		if id != "" {
			models[core.VisionModel(name)] = id
		}
	}
	return VisionConfig{
		BaseURL:          cfg.BaseURL,
		APIKey:           cfg.APIKey,
		UserID:           cfg.UserID,
		AppID:            cfg.AppID,
		SampleIntervalMs: cfg.SampleIntervalMs,
		Timeout:          config.Duration(cfg.Timeout, 5*time.Minute),
		Models:           models,
	}
}

// VisionClient calls every configured vision sub-model on a video URL and
// returns frame-indexed detections per model.
type VisionClient struct {
	cfg  VisionConfig
	http *http.Client
}

// NewVisionClient creates a client. The API key is required.
func NewVisionClient(cfg VisionConfig) (*VisionClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "vision provider api key is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.clarifai.com"
	}
	if cfg.SampleIntervalMs <= 0 {
		cfg.SampleIntervalMs = 1000
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultVisionModels
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &VisionClient{cfg: cfg, http: client}, nil
}

// Name implements core.VisionCaller.
func (c *VisionClient) Name() core.ProviderName {
	return core.ProviderVision
}

// Call runs the sub-models concurrently. The whole call fails if any
// sub-model fails so the retry envelope sees a single outcome.
func (c *VisionClient) Call(ctx context.Context, videoURL string, opts core.CallOptions) (*core.VisionFrames, error) {
	sample := opts.SampleIntervalMs
	if sample <= 0 {
		sample = c.cfg.SampleIntervalMs
	}
	models := opts.Models
	if len(models) == 0 {
		models = core.AllVisionModels()
	}

	ids := make([]string, len(models))
	for i, m := range models {
		id, ok := c.cfg.Models[m]
		if !ok {
			return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("no model id configured for %s", m))
		}
		ids[i] = id
	}

	results := make([][]core.Frame, len(models))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range models {
		g.Go(func() error {
			frames, err := c.callModel(gctx, ids[i], m, videoURL, sample)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			results[i] = frames
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &core.VisionFrames{
		SampleIntervalMs: sample,
		Models:           make(map[core.VisionModel][]core.Frame, len(models)),
	}
	for i, m := range models {
		out.Models[m] = results[i]
	}
	return out, nil
}

type outputsRequest struct {
	Inputs []requestInput `json:"inputs"`
	Model  requestModel   `json:"model"`
}

type requestInput struct {
	Data struct {
		Video struct {
			URL string `json:"url"`
		} `json:"video"`
	} `json:"data"`
}

type requestModel struct {
	OutputInfo struct {
		OutputConfig struct {
			SampleMs int `json:"sample_ms"`
		} `json:"output_config"`
	} `json:"output_info"`
}

type apiStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

type apiConcept struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type apiColor struct {
	RawHex string  `json:"raw_hex"`
	Value  float64 `json:"value"`
	W3C    struct {
		Name string `json:"name"`
	} `json:"w3c"`
}

type apiFrameData struct {
	Concepts []apiConcept `json:"concepts"`
	Colors   []apiColor   `json:"colors"`
	Regions  []struct {
		Data struct {
			Concepts []apiConcept `json:"concepts"`
		} `json:"data"`
	} `json:"regions"`
}

type outputsResponse struct {
	Status  apiStatus `json:"status"`
	Outputs []struct {
		Status apiStatus `json:"status"`
		Data   struct {
			Frames []struct {
				FrameInfo struct {
					Index int   `json:"index"`
					Time  int64 `json:"time"`
				} `json:"frame_info"`
				Data apiFrameData `json:"data"`
			} `json:"frames"`
		} `json:"data"`
	} `json:"outputs"`
}

func (c *VisionClient) callModel(ctx context.Context, modelID string, model core.VisionModel, videoURL string, sampleMs int) ([]core.Frame, error) {
	var body outputsRequest
	var in requestInput
	in.Data.Video.URL = videoURL
	body.Inputs = []requestInput{in}
	body.Model.OutputInfo.OutputConfig.SampleMs = sampleMs

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v2/users/%s/apps/%s/models/%s/outputs",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(c.cfg.UserID), url.PathEscape(c.cfg.AppID), url.PathEscape(modelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}

	var decoded outputsResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, core.ErrMalformedResponse(core.ProviderVision, "decoding response: "+err.Error()).WithCause(err)
	}
	if decoded.Status.Code != 0 && decoded.Status.Code != statusSuccess {
		return nil, core.ErrPermanentProvider(core.ProviderVision,
			fmt.Sprintf("status %d: %s %s", decoded.Status.Code, decoded.Status.Description, decoded.Status.Details))
	}
	if len(decoded.Outputs) == 0 {
		return nil, core.ErrMalformedResponse(core.ProviderVision, "response has no outputs")
	}

	out := decoded.Outputs[0]
	frames := make([]core.Frame, 0, len(out.Data.Frames))
	for _, f := range out.Data.Frames {
		frames = append(frames, core.Frame{
			Index:      f.FrameInfo.Index,
			TimeMs:     f.FrameInfo.Time,
			Detections: detections(model, f.Data),
		})
	}
	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].Index != frames[j].Index {
			return frames[i].Index < frames[j].Index
		}
		return frames[i].TimeMs < frames[j].TimeMs
	})
	return frames, nil
}

// detections flattens one frame into labeled values: face models report
// one concept list per region, colors report their W3C name.
func detections(model core.VisionModel, d apiFrameData) []core.Detection {
	var out []core.Detection
	switch {
	case model == core.VisionColor:
		for _, col := range d.Colors {
			name := strings.ToLower(col.W3C.Name)
			if name == "" {
				name = strings.ToLower(col.RawHex)
			}
			out = append(out, core.Detection{Name: name, Value: col.Value})
		}
	case model.IsFace() || model == core.VisionCelebrity || model == core.VisionObject:
		for _, r := range d.Regions {
			for _, c := range r.Data.Concepts {
				out = append(out, core.Detection{Name: strings.ToLower(c.Name), Value: c.Value})
			}
		}
		if len(d.Regions) == 0 {
			out = appendConcepts(out, d.Concepts)
		}
	default:
		out = appendConcepts(out, d.Concepts)
	}
	if out == nil {
		out = []core.Detection{}
	}
	return out
}

func appendConcepts(out []core.Detection, concepts []apiConcept) []core.Detection {
	for _, c := range concepts {
		out = append(out, core.Detection{Name: strings.ToLower(c.Name), Value: c.Value})
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
