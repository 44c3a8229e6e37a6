package core

import "fmt"

// ProviderName identifies an external analysis source.
type ProviderName string

const (
	ProviderNarrative ProviderName = "narrative"
	ProviderVision    ProviderName = "vision"
)

// SourceLabel is the label used in report metadata for a provider.
func (p ProviderName) SourceLabel() string {
	switch p {
	case ProviderNarrative:
		return "Gemini"
	case ProviderVision:
		return "ClarifAI"
	default:
		return string(p)
	}
}

// FailureKind classifies why a provider produced no payload.
type FailureKind string

const (
	FailureExhausted FailureKind = "exhausted"
	FailurePermanent FailureKind = "permanent"
	FailureCanceled  FailureKind = "canceled"
)

// ProviderFailure is the failure arm of a ProviderResult.
type ProviderFailure struct {
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
}

func (f *ProviderFailure) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", f.Kind, f.Attempts, f.Message)
}

// ProviderResult is either Success{Payload} or Failure. Exactly one arm is
// set; the zero value is not a valid result.
type ProviderResult[T any] struct {
	Provider ProviderName
	Payload  T
	Failure  *ProviderFailure
	Attempts int
}

// Success builds the success arm.
func Success[T any](provider ProviderName, payload T, attempts int) ProviderResult[T] {
	return ProviderResult[T]{Provider: provider, Payload: payload, Attempts: attempts}
}

// Failure builds the failure arm.
func Failure[T any](provider ProviderName, kind FailureKind, message string, attempts int) ProviderResult[T] {
	return ProviderResult[T]{
		Provider: provider,
		Attempts: attempts,
		Failure: &ProviderFailure{
			Kind:     kind,
			Message:  message,
			Attempts: attempts,
		},
	}
}

// OK reports whether the result carries a payload.
func (r ProviderResult[T]) OK() bool {
	return r.Failure == nil
}

// VisionModel names one sub-model of the vision provider.
type VisionModel string

const (
	VisionConcept              VisionModel = "concept"
	VisionFaceSentiment        VisionModel = "face_sentiment"
	VisionFaceAge              VisionModel = "face_age"
	VisionFaceGender           VisionModel = "face_gender"
	VisionFaceMulticulturality VisionModel = "face_multiculturality"
	VisionObject               VisionModel = "object"
	VisionCelebrity            VisionModel = "celebrity"
	VisionColor                VisionModel = "color"
)

// AllVisionModels lists the sub-models in call order.
func AllVisionModels() []VisionModel {
	return []VisionModel{
		VisionConcept,
		VisionFaceSentiment,
		VisionFaceAge,
		VisionFaceGender,
		VisionFaceMulticulturality,
		VisionObject,
		VisionCelebrity,
		VisionColor,
	}
}

// IsFace reports whether m is one of the four face variants.
func (m VisionModel) IsFace() bool {
	switch m {
	case VisionFaceSentiment, VisionFaceAge, VisionFaceGender, VisionFaceMulticulturality:
		return true
	}
	return false
}

// Detection is one labeled concept in a frame.
type Detection struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Frame holds the detections of one sampled frame.
type Frame struct {
	Index      int         `json:"index"`
	TimeMs     int64       `json:"time_ms"`
	Detections []Detection `json:"detections"`
}

// VisionFrames is the raw output of the vision provider: frame-indexed
// detections per sub-model.
type VisionFrames struct {
	SampleIntervalMs int                     `json:"sample_interval_ms"`
	Models           map[VisionModel][]Frame `json:"models"`
}

// TotalFrames returns the largest frame count across sub-models.
func (v VisionFrames) TotalFrames() int {
	n := 0
	for _, frames := range v.Models {
		if len(frames) > n {
			n = len(frames)
		}
	}
	return n
}
