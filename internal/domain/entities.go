package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")

	// Boundary validation errors are caller input errors.
	ErrUnsupportedFormat = fmt.Errorf("unsupported format: %w", ErrInvalidArgument)
	ErrSizeLimitExceeded = fmt.Errorf("size limit exceeded: %w", ErrInvalidArgument)
	ErrPageLimitExceeded = fmt.Errorf("page limit exceeded: %w", ErrInvalidArgument)
	ErrCSVSchemaInvalid  = fmt.Errorf("csv schema invalid: %w", ErrInvalidArgument)

	ErrBlobNotFound = fmt.Errorf("blob %w", ErrNotFound)
	ErrBlobCorrupt  = fmt.Errorf("blob corrupt: %w", ErrInternal)
	ErrKeyNotFound  = fmt.Errorf("key %w", ErrNotFound)

	// ErrModelInvocationFailed covers transport, auth and status failures of the model call.
	ErrModelInvocationFailed = errors.New("model invocation failed")
)

// Context is an alias so ports can be declared without importing context everywhere.
type Context = context.Context

// TargetType enumerates what kind of system is being assessed.
type TargetType string

const (
	TargetLLM  TargetType = "LLM"
	TargetSaaS TargetType = "SaaS"
)

// CriteriaItem is one evaluable requirement of the active criteria set.
type CriteriaItem struct {
	ItemID             string `json:"itemId"`
	ItemName           string `json:"itemName"`
	Category           string `json:"category"`
	Definition         string `json:"definition"`
	ReferenceStandards string `json:"referenceStandards,omitempty"`
	EvidenceSources    string `json:"evidenceSources,omitempty"`
	Risks              string `json:"risks,omitempty"`
}

// CriteriaSet is the process-wide criteria configuration. It is replaced as a
// whole and never merged.
type CriteriaSet struct {
	Version   string         `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Items     []CriteriaItem `json:"items"`
}

// DocumentPage is a logical page: 1-based and contiguous within a document,
// not necessarily a physical page.
type DocumentPage struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// SegmentedDocument keeps the heuristic logical pages next to the physical
// page count reported by the extractor (0 when the format has none).
type SegmentedDocument struct {
	Pages         []DocumentPage
	PhysicalPages int
}

// LogicalPages returns the number of heuristic pages.
func (d SegmentedDocument) LogicalPages() int { return len(d.Pages) }

// ReportedPages is the count checked against the page limit: the physical
// count when the format reports one, otherwise the logical count.
func (d SegmentedDocument) ReportedPages() int {
	if d.PhysicalPages > 0 {
		return d.PhysicalPages
	}
	return len(d.Pages)
}

// Extraction is the raw output of a text extractor.
type Extraction struct {
	Text      string
	PageCount int
}

// FileMetadata is the caller-supplied part of a manifest.
type FileMetadata struct {
	Filename      string
	Type          string
	Pages         int
	PhysicalPages int
}

// FileManifest describes how a stored document was chunked.
type FileManifest struct {
	FileID        string    `json:"fileId"`
	Filename      string    `json:"filename"`
	Size          int64     `json:"size"`
	Type          string    `json:"type"`
	ChunkSize     int       `json:"chunkSize"`
	ChunkCount    int       `json:"chunkCount"`
	SHA256        string    `json:"sha256"`
	Pages         int       `json:"pages"`
	PhysicalPages int       `json:"physicalPages,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Score is a rating in 1..5. The zero value means "no score" and is encoded
// as JSON null.
type Score int

// NoScore is the absent score.
const NoScore Score = 0

// Valid reports whether s is none or within 1..5.
func (s Score) Valid() bool { return s >= 0 && s <= 5 }

// IsNone reports whether the score is absent.
func (s Score) IsNone() bool { return s == NoScore }

// MarshalJSON encodes NoScore as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.IsNone() {
		return []byte("null"), nil
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON accepts null or an integer.
func (s *Score) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = NoScore
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score(v)
	return nil
}

// TriState is the coarse verdict accompanying a score.
type TriState string

const (
	TriAchieved    TriState = "achieved"
	TriPartial     TriState = "partial"
	TriNotAchieved TriState = "not-achieved"
	TriUnknown     TriState = "unknown"
)

// Valid reports whether t is one of the four canonical values.
func (t TriState) Valid() bool {
	switch t {
	case TriAchieved, TriPartial, TriNotAchieved, TriUnknown:
		return true
	}
	return false
}

// PageEvidence is one cited page with a quote.
type PageEvidence struct {
	Page  int    `json:"page"`
	Quote string `json:"quote"`
}

// Evidence supports a rating. An empty Pages list means no support was found.
type Evidence struct {
	Pages      []PageEvidence `json:"pages"`
	Confidence float64        `json:"confidence"`
}

// AssessmentItemRating is the verdict for one criterion.
type AssessmentItemRating struct {
	ItemID   string   `json:"itemId"`
	ItemName string   `json:"itemName"`
	Category string   `json:"category"`
	Score    Score    `json:"score"`
	TriState TriState `json:"triState"`
	Reason   string   `json:"reason"`
	Evidence Evidence `json:"evidence"`
}

// Overall is the free-text narrative of one evaluation run.
type Overall struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Risks           []string `json:"risks"`
	Recommendations []string `json:"recommendations"`
}

// ModelResponse is the validated structured output of the evaluation model.
type ModelResponse struct {
	Overall Overall                `json:"overall"`
	Items   []AssessmentItemRating `json:"items"`
}

// Metrics summarizes a list of ratings.
type Metrics struct {
	AchievedRate     float64 `json:"achievedRate"`
	UnknownCount     int     `json:"unknownCount"`
	ScoreAvg         float64 `json:"scoreAvg"`
	AchievedCount    int     `json:"achievedCount"`
	PartialCount     int     `json:"partialCount"`
	NotAchievedCount int     `json:"notAchievedCount"`
}

// TargetInfo identifies the assessed system.
type TargetInfo struct {
	TargetType TargetType `json:"targetType"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Provider   string     `json:"provider,omitempty"`
}

// FileInfo references a stored document used by an assessment.
type FileInfo struct {
	FileID    string `json:"fileId"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	PageCount int    `json:"pageCount"`
}

// Assessment is the terminal, immutable result of one evaluation request.
// Invariant: len(Ratings) equals the size of the criteria set it was run with.
type Assessment struct {
	ID              string                 `json:"id"`
	CreatedAt       time.Time              `json:"createdAt"`
	Target          TargetInfo             `json:"target"`
	Notes           string                 `json:"notes,omitempty"`
	Files           []FileInfo             `json:"files"`
	CriteriaVersion string                 `json:"criteriaVersion"`
	Fallback        bool                   `json:"fallback"`
	Metrics         Metrics                `json:"metrics"`
	Overall         Overall                `json:"overall"`
	Ratings         []AssessmentItemRating `json:"ratings"`
}

// AssessmentRequest is the input of one evaluation run.
type AssessmentRequest struct {
	Target  TargetInfo
	Notes   string
	FileIDs []string
}
