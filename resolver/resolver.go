// Package resolver turns a claimed job's source into something the
// worker can act on: segments that are already final, an audio file
// that still needs transcription, or a fallback verdict when the
// source cannot yield a transcript but the job itself did nothing
// wrong.
package resolver

import (
	"context"
	"fmt"

	"transcriptd/models"
)

type OutcomeKind int

const (
	// OutcomeReady carries final segments; no transcription needed.
	OutcomeReady OutcomeKind = iota
	// OutcomeNeedsTranscription carries a normalized audio path.
	OutcomeNeedsTranscription
	// OutcomeFallback means the source declined to produce a
	// transcript for a recorded reason. Terminal, never retried.
	OutcomeFallback
)

type Outcome struct {
	Kind     OutcomeKind
	Segments []models.Segment
	Language string
	Duration float64
	Title    string

	// Set for OutcomeNeedsTranscription.
	AudioPath string

	// Set for OutcomeFallback.
	Reason string

	// Cleanup releases intermediate files; callers must invoke it
	// once the outcome has been consumed. May be nil.
	Cleanup func()
}

func (o *Outcome) Close() {
	if o.Cleanup != nil {
		o.Cleanup()
	}
}

// A Resolver prepares one source kind. Errors are real failures and
// flow into the retry policy; fallback is not an error.
type Resolver interface {
	Resolve(ctx context.Context, job *models.Job) (*Outcome, error)
}

// Set routes jobs to the resolver for their source kind.
type Set struct {
	resolvers map[models.SourceKind]Resolver
}

func NewSet() *Set {
	return &Set{resolvers: make(map[models.SourceKind]Resolver)}
}

func (s *Set) Register(kind models.SourceKind, r Resolver) {
	s.resolvers[kind] = r
}

func (s *Set) Resolve(ctx context.Context, job *models.Job) (*Outcome, error) {
	r, ok := s.resolvers[job.Kind]
	if !ok {
		return nil, fmt.Errorf("no resolver registered for source kind %q", job.Kind)
	}
	return r.Resolve(ctx, job)
}

func fallback(reason string) *Outcome {
	return &Outcome{Kind: OutcomeFallback, Reason: reason}
}
