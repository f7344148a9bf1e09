// Package batch runs the identity pipeline over many addresses. It is
// best-effort: every address is attempted regardless of how the others
// fare, and each reports its own outcome.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/civicid/internal/identicon"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/civicid/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// failure reasons reported per address
const (
	ReasonInvalidAddress = "invalid_address"
	ReasonInvalidSize    = "invalid_size"
	ReasonRender         = "render"
	ReasonIO             = "io"
	ReasonCanceled       = "canceled"
	ReasonUnknown        = "error"
)

// Writer persists the two artifacts of one address as a unit.
type Writer interface {
	Save(a address.Address, image, meta []byte) (artifact.Paths, error)
}

// RenderFunc produces the encoded image for an address.
type RenderFunc func(a address.Address, size int) ([]byte, error)

// Pipeline turns one address into a persisted image and metadata record.
type Pipeline struct {
	Size     int
	Composer metadata.Composer
	URLs     metadata.URLs
	Store    Writer

	// Render defaults to identicon.Generate.
	Render RenderFunc
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Tracer defaults to the global provider's "civicid/batch" tracer.
	Tracer trace.Tracer
}

// Outcome is the result for one input.
type Outcome struct {
	Input    string
	Address  address.Address
	Paths    artifact.Paths
	Metadata metadata.Metadata
	Err      error
}

// OK reports whether both artifacts were written.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason classifies the failure, or returns "" on success.
func (o Outcome) Reason() string {
	return Reason(o.Err)
}

// Reason classifies err into one of the Reason constants.
func Reason(err error) string {
	var re *identicon.RenderError
	var we *artifact.WriteError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, address.ErrInvalid):
		return ReasonInvalidAddress
	case errors.Is(err, identicon.ErrInvalidSize):
		return ReasonInvalidSize
	case errors.As(err, &re):
		return ReasonRender
	case errors.As(err, &we):
		return ReasonIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	}
	return ReasonUnknown
}

// Process runs the pipeline for one raw address.
func (p *Pipeline) Process(ctx context.Context, raw string) Outcome {
	out := Outcome{Input: raw}
	start := time.Now()

	ctx, span := p.tracer().Start(ctx, "identity.generate",
		trace.WithAttributes(attribute.String("identity.input", raw)),
	)
	out.Err = p.process(ctx, raw, &out)
	endSpan(span, out)

	p.record(out, time.Since(start))
	return out
}

func endSpan(span trace.Span, o Outcome) {
	if o.OK() {
		span.SetAttributes(
			attribute.String("identity.address", o.Address.Hex()),
			attribute.String("identity.metadata", o.Paths.Metadata),
		)
	} else {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Reason())
	}
	span.End()
}

func (p *Pipeline) process(ctx context.Context, raw string, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a, err := address.Parse(raw)
	if err != nil {
		return err
	}
	out.Address = a

	size := p.Size
	if size == 0 {
		size = identicon.DefaultSize
	}

	img, err := p.render()(a, size)
	if err != nil {
		return err
	}

	m := p.Composer.Compose(a, p.URLs.ImageURL(a), p.URLs.ProfileURL(a))
	meta, err := metadata.Encode(m)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	paths, err := p.Store.Save(a, img, meta)
	if err != nil {
		return err
	}

	out.Paths = paths
	out.Metadata = m
	return nil
}

func (p *Pipeline) render() RenderFunc {
	if p.Render == nil {
		return identicon.Generate
	}
	return p.Render
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.Tracer == nil {
		return otel.Tracer("civicid/batch")
	}
	return p.Tracer
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) record(o Outcome, took time.Duration) {
	if o.OK() {
		p.logger().Debug("generated identity",
			"address", o.Address.Hex(),
			"image", o.Paths.Image,
			"metadata", o.Paths.Metadata,
			"took", took,
		)
	} else {
		p.logger().Warn("generation failed",
			"input", o.Input,
			"reason", o.Reason(),
			"err", o.Err,
		)
	}

	if p.Metrics == nil {
		return
	}
	p.Metrics.GenerationDuration.Observe(took.Seconds())
	if o.OK() {
		p.Metrics.IdentitiesGenerated.Inc()
		return
	}
	p.Metrics.GenerationFailures.WithLabelValues(o.Reason()).Inc()
}

// Run processes inputs with at most workers in flight. Outcomes keep input
// order. A failed or canceled address never stops the others from being
// attempted; once ctx is done the remaining addresses report canceled.
func (p *Pipeline) Run(ctx context.Context, inputs []string, workers int) Result {
	outcomes := make([]Outcome, len(inputs))

	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, in := range inputs {
		g.Go(func() error {
			// each goroutine owns its slot
			outcomes[i] = p.Process(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Outcomes: outcomes}
}

// Result summarizes a batch.
type Result struct {
	Outcomes []Outcome
}

// HasErrors returns true if any address failed.
func (r Result) HasErrors() bool {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

// Succeeded returns the successful outcomes in input order.
func (r Result) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the failed outcomes in input order.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Summary returns a human-readable report of the batch.
func (r Result) Summary() string {
	var b strings.Builder

	ok := len(r.Succeeded())
	if r.HasErrors() {
		fmt.Fprintf(&b, "generated %d/%d identities (with errors)", ok, len(r.Outcomes))
	} else {
		fmt.Fprintf(&b, "generated %d identities", ok)
	}

	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Fprintf(&b, "\n- %s: %s, %s", o.Address.Hex(), o.Paths.Metadata, o.Paths.Image)
		} else {
			fmt.Fprintf(&b, "\n- %s: %s: %v", o.Input, o.Reason(), o.Err)
		}
	}

	return b.String()
}
