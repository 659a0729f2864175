package calc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mathcanvas/api/internal/util"
)

const journalTimeout = 3 * time.Second

// Run describes one finished pipeline execution for the journal.
type Run struct {
	ID          string
	ImageSHA256 string
	Engine      string
	Model       string
	VarCount    int
	Status      string
	Records     int
	Degraded    bool
	Latency     time.Duration
	Error       string
}

// Journal stores finished runs. Failures to record are logged and otherwise
// ignored.
type Journal interface {
	RecordRun(ctx context.Context, run Run) error
}

// Pipeline turns a drawing plus the caller's variables into result records.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	completer Completer
	log       *zap.Logger
	journal   Journal
}

// New returns a pipeline backed by c. log and journal may be nil.
func New(c Completer, log *zap.Logger, journal Journal) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{completer: c, log: log, journal: journal}
}

// Run executes the pipeline once. It makes at most one upstream call and
// never retries. Errors wrap ErrMissingInput, ErrInvalidImage or
// ErrUpstreamUnavailable; an unparseable reply is reported through
// Response.Degraded instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (resp Response, err error) {
	start := time.Now()
	run := Run{
		ID:       uuid.NewString(),
		Engine:   p.completer.Name(),
		Model:    p.completer.GetModel(),
		VarCount: len(req.Variables),
	}
	log := p.log.With(zap.String("run_id", run.ID), zap.String("engine", run.Engine))
	defer func() {
		run.Latency = time.Since(start)
		run.Status = statusOf(err)
		run.Records = len(resp.Records)
		run.Degraded = resp.Degraded
		if err != nil {
			run.Error = err.Error()
			log.Warn("calc run failed", zap.Error(err), zap.Duration("latency", run.Latency))
		} else {
			log.Info("calc run done",
				zap.Int("records", run.Records),
				zap.Bool("degraded", run.Degraded),
				zap.Duration("latency", run.Latency))
		}
		p.record(ctx, log, run)
	}()

	if req.Image == "" || req.Variables == nil {
		return Response{}, ErrMissingInput
	}

	data, mimeHint, err := util.DecodeBase64MaybeDataURL(req.Image)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Response{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	run.ImageSHA256 = util.SHA256Hex(data)
	img := Image{Data: data, MIMEType: util.PickMIME("", mimeHint, data)}

	prompt := BuildPrompt(req.Variables)
	log.Debug("calling completion service",
		zap.String("model", run.Model),
		zap.String("mime", img.MIMEType),
		zap.Int("image_bytes", len(data)),
		zap.Int("prompt_len", len(prompt)))

	raw, err := p.completer.Complete(ctx, prompt, img)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, run.Engine, err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, cerr)
	}

	records, dropped, perr := ParseRecords(Normalize(raw))
	if perr != nil {
		log.Warn("degraded parse", zap.Error(perr), zap.String("reply", util.Truncate(raw, 512)))
	}
	if dropped > 0 {
		log.Warn("dropped incomplete records", zap.Int("dropped", dropped))
	}

	return Response{
		Status:   StatusOK,
		Records:  records,
		Image:    req.Image,
		Degraded: perr != nil,
	}, nil
}

func (p *Pipeline) record(ctx context.Context, log *zap.Logger, run Run) {
	if p.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := p.journal.RecordRun(ctx, run); err != nil {
		log.Warn("journal write failed", zap.Error(err))
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return string(StatusOK)
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrInvalidImage):
		return "invalid_image"
	default:
		return "upstream_unavailable"
	}
}
