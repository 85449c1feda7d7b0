package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"movetrack/internal/events/models"
	"movetrack/internal/platform/config"
	id "movetrack/pkg/domain"
)

// ObjectPutter is the subset of the S3 client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// EventSource lists an eventable's events in applied order.
type EventSource interface {
	Events(ctx context.Context, ref id.Ref) ([]*models.Event, error)
}

// NewS3Client builds a client from the default AWS credential chain. A
// custom endpoint switches to path-style addressing for S3-compatible
// stores.
func NewS3Client(ctx context.Context, cfg config.Export) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type Exporter struct {
	putter      ObjectPutter
	source      EventSource
	lookup      Lookup
	bucket      string
	prefix      string
	concurrency int
	logger      *slog.Logger
}

type ExporterOption func(*Exporter)

func WithLookup(l Lookup) ExporterOption {
	return func(e *Exporter) { e.lookup = l }
}

func WithConcurrency(n int) ExporterOption {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = logger }
}

func NewExporter(putter ObjectPutter, source EventSource, cfg config.Export, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		putter:      putter,
		source:      source,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Result summarizes an export run.
type Result struct {
	Objects int
	Events  int
}

// Key is the object key of ref's export, e.g. "feed/Move/<id>.jsonl".
func (e *Exporter) Key(ref id.Ref) string {
	return e.prefix + string(ref.Kind) + "/" + ref.ID.String() + ".jsonl"
}

// Export writes one JSON-lines object per eventable. The first failure
// cancels the remaining uploads.
func (e *Exporter) Export(ctx context.Context, refs []id.Ref) (Result, error) {
	var objects, events atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			n, err := e.exportOne(ctx, ref)
			if err != nil {
				return fmt.Errorf("export %s: %w", ref, err)
			}
			objects.Add(1)
			events.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	res := Result{Objects: int(objects.Load()), Events: int(events.Load())}
	if err != nil {
		return res, err
	}
	e.logger.InfoContext(ctx, "feed exported",
		"bucket", e.bucket,
		"objects", res.Objects,
		"events", res.Events,
	)
	return res, nil
}

func (e *Exporter) exportOne(ctx context.Context, ref id.Ref) (int, error) {
	evs, err := e.source.Events(ctx, ref)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range evs {
		rec, err := ForFeed(ctx, ev, e.lookup)
		if err != nil {
			return 0, err
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("encode %s: %w", ev.ID, err)
		}
	}
	_, err = e.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(e.Key(ref)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return 0, fmt.Errorf("s3 put: %w", err)
	}
	return len(evs), nil
}
