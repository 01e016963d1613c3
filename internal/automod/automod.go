// Package automod inspects chat messages for scams, malicious links and
// spam, and enforces the verdicts.
package automod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/links"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/ocr"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/scam"
	"github.com/ishyv/tx-discord-bot-sub008/internal/ratelimit"
)

const (
	RuleScam        = "scam_text"
	RuleScamImage   = "scam_image"
	RuleLink        = "malicious_link"
	RuleMentionSpam = "mention_spam"
	RuleBurstSpam   = "burst_spam"
)

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
	Size        int64
}

type Message struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	Content     string
	Mentions    int
	Attachments []Attachment
	At          time.Time
}

type Verdict struct {
	Rule   string
	Detail string
}

type DomainLists interface {
	DomainLists(ctx context.Context, guildID string) (allow, block map[string]struct{}, err error)
}

type Config struct {
	MaxMentions        int
	MaxAttachmentBytes int64
	OCRConcurrency     int
}

type Pipeline struct {
	cfg     Config
	scam    *scam.Filter
	links   *links.Checker
	lists   DomainLists
	burst   *ratelimit.Limiter
	scanner *ocr.Scanner
	fetcher Fetcher
	logger  *zap.Logger
	tracer  trace.Tracer
}

type Deps struct {
	Scam    *scam.Filter
	Links   *links.Checker
	Lists   DomainLists
	Burst   *ratelimit.Limiter
	Scanner *ocr.Scanner
	Fetcher Fetcher
	Logger  *zap.Logger
}

func NewPipeline(cfg Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OCRConcurrency <= 0 {
		cfg.OCRConcurrency = 2
	}
	return &Pipeline{
		cfg:     cfg,
		scam:    deps.Scam,
		links:   deps.Links,
		lists:   deps.Lists,
		burst:   deps.Burst,
		scanner: deps.Scanner,
		fetcher: deps.Fetcher,
		logger:  logger,
		tracer:  otel.Tracer("txbot/automod"),
	}
}

// Inspect runs the checks in order and returns the first verdict. A nil
// component disables its check.
func (p *Pipeline) Inspect(ctx context.Context, msg Message) (Verdict, bool, error) {
	ctx, span := p.tracer.Start(ctx, "automod.inspect", trace.WithAttributes(
		attribute.String("guild.id", msg.GuildID),
		attribute.String("user.id", msg.AuthorID),
	))
	defer span.End()

	verdict, hit, err := p.inspect(ctx, msg)
	if hit {
		span.SetAttributes(attribute.String("automod.rule", verdict.Rule))
	}
	if err != nil {
		span.RecordError(err)
	}
	return verdict, hit, err
}

func (p *Pipeline) inspect(ctx context.Context, msg Message) (Verdict, bool, error) {
	if p.scam != nil && msg.Content != "" {
		if match, ok := p.scam.Match(msg.Content); ok {
			return Verdict{Rule: RuleScam, Detail: fmt.Sprintf("phrase=%s text=%q", match.Phrase, match.Text)}, true, nil
		}
	}

	if p.links != nil && msg.Content != "" {
		var allow, block map[string]struct{}
		if p.lists != nil {
			var err error
			allow, block, err = p.lists.DomainLists(ctx, msg.GuildID)
			if err != nil {
				return Verdict{}, false, fmt.Errorf("domain lists: %w", err)
			}
		}
		if finding, ok := p.links.Check(msg.Content, allow, block); ok {
			detail := fmt.Sprintf("reason=%s host=%s url=%s", finding.Reason, finding.Host, finding.URL)
			if finding.Brand != "" {
				detail += " brand=" + finding.Brand
			}
			return Verdict{Rule: RuleLink, Detail: detail}, true, nil
		}
	}

	if p.cfg.MaxMentions > 0 && msg.Mentions > p.cfg.MaxMentions {
		return Verdict{Rule: RuleMentionSpam, Detail: fmt.Sprintf("mentions=%d threshold=%d", msg.Mentions, p.cfg.MaxMentions)}, true, nil
	}

	if p.burst != nil {
		at := msg.At
		if at.IsZero() {
			at = time.Now()
		}
		if !p.burst.Allow(msg.GuildID+":"+msg.AuthorID, at) {
			return Verdict{Rule: RuleBurstSpam, Detail: "message burst detected"}, true, nil
		}
	}

	if p.scanner != nil && p.scam != nil && p.fetcher != nil {
		return p.scanAttachments(ctx, msg)
	}
	return Verdict{}, false, nil
}

var errFound = errors.New("automod: verdict found")

// scanAttachments runs OCR on image attachments with bounded concurrency
// and stops at the first scam match. Fetch and OCR failures are logged and
// skipped.
func (p *Pipeline) scanAttachments(ctx context.Context, msg Message) (Verdict, bool, error) {
	images := make([]Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		if !isImage(att) {
			continue
		}
		if p.cfg.MaxAttachmentBytes > 0 && att.Size > p.cfg.MaxAttachmentBytes {
			continue
		}
		images = append(images, att)
	}
	if len(images) == 0 {
		return Verdict{}, false, nil
	}

	var (
		mu      sync.Mutex
		verdict Verdict
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.OCRConcurrency)
	for _, att := range images {
		g.Go(func() error {
			raw, err := p.fetcher.Fetch(gctx, att.URL, p.cfg.MaxAttachmentBytes)
			if err != nil {
				p.logger.Debug("attachment fetch failed", zap.String("url", att.URL), zap.Error(err))
				return nil
			}
			text, err := p.scanner.Scan(gctx, raw)
			if err != nil {
				p.logger.Debug("attachment ocr failed", zap.String("file", att.Filename), zap.Error(err))
				return nil
			}
			match, ok := p.scam.Match(text)
			if !ok {
				return nil
			}
			mu.Lock()
			if verdict.Rule == "" {
				verdict = Verdict{Rule: RuleScamImage, Detail: fmt.Sprintf("phrase=%s file=%s", match.Phrase, att.Filename)}
			}
			mu.Unlock()
			return errFound
		})
	}
	err := g.Wait()
	if errors.Is(err, errFound) {
		return verdict, true, nil
	}
	if err != nil {
		return Verdict{}, false, err
	}
	return Verdict{}, false, nil
}

func isImage(att Attachment) bool {
	if strings.HasPrefix(att.ContentType, "image/") {
		return true
	}
	name := strings.ToLower(att.Filename)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
