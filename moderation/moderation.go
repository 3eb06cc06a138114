package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/livecue/chatfeed/comment"
	"github.com/livecue/chatfeed/telemetry"
)

// Classifier is the external refinement stage. Satisfied by *openaiapi.Client.
type Classifier interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Ping(ctx context.Context) error
}

const systemPrompt = `You moderate live stream chat for an on-screen comment overlay.
Given one chat message, reply with a JSON object: {"allow": bool, "highlight": bool, "reason": "short string"}.
Allow ordinary conversation. Block spam, advertising, harassment and scams.
Set highlight for thoughtful questions or remarks worth showing on stream.`

const strictSystemPrompt = `You moderate live stream chat for a family-friendly broadcast overlay.
Given one chat message, reply with a JSON object: {"allow": bool, "highlight": bool, "reason": "short string"}.
Be conservative: block anything with profanity, innuendo, spam, advertising, harassment, or scams.
Set highlight only for clearly wholesome questions or remarks worth showing on stream.`

// Options configures a Pipeline.
type Options struct {
	UseClassifier bool
	Strict        bool
	FailClosed    bool // block instead of allow when the classifier answer is unusable
	CacheSize     int
	BatchLimit    int // max concurrent Moderate calls inside ModerateBatch
}

// Pipeline classifies comments. Moderate never returns an error; every exit
// path produces a well-formed Result.
type Pipeline struct {
	classifier Classifier
	opts       Options
	cache      *resultCache
	available  bool
	log        *slog.Logger
}

// New builds a Pipeline. When the classifier is enabled its availability is
// probed once here and not re-probed afterwards; a failed probe disables the
// AI stage for the lifetime of the pipeline.
func New(ctx context.Context, classifier Classifier, opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 8
	}
	p := &Pipeline{
		classifier: classifier,
		opts:       opts,
		cache:      newResultCache(opts.CacheSize),
		log:        log,
	}
	if opts.UseClassifier && classifier != nil {
		if err := classifier.Ping(ctx); err != nil {
			log.Warn("classifier unavailable; rule stage only", slog.Any("err", err))
		} else {
			p.available = true
			log.Info("classifier available", slog.Bool("strict", opts.Strict))
		}
	}
	return p
}

// ClassifierAvailable reports the result of the startup probe.
func (p *Pipeline) ClassifierAvailable() bool { return p.available }

// Moderate classifies one comment. Cache hit, then the rule stage, then the
// optional AI stage. Classifier failures fall back to the rule result.
func (p *Pipeline) Moderate(ctx context.Context, c comment.Comment) Result {
	if cached, ok := p.cache.get(c.Author, c.Message); ok {
		if telemetry.ModerationCacheHit != nil {
			telemetry.ModerationCacheHit.Inc()
		}
		return cached
	}

	res := evaluateRules(c.Message)
	if res.Allow && p.opts.UseClassifier && p.available {
		res = p.refine(ctx, c, res)
	}

	p.cache.put(c.Author, c.Message, res)
	return res
}

// refine asks the external classifier and merges its answer. Any failure
// leaves the rule-stage result in force; an unparsable answer applies the
// configured fail-open/fail-closed policy.
func (p *Pipeline) refine(ctx context.Context, c comment.Comment, ruleResult Result) Result {
	system := systemPrompt
	if p.opts.Strict {
		system = strictSystemPrompt
	}
	user := fmt.Sprintf("Platform: %s\nAuthor: %s\nMessage: %s", c.Platform, c.Author, c.Message)

	if telemetry.ClassifierCalls != nil {
		telemetry.ClassifierCalls.Inc()
	}
	text, err := p.classifier.Complete(ctx, system, user)
	if err != nil {
		if telemetry.ClassifierFailures != nil {
			telemetry.ClassifierFailures.Inc()
		}
		p.log.Warn("classifier call failed; using rule result", slog.Any("err", err), slog.String("author", c.Author))
		return ruleResult
	}

	parsed, ok := parseClassifierResponse(text)
	if !ok {
		if telemetry.ClassifierFailures != nil {
			telemetry.ClassifierFailures.Inc()
		}
		p.log.Warn("classifier response unparsable", slog.String("author", c.Author))
		return Result{Allow: !p.opts.FailClosed, Highlight: false, Reason: ReasonAIParseFailed}
	}
	return parsed
}

// parseClassifierResponse extracts the first JSON object from free-form text
// and decodes it. Models routinely wrap the object in prose or code fences.
func parseClassifierResponse(text string) (Result, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Result{}, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var r struct {
					Allow     *bool  `json:"allow"`
					Highlight bool   `json:"highlight"`
					Reason    string `json:"reason"`
				}
				if err := json.Unmarshal([]byte(text[start:i+1]), &r); err != nil || r.Allow == nil {
					return Result{}, false
				}
				if r.Reason == "" {
					r.Reason = "classifier"
				}
				return Result{Allow: *r.Allow, Highlight: r.Highlight, Reason: r.Reason}, true
			}
		}
	}
	return Result{}, false
}

// Moderated pairs a comment with its moderation result.
type Moderated struct {
	Comment comment.Comment
	Result  Result
}

// ModerateBatch moderates items concurrently (bounded by BatchLimit) and
// returns only the allowed ones, in input order. Meant for backfill style
// reprocessing, not the live path.
func (p *Pipeline) ModerateBatch(ctx context.Context, comments []comment.Comment) []Moderated {
	results := make([]Result, len(comments))
	sem := make(chan struct{}, p.opts.BatchLimit)
	var wg sync.WaitGroup
	for i := range comments {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.Moderate(ctx, comments[i])
		}(i)
	}
	wg.Wait()

	out := make([]Moderated, 0, len(comments))
	for i, r := range results {
		if r.Allow {
			out = append(out, Moderated{Comment: comments[i], Result: r})
		}
	}
	return out
}

// ClearCache drops all cached results.
func (p *Pipeline) ClearCache() {
	p.cache.clear()
}

// CacheLen reports the number of cached results.
func (p *Pipeline) CacheLen() int {
	return p.cache.len()
}
