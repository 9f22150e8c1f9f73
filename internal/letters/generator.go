package letters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

const (
	maxRetries     = 3
	retryDelay     = 2 * time.Second
	rateLimitEvery = 500 * time.Millisecond
)

// DefaultTemplate is the generation prompt. Placeholders {company},
// {job_title}, {job_description} and {profile} are substituted per posting.
const DefaultTemplate = `You are an expert cover letter writer. Write a professional, enthusiastic cover letter for the following job application.

**Job Details:**
- Company: {company}
- Position: {job_title}

**Job Description:**
{job_description}

**Candidate Profile:**
{profile}

**Instructions:**
1. Write a compelling cover letter that highlights relevant skills and experience
2. Keep it between 200-400 words
3. Be specific about why the candidate is a good fit
4. Show enthusiasm for the role and company
5. Use a professional but friendly tone
6. Do NOT include a header/address/date (just the body text)
7. Do NOT include a signature (that will be added separately)
8. Start with "Dear Hiring Manager,"

Write only the cover letter body text, nothing else.`

// Generator turns a posting's metadata into cover-letter text. Calls are rate
// limited and transient provider errors are retried.
type Generator struct {
	provider Provider
	profile  string
	template string

	attempts int
	delay    time.Duration
	limiter  *rate.Limiter
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTemplate overrides the default prompt template.
func WithTemplate(tmpl string) GeneratorOption {
	return func(g *Generator) {
		if strings.TrimSpace(tmpl) != "" {
			g.template = tmpl
		}
	}
}

// WithRetry overrides the attempt count and the delay between attempts.
func WithRetry(attempts int, delay time.Duration) GeneratorOption {
	return func(g *Generator) {
		if attempts > 0 {
			g.attempts = attempts
		}
		g.delay = delay
	}
}

// WithRateLimit overrides the minimum interval between provider calls.
func WithRateLimit(every time.Duration) GeneratorOption {
	return func(g *Generator) {
		if every > 0 {
			g.limiter = rate.NewLimiter(rate.Every(every), 1)
		}
	}
}

// NewGenerator builds a Generator over provider. resume and additionalInfo
// together form the candidate profile embedded in every prompt.
func NewGenerator(provider Provider, resume, additionalInfo string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider: provider,
		profile:  strings.TrimSpace(resume + "\n\n" + additionalInfo),
		template: DefaultTemplate,
		attempts: maxRetries,
		delay:    retryDelay,
		limiter:  rate.NewLimiter(rate.Every(rateLimitEvery), 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildPrompt substitutes the posting into the template.
func (g *Generator) BuildPrompt(company, jobTitle, jobDescription string) string {
	return strings.NewReplacer(
		"{company}", company,
		"{job_title}", jobTitle,
		"{job_description}", jobDescription,
		"{profile}", g.profile,
	).Replace(g.template)
}

// Generate produces the cover-letter body for a posting. Each provider error
// short of the attempt cap is logged and retried after a delay.
func (g *Generator) Generate(ctx context.Context, company, jobTitle, jobDescription string) (string, error) {
	prompt := g.BuildPrompt(company, jobTitle, jobDescription)

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := g.provider.Generate(ctx, prompt)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err

		if attempt < g.attempts {
			log.Warn().Err(err).Int("attempt", attempt).Str("company", company).
				Msg("generation failed, retrying")
			if !sleepCtx(ctx, g.delay) {
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("all %d attempts failed: %w", g.attempts, lastErr)
}

// sleepCtx sleeps for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
