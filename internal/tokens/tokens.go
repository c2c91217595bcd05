// Package tokens counts model tokens in narrative text.
package tokens

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with a tiktoken encoding chosen from the model name.
// Models without a known tokenizer (most open-weight narrators) fall back to
// cl100k_base, and if no codec can be loaded at all, to an estimate.
type Counter struct {
	model     string
	estimator *Estimator
	logger    *slog.Logger

	once  sync.Once
	codec tokenizer.Codec
}

// NewCounter creates a counter for model.
func NewCounter(model string, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{
		model:     model,
		estimator: NewEstimator(),
		logger:    logger,
	}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.once.Do(c.load)
	if c.codec == nil {
		return c.estimator.Count(text)
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		c.logger.Debug("token count failed, estimating", slog.String("error", err.Error()))
		return c.estimator.Count(text)
	}
	return len(ids)
}

func (c *Counter) load() {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(c.model))); err == nil {
		c.codec = codec
		return
	}

	codec, err := tokenizer.Get(modelToEncoding(c.model))
	if err != nil {
		c.logger.Warn("no tokenizer available, using estimator",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return
	}
	c.codec = codec
}

// modelToEncoding picks an encoding for models tiktoken does not know by name.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// Estimator approximates token counts from text length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count estimates the number of tokens in text.
func (e *Estimator) Count(text string) int {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0
	}
	n := int(float64(chars)/e.CharsPerToken + 0.5)
	if n == 0 {
		n = 1
	}
	return n
}
