package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/auditwise/internal/ai"
	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/figma"
	"github.com/joescharf/auditwise/internal/scan"
)

// newCaller builds the model-fallback caller for the configured provider.
func newCaller() (ai.Caller, error) {
	models := viper.GetStringSlice("ai.models")
	timeout := viper.GetDuration("ai.attempt_timeout")

	switch provider := strings.ToLower(viper.GetString("ai.provider")); provider {
	case "", "gemini":
		c := ai.NewGeminiCaller(nil)
		if len(models) > 0 {
			c.Models = models
		}
		c.AttemptTimeout = timeout
		return c, nil
	case "anthropic":
		c := ai.NewAnthropicCaller(models)
		c.AttemptTimeout = timeout
		return c, nil
	default:
		return nil, fmt.Errorf("unknown ai.provider %q (want gemini or anthropic)", provider)
	}
}

// newScanner wires the asset resolvers and AI caller into a scanner.
func newScanner() (*scan.Scanner, error) {
	caller, err := newCaller()
	if err != nil {
		return nil, err
	}
	resolver := asset.NewResolver(figma.NewClient(viper.GetString("figma.base_url"), nil))
	return scan.NewScanner(resolver, caller), nil
}
