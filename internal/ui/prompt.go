package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/thesavant42/wayback-scraper/internal/config"
)

// RunInputs holds values collected interactively when flags are missing
type RunInputs struct {
	DomainsFile string
	Dates       string
}

// sanitizeInput removes null bytes and other invisible control characters from input
func sanitizeInput(s string) string {
	// Remove null bytes and other control characters (except whitespace)
	result := strings.Map(func(r rune) rune {
		// Keep printable characters and normal whitespace (space, tab, newline)
		if r == 0 || (r < 32 && r != '\t' && r != '\n' && r != '\r') {
			return -1 // Remove the character
		}
		return r
	}, s)
	return result
}

// validateDomainsFile requires an existing, readable file
func validateDomainsFile(s string) error {
	s = strings.TrimSpace(sanitizeInput(s))
	if s == "" {
		return fmt.Errorf("domains file cannot be empty")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}

// validateDates requires a comma separated list of MM-DD-YYYY dates
func validateDates(s string) error {
	s = strings.TrimSpace(sanitizeInput(s))
	if s == "" {
		return fmt.Errorf("at least one date is required")
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := time.Parse(config.DateLayout, part); err != nil {
			return fmt.Errorf("invalid date %q: use MM-DD-YYYY", part)
		}
	}
	return nil
}

// PromptForRunInputs asks for whichever of the domains file and dates is missing
func PromptForRunInputs(current RunInputs) (RunInputs, error) {
	inputs := current
	var fields []huh.Field

	if inputs.DomainsFile == "" {
		fields = append(fields, huh.NewInput().
			Title("Domains File").
			Description("Newline separated list of domains to look up").
			Placeholder("domains.txt").
			Value(&inputs.DomainsFile).
			Validate(validateDomainsFile))
	}

	if inputs.Dates == "" {
		fields = append(fields, huh.NewInput().
			Title("Target Dates").
			Description("Comma separated, MM-DD-YYYY (e.g., 01-01-2020,06-01-2020)").
			Placeholder("01-01-2020").
			Value(&inputs.Dates).
			Validate(validateDates))
	}

	if len(fields) == 0 {
		return inputs, nil
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(NewAppTheme())
	if err := form.Run(); err != nil {
		return current, fmt.Errorf("prompt cancelled: %w", err)
	}

	// Sanitize input to remove null bytes and control characters
	inputs.DomainsFile = strings.TrimSpace(sanitizeInput(inputs.DomainsFile))
	inputs.Dates = strings.TrimSpace(sanitizeInput(inputs.Dates))
	return inputs, nil
}
