package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// ValidationError is one configuration problem with optional suggestions.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}
	write("errors", vr.Errors)
	write("warnings", vr.Warnings)

	return builder.String()
}

// ValidateWithDetails reports every problem instead of stopping at the
// first, and adds warnings for settings that are legal but risky.
func ValidateWithDetails(cfg *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	var verrs validator.ValidationErrors
	if err := validate.Struct(cfg); err != nil {
		if stderrors.As(err, &verrs) {
			for _, fe := range verrs {
				result.Errors = append(result.Errors, ValidationError{
					Field:   fieldPath(fe.Namespace()),
					Value:   fe.Value(),
					Message: fmt.Sprintf("failed %q constraint", tagWithParam(fe)),
				})
			}
		} else {
			result.Errors = append(result.Errors, ValidationError{Field: "config", Message: err.Error()})
		}
	}

	validateWarehouseDetails(&cfg.Warehouse, result)
	validateAuditDetails(&cfg.Audit, result)
	validateFetchDetails(cfg, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateWarehouseDetails(w *warehouse.Config, result *ValidationResult) {
	if w.AllowHTML && !w.SanitizeOnFinalize {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "warehouse.allow_html",
			Value:   w.AllowHTML,
			Message: "raw HTML collection requires sanitize_on_finalize",
			Suggestions: []string{
				"Set warehouse.sanitize_on_finalize: true",
				"Or leave warehouse.allow_html false to drop HTML entirely",
			},
		})
	}
	if w.AllowHTML {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "warehouse.allow_html",
			Value:   true,
			Message: "raw HTML fragments will be kept after sanitization",
			Suggestions: []string{
				"Register every renderer that consumes fragments in consumers.toml",
			},
		})
	}
	if w.TimeoutMode == warehouse.TimeoutCooperative {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "warehouse.timeout_mode",
			Value:   w.TimeoutMode,
			Message: "cooperative timeouts only fire when a collector checks its context",
		})
	}
	if w.TimeoutMode == warehouse.TimeoutSubprocess {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "warehouse.timeout_mode",
			Value:       w.TimeoutMode,
			Message:     "subprocess isolation is not implemented",
			Suggestions: []string{"Use preemptive or cooperative"},
		})
	}
}

func validateAuditDetails(a *AuditConfig, result *ValidationResult) {
	for _, root := range a.Roots {
		if err := validatePath(root); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "audit.roots",
				Value:   root,
				Message: err.Error(),
			})
			continue
		}
		if !pathExists(root) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "audit.roots",
				Value:   root,
				Message: fmt.Sprintf("root %s does not exist", root),
			})
		}
	}

	if len(a.TrustedKeys) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "audit.trusted_keys",
			Message: "no trusted baseline signers; every baseline will be reported unsigned",
			Suggestions: []string{
				"Run 'doxstrux baseline keygen' and add the public key under audit.trusted_keys",
			},
		})
	}

	if !contains(a.RequiredChecks, "doxstrux-audit") {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "audit.required_checks",
			Value:   a.RequiredChecks,
			Message: "the audit job itself is not a required check",
		})
	}

	if a.BranchProtection.Source == "github" && a.BranchProtection.TokenEnv != "" && os.Getenv(a.BranchProtection.TokenEnv) == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "audit.branch_protection.token_env",
			Value:   a.BranchProtection.TokenEnv,
			Message: fmt.Sprintf("%s is not set; the GitHub API call will be unauthenticated", a.BranchProtection.TokenEnv),
		})
	}
}

func validateFetchDetails(cfg *Config, result *ValidationResult) {
	if cfg.Fetch.RedisURL != "" && !strings.HasPrefix(cfg.Fetch.RedisURL, "redis://") && !strings.HasPrefix(cfg.Fetch.RedisURL, "rediss://") {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "fetch.redis_url",
			Value:       cfg.Fetch.RedisURL,
			Message:     "unsupported scheme",
			Suggestions: []string{"Use redis://host:6379/0 or rediss:// for TLS"},
		})
	}
	if cfg.Fetch.RequestsPerSecond > 50 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "fetch.requests_per_second",
			Value:   cfg.Fetch.RequestsPerSecond,
			Message: "high request rate may get the checker blocked by remote hosts",
		})
	}
}

// fieldPath turns "Config.Audit.BranchProtection.Owner" into the yaml key.
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prev := s[i-1]
			nextLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
			if prev >= 'a' && prev <= 'z' || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
