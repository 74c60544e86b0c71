package warehouse

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/logging"
)

// Timeout modes accepted by Config.TimeoutMode.
const (
	TimeoutPreemptive  = "preemptive"
	TimeoutCooperative = "cooperative"
	TimeoutSubprocess  = "subprocess"
)

// Config carries every cap and budget of one warehouse instance. There are
// no package-level limits; two warehouses built from different configs
// never influence each other.
type Config struct {
	MaxLinksPerDoc     int `mapstructure:"max_links_per_doc" yaml:"max_links_per_doc" validate:"min=1"`
	MaxImagesPerDoc    int `mapstructure:"max_images_per_doc" yaml:"max_images_per_doc" validate:"min=1"`
	MaxHeadingsPerDoc  int `mapstructure:"max_headings_per_doc" yaml:"max_headings_per_doc" validate:"min=1"`
	MaxCodeBlocks      int `mapstructure:"max_code_blocks" yaml:"max_code_blocks" validate:"min=1"`
	MaxCodeBlockBytes  int `mapstructure:"max_code_block_bytes" yaml:"max_code_block_bytes" validate:"min=1"`
	MaxTablesPerDoc    int `mapstructure:"max_tables_per_doc" yaml:"max_tables_per_doc" validate:"min=1"`
	MaxTableRows       int `mapstructure:"max_table_rows" yaml:"max_table_rows" validate:"min=1"`
	MaxListItemsPerDoc int `mapstructure:"max_list_items_per_doc" yaml:"max_list_items_per_doc" validate:"min=1"`
	MaxHTMLFragments   int `mapstructure:"max_html_fragments" yaml:"max_html_fragments" validate:"min=1"`

	// MaxLineNumber bounds line maps; larger values mark the token invalid.
	MaxLineNumber uint32 `mapstructure:"max_line_number" yaml:"max_line_number" validate:"min=1"`
	// MaxNestingDepth bounds the tracked container stack.
	MaxNestingDepth int `mapstructure:"max_nesting_depth" yaml:"max_nesting_depth" validate:"min=1"`

	CollectorTimeout time.Duration `mapstructure:"collector_timeout" yaml:"collector_timeout" validate:"min=1ms"`
	TimeoutMode      string        `mapstructure:"timeout_mode" yaml:"timeout_mode" validate:"oneof=preemptive cooperative subprocess"`

	AllowHTML          bool `mapstructure:"allow_html" yaml:"allow_html"`
	SanitizeOnFinalize bool `mapstructure:"sanitize_on_finalize" yaml:"sanitize_on_finalize"`
	AllowHTMLImages    bool `mapstructure:"allow_html_images" yaml:"allow_html_images"`

	// Logger receives dispatch diagnostics. Nil means no logging.
	Logger logging.Logger `mapstructure:"-" yaml:"-" validate:"-"`
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxLinksPerDoc:     10_000,
		MaxImagesPerDoc:    5_000,
		MaxHeadingsPerDoc:  5_000,
		MaxCodeBlocks:      2_000,
		MaxCodeBlockBytes:  1 << 20,
		MaxTablesPerDoc:    1_000,
		MaxTableRows:       10_000,
		MaxListItemsPerDoc: 20_000,
		MaxHTMLFragments:   2_000,
		MaxLineNumber:      1_000_000,
		MaxNestingDepth:    100,
		CollectorTimeout:   3 * time.Second,
		TimeoutMode:        TimeoutPreemptive,
	}
}

var validate = validator.New()

// Validate checks field ranges and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("warehouse config: %v", err), err)
	}
	if c.AllowHTML && !c.SanitizeOnFinalize {
		return errors.ConfigInvalid("allow_html requires sanitize_on_finalize", nil)
	}
	return nil
}

func (c Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger.WithComponent("warehouse")
}
