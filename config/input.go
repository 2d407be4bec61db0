package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Input is the run input document. Field names follow the portal actor's
// historical input keys so existing input files keep working. Every field is
// optional; nil means "keep the configured value".
//
// The same document is accepted as an input file (JSON or YAML) and as the
// body of POST /api/v1/runs.
type Input struct {
	Username                  *string `json:"username,omitempty" yaml:"username"`
	Password                  *string `json:"password,omitempty" yaml:"password"`
	Headless                  *bool   `json:"headless,omitempty" yaml:"headless"`
	LoginURL                  *string `json:"loginUrl,omitempty" yaml:"loginUrl" binding:"omitempty,url"`
	TargetDate                *string `json:"targetDate,omitempty" yaml:"targetDate"`
	MaxPages                  *int    `json:"maxPages,omitempty" yaml:"maxPages" binding:"omitempty,min=1"`
	NavTimeoutMs              *int    `json:"navTimeoutMs,omitempty" yaml:"navTimeoutMs" binding:"omitempty,min=1"`
	SelectorTimeoutMs         *int    `json:"selectorTimeoutMs,omitempty" yaml:"selectorTimeoutMs" binding:"omitempty,min=1"`
	PaymentClientAccountValue *string `json:"paymentClientAccountValue,omitempty" yaml:"paymentClientAccountValue"`
	SearchWildcard            *string `json:"searchWildcard,omitempty" yaml:"searchWildcard"`
	DebugHTML                 *bool   `json:"debugHtml,omitempty" yaml:"debugHtml"`
	DebugScreenshots          *bool   `json:"debugScreenshots,omitempty" yaml:"debugScreenshots"`
	DebugMarkdown             *bool   `json:"debugMarkdown,omitempty" yaml:"debugMarkdown"`
}

// LoadInput reads an input file. JSON documents parse as YAML, so one decoder
// serves both formats.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read input %s: %w", path, err)
	}
	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("config: parse input %s: %w", path, err)
	}
	return &in, nil
}

// ApplyInput overlays the non-nil fields of in and re-validates.
func (c *Config) ApplyInput(in *Input) {
	if in == nil {
		return
	}
	setString(&c.Harvest.Username, in.Username)
	setString(&c.Harvest.Password, in.Password)
	setString(&c.Harvest.LoginURL, in.LoginURL)
	setString(&c.Harvest.TargetDate, in.TargetDate)
	setString(&c.Harvest.AccountSelector, in.PaymentClientAccountValue)
	setString(&c.Harvest.SearchWildcard, in.SearchWildcard)
	if in.Headless != nil {
		c.Browser.Headless = *in.Headless
	}
	if in.MaxPages != nil {
		c.Harvest.MaxPages = *in.MaxPages
	}
	if in.NavTimeoutMs != nil {
		c.Timeouts.Navigation = time.Duration(*in.NavTimeoutMs) * time.Millisecond
	}
	if in.SelectorTimeoutMs != nil {
		c.Timeouts.Selector = time.Duration(*in.SelectorTimeoutMs) * time.Millisecond
	}
	if in.DebugHTML != nil {
		c.Debug.HTML = *in.DebugHTML
	}
	if in.DebugScreenshots != nil {
		c.Debug.Screenshots = *in.DebugScreenshots
	}
	if in.DebugMarkdown != nil {
		c.Debug.Markdown = *in.DebugMarkdown
	}
	c.Validate()
}

// Clone returns a copy that can be overlaid without touching c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Browser.BlockedResourceTypes = append([]string(nil), c.Browser.BlockedResourceTypes...)
	cp.Store.DatasetFormats = append([]string(nil), c.Store.DatasetFormats...)
	cp.Auth.APIKeys = append([]string(nil), c.Auth.APIKeys...)
	if c.Browser.ExtraHeaders != nil {
		cp.Browser.ExtraHeaders = make(map[string]string, len(c.Browser.ExtraHeaders))
		for k, v := range c.Browser.ExtraHeaders {
			cp.Browser.ExtraHeaders[k] = v
		}
	}
	return &cp
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
