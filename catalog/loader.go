package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/chat-webhooks/webhook"
	"gopkg.in/yaml.v3"
)

/* Loader manages seed webhook definitions from webhooks.yaml
 * Definitions keep file order; names identify them across restarts
 */

// Config represents the structure of webhooks.yaml
type Config struct {
	Webhooks []Definition `yaml:"webhooks"`
}

// Definition represents a single webhook in the YAML file
type Definition struct {
	Name          string     `yaml:"name"`
	URL           string     `yaml:"url"`
	Method        string     `yaml:"method"`
	Headers       HeaderList `yaml:"headers"`
	BodyTemplate  string     `yaml:"body_template"`
	Active        *bool      `yaml:"active"`         // Default: true
	TimeoutMS     *int       `yaml:"timeout_ms"`     // Optional: override global policy
	Retries       *int       `yaml:"retries"`        // Optional: override global policy
	RetryDelayMS  *int       `yaml:"retry_delay_ms"` // Optional: override global policy
	SigningSecret string     `yaml:"signing_secret"`
}

/* HeaderList keeps headers in the order the file lists them
 * Both a mapping (name: value) and a list of {name, value} entries are accepted
 */
type HeaderList webhook.Headers

func (h *HeaderList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		headers := make(HeaderList, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			var name, val string
			if err := value.Content[i].Decode(&name); err != nil {
				return fmt.Errorf("decoding header name: %w", err)
			}
			if err := value.Content[i+1].Decode(&val); err != nil {
				return fmt.Errorf("decoding header %s: %w", name, err)
			}
			headers = append(headers, webhook.Header{Name: name, Value: val})
		}
		*h = headers
	case yaml.SequenceNode:
		var headers []webhook.Header
		if err := value.Decode(&headers); err != nil {
			return fmt.Errorf("decoding headers: %w", err)
		}
		*h = headers
	default:
		return fmt.Errorf("line %d: headers must be a mapping or a list", value.Line)
	}
	return nil
}

// Input converts the definition into store input, leaving unset fields to the store defaults
func (d Definition) Input() webhook.Input {
	in := webhook.Input{
		Name:         &d.Name,
		URL:          &d.URL,
		Active:       d.Active,
		TimeoutMS:    d.TimeoutMS,
		Retries:      d.Retries,
		RetryDelayMS: d.RetryDelayMS,
	}
	if d.Method != "" {
		in.Method = &d.Method
	}
	if len(d.Headers) > 0 {
		headers := webhook.Headers(d.Headers).Clone()
		in.Headers = &headers
	}
	if d.BodyTemplate != "" {
		in.BodyTemplate = &d.BodyTemplate
	}
	if d.SigningSecret != "" {
		in.SigningSecret = &d.SigningSecret
	}
	return in
}

// Validate checks if the definition is valid
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if err := d.Input().Validate(); err != nil {
		return fmt.Errorf("webhook %s: %w", d.Name, err)
	}
	return nil
}

// Loader holds the loaded definitions
type Loader struct {
	definitions []Definition
	byName      map[string]int
}

// NewLoader creates a new definition loader
func NewLoader() *Loader {
	return &Loader{
		byName: make(map[string]int),
	}
}

// Load reads and parses the webhooks.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading webhooks file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses webhook definitions from YAML
func (l *Loader) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing webhooks YAML: %w", err)
	}

	for _, d := range config.Webhooks {
		d.Name = strings.TrimSpace(d.Name)
		if err := d.Validate(); err != nil {
			return fmt.Errorf("validating webhook: %w", err)
		}
		if l.Exists(d.Name) {
			return fmt.Errorf("validating webhook: duplicate name %s", d.Name)
		}
		l.byName[d.Name] = len(l.definitions)
		l.definitions = append(l.definitions, d)
	}

	return nil
}

// List returns all loaded definitions in file order
func (l *Loader) List() []Definition {
	return append([]Definition(nil), l.definitions...)
}

// Exists checks if a definition name exists
func (l *Loader) Exists(name string) bool {
	_, exists := l.byName[name]
	return exists
}

// Store is the part of the webhook store Apply needs
type Store interface {
	List(ctx context.Context) []webhook.Webhook
	Add(ctx context.Context, in webhook.Input) (string, error)
}

/* Apply adds every definition whose name is not in the store yet and returns the new ids
 * Existing webhooks are never modified, so edits made at runtime survive restarts
 */
func (l *Loader) Apply(ctx context.Context, store Store) ([]string, error) {
	existing := make(map[string]bool)
	for _, wh := range store.List(ctx) {
		existing[wh.Name] = true
	}

	var added []string
	for _, d := range l.definitions {
		if existing[d.Name] {
			continue
		}
		id, err := store.Add(ctx, d.Input())
		if err != nil {
			return added, fmt.Errorf("adding webhook %s: %w", d.Name, err)
		}
		existing[d.Name] = true
		added = append(added, id)
	}
	return added, nil
}
