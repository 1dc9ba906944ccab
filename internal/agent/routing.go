package agent

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"lawyrs/internal/domain"
)

//go:embed routing.yaml
var defaultRoutingYAML []byte

// routingFile is the on-disk shape of the routing tables.
type routingFile struct {
	Specialists map[string]specialistSignals `yaml:"specialists"`
}

type specialistSignals struct {
	KeywordWeight int          `yaml:"keywordWeight"`
	Keywords      []string     `yaml:"keywords"`
	Signals       []signalSpec `yaml:"signals"`
}

type signalSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Weight  int    `yaml:"weight"`
}

// RoutingTables is the compiled, read-only form of the routing tables. It is
// built once at startup and shared by every classification.
type RoutingTables struct {
	tables map[domain.Specialist]compiledTable
}

type compiledTable struct {
	keywordWeight int
	keywords      []string
	signals       []compiledSignal
}

type compiledSignal struct {
	name   string
	re     *regexp.Regexp
	weight int
}

// DefaultRoutingTables parses the embedded tables.
func DefaultRoutingTables() (*RoutingTables, error) {
	return ParseRoutingTables(defaultRoutingYAML)
}

// LoadRoutingTables reads tables from path, or the embedded defaults when
// path is empty.
func LoadRoutingTables(path string) (*RoutingTables, error) {
	if path == "" {
		return DefaultRoutingTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing tables: %w", err)
	}
	return ParseRoutingTables(data)
}

// ParseRoutingTables compiles YAML routing tables. Every specialist must be
// present; unknown specialist names are rejected.
func ParseRoutingTables(data []byte) (*RoutingTables, error) {
	var f routingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse routing tables: %w", err)
	}

	rt := &RoutingTables{tables: make(map[domain.Specialist]compiledTable, len(domain.Specialists))}
	for name, spec := range f.Specialists {
		s, err := domain.ParseSpecialist(name)
		if err != nil {
			return nil, fmt.Errorf("routing tables: %w", err)
		}
		if spec.KeywordWeight < 0 {
			return nil, fmt.Errorf("routing tables: %s: negative keyword weight", s)
		}

		ct := compiledTable{keywordWeight: spec.KeywordWeight}
		for _, kw := range spec.Keywords {
			kw = strings.ToLower(kw)
			if strings.TrimSpace(kw) != "" {
				ct.keywords = append(ct.keywords, kw)
			}
		}
		for _, sig := range spec.Signals {
			if sig.Weight < 0 {
				return nil, fmt.Errorf("routing tables: %s/%s: negative weight", s, sig.Name)
			}
			re, err := regexp.Compile(sig.Pattern)
			if err != nil {
				return nil, fmt.Errorf("routing tables: %s/%s: %w", s, sig.Name, err)
			}
			ct.signals = append(ct.signals, compiledSignal{name: sig.Name, re: re, weight: sig.Weight})
		}
		rt.tables[s] = ct
	}

	for _, s := range domain.Specialists {
		if _, ok := rt.tables[s]; !ok {
			return nil, fmt.Errorf("routing tables: missing specialist %q", s)
		}
	}
	return rt, nil
}

// score returns the keyword-and-signal score of lower (an already lowercased
// message) for s, plus the names of the signals that fired.
func (rt *RoutingTables) score(s domain.Specialist, lower string) (int, []string) {
	ct := rt.tables[s]
	total := 0
	for _, kw := range ct.keywords {
		if strings.Contains(lower, kw) {
			total += ct.keywordWeight
		}
	}
	var fired []string
	for _, sig := range ct.signals {
		if sig.re.MatchString(lower) {
			total += sig.weight
			fired = append(fired, sig.name)
		}
	}
	return total, fired
}
