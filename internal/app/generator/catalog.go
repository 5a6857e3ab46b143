package generator

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Range is an inclusive [min, max] pair written as a two-element YAML list.
type Range [2]int

type Catalog struct {
	Logic  LogicSection  `yaml:"logic"`
	Code   CodeSection   `yaml:"code"`
	Block  BlockSection  `yaml:"block"`
	Cipher CipherSection `yaml:"cipher"`
	MCQ    MCQSection    `yaml:"mcq"`
}

type LogicSection struct {
	EstimateSeconds int             `yaml:"estimate_seconds"`
	X               Range           `yaml:"x"`
	Y               Range           `yaml:"y"`
	Z               Range           `yaml:"z"`
	Templates       []LogicTemplate `yaml:"templates"`
}

type LogicTemplate struct {
	Prompt  string `yaml:"prompt"`
	Formula string `yaml:"formula"` // xy_over_z | xz_over_y
}

type CodeSection struct {
	EstimateSeconds int            `yaml:"estimate_seconds"`
	VarNames        []string       `yaml:"var_names"`
	Values          Range          `yaml:"values"`
	Templates       []CodeTemplate `yaml:"templates"`
}

type CodeTemplate struct {
	Code string `yaml:"code"`
	Op   string `yaml:"op"` // add | mul
}

type BlockSection struct {
	EstimateSeconds int      `yaml:"estimate_seconds"`
	Grid            GridSpec `yaml:"grid"`
	Labels          []string `yaml:"labels"`
	Count           int      `yaml:"count"`
}

type GridSpec struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
}

type CipherSection struct {
	EstimateSeconds int      `yaml:"estimate_seconds"`
	Plaintexts      []string `yaml:"plaintexts"`
	Shift           Range    `yaml:"shift"`
}

type MCQSection struct {
	EstimateSeconds int           `yaml:"estimate_seconds"`
	Questions       []MCQTemplate `yaml:"questions"`
}

type MCQTemplate struct {
	Question string   `yaml:"q"`
	Options  []string `yaml:"opts"`
	Answer   int      `yaml:"answer"`
}

// DefaultCatalog parses the embedded catalog. It panics on a broken embed,
// which can only happen at build time.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded puzzle catalog: %v", err))
	}
	return c
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	var errs []error
	if len(c.Logic.Templates) == 0 {
		errs = append(errs, errors.New("logic: no templates"))
	}
	for _, t := range c.Logic.Templates {
		if t.Formula != "xy_over_z" && t.Formula != "xz_over_y" {
			errs = append(errs, fmt.Errorf("logic: unknown formula %q", t.Formula))
		}
	}
	if c.Logic.Y[0] <= 0 || c.Logic.Z[0] <= 0 {
		errs = append(errs, errors.New("logic: divisors must be positive"))
	}
	if len(c.Code.Templates) == 0 {
		errs = append(errs, errors.New("code: no templates"))
	}
	for _, t := range c.Code.Templates {
		if t.Op != "add" && t.Op != "mul" {
			errs = append(errs, fmt.Errorf("code: unknown op %q", t.Op))
		}
	}
	if len(c.Code.VarNames) < 2 {
		errs = append(errs, errors.New("code: need at least two variable names"))
	}
	if c.Block.Count <= 0 || c.Block.Count > len(c.Block.Labels) {
		errs = append(errs, errors.New("block: count must be within the label set"))
	}
	if c.Block.Grid.W <= 0 || c.Block.Grid.H <= 0 {
		errs = append(errs, errors.New("block: empty grid"))
	}
	if len(c.Cipher.Plaintexts) == 0 {
		errs = append(errs, errors.New("cipher: no plaintexts"))
	}
	if len(c.MCQ.Questions) == 0 {
		errs = append(errs, errors.New("mcq: no questions"))
	}
	for _, q := range c.MCQ.Questions {
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			errs = append(errs, fmt.Errorf("mcq: answer out of range for %q", q.Question))
		}
	}
	for _, r := range []Range{c.Logic.X, c.Logic.Y, c.Logic.Z, c.Code.Values, c.Cipher.Shift} {
		if r[0] > r[1] {
			errs = append(errs, fmt.Errorf("range %v is inverted", r))
		}
	}
	return errors.Join(errs...)
}
