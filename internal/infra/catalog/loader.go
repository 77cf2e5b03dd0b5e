package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"mpesa-commerce-bot/internal/domain/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type fileDTO struct {
	Services []serviceDTO `yaml:"services"`
}

type serviceDTO struct {
	ID      int         `yaml:"id"`
	Name    string      `yaml:"name"`
	Price   string      `yaml:"price"`
	SubFlow *subFlowDTO `yaml:"subflow"`
}

type subFlowDTO struct {
	Kind        string      `yaml:"kind"`
	UnitPrice   string      `yaml:"unit_price"`
	MinQuantity int         `yaml:"min_quantity"`
	MaxQuantity int         `yaml:"max_quantity"`
	Countries   []optionDTO `yaml:"countries"`
	Tiers       []optionDTO `yaml:"tiers"`
	Deposit     string      `yaml:"deposit"`
	MinChars    int         `yaml:"min_chars"`
}

type optionDTO struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Price string `yaml:"price"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*model.Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*model.Catalog, error) {
	var f fileDTO
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	services := make([]model.Service, 0, len(f.Services))
	for _, s := range f.Services {
		svc, err := s.toModel()
		if err != nil {
			return nil, fmt.Errorf("service %d: %w", s.ID, err)
		}
		services = append(services, svc)
	}
	return model.NewCatalog(services)
}

func (s serviceDTO) toModel() (model.Service, error) {
	out := model.Service{ID: s.ID, Name: s.Name}
	if s.Price != "" {
		p, err := decimal.NewFromString(s.Price)
		if err != nil {
			return out, fmt.Errorf("price: %w", err)
		}
		out.Price = &p
	}
	if s.SubFlow == nil {
		return out, nil
	}
	f := s.SubFlow
	sf := &model.SubFlow{
		Kind:        model.SubFlowKind(f.Kind),
		MinQuantity: f.MinQuantity,
		MaxQuantity: f.MaxQuantity,
		MinChars:    f.MinChars,
	}
	var err error
	if sf.UnitPrice, err = optionalDecimal(f.UnitPrice); err != nil {
		return out, fmt.Errorf("unit_price: %w", err)
	}
	if sf.Deposit, err = optionalDecimal(f.Deposit); err != nil {
		return out, fmt.Errorf("deposit: %w", err)
	}
	if sf.Countries, err = toOptions(f.Countries); err != nil {
		return out, fmt.Errorf("countries: %w", err)
	}
	if sf.Tiers, err = toOptions(f.Tiers); err != nil {
		return out, fmt.Errorf("tiers: %w", err)
	}
	out.SubFlow = sf
	return out, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func toOptions(in []optionDTO) ([]model.Option, error) {
	out := make([]model.Option, 0, len(in))
	for _, o := range in {
		opt := model.Option{ID: o.ID, Label: o.Label}
		if o.Price != "" {
			p, err := decimal.NewFromString(o.Price)
			if err != nil {
				return nil, fmt.Errorf("option %q: %w", o.ID, err)
			}
			opt.Price = &p
		}
		out = append(out, opt)
	}
	return out, nil
}
