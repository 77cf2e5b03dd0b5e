package model

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain"
)

type SubFlowKind string

const (
	SubFlowQuantity    SubFlowKind = "quantity"     // typed quantity x unit price
	SubFlowCountryTier SubFlowKind = "country_tier" // pick a country, then a priced tier
	SubFlowProject     SubFlowKind = "project"      // free-text brief, fixed deposit
)

const (
	DefaultMinQuantity = 1
	DefaultMaxQuantity = 1000
	DefaultMinChars    = 20
	MaxDescriptionLen  = 1000
)

// Option is one selectable answer in a choice step. Price is only set for tiers.
type Option struct {
	ID    string
	Label string
	Price *decimal.Decimal
}

// SubFlow describes the extra questions a variable-price service asks before it can be priced.
type SubFlow struct {
	Kind SubFlowKind

	// quantity
	UnitPrice   decimal.Decimal
	MinQuantity int
	MaxQuantity int

	// country_tier
	Countries []Option
	Tiers     []Option

	// project
	Deposit  decimal.Decimal
	MinChars int
}

// FirstStep is the detail step a freshly selected service starts at.
func (f *SubFlow) FirstStep() Step {
	switch f.Kind {
	case SubFlowQuantity:
		return StepQuantity
	case SubFlowCountryTier:
		return StepCountry
	default:
		return StepDescription
	}
}

// QuantityRange returns the accepted bounds, falling back to 1..1000.
func (f *SubFlow) QuantityRange() (int, int) {
	lo, hi := f.MinQuantity, f.MaxQuantity
	if lo <= 0 {
		lo = DefaultMinQuantity
	}
	if hi <= 0 {
		hi = DefaultMaxQuantity
	}
	return lo, hi
}

func (f *SubFlow) MinDescriptionChars() int {
	if f.MinChars <= 0 {
		return DefaultMinChars
	}
	return f.MinChars
}

func (f *SubFlow) Country(id string) (Option, bool) { return findOption(f.Countries, id) }
func (f *SubFlow) Tier(id string) (Option, bool)    { return findOption(f.Tiers, id) }

func findOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Service is one catalog entry. A nil Price means the price comes out of the sub-flow.
type Service struct {
	ID      int
	Name    string
	Price   *decimal.Decimal
	SubFlow *SubFlow
}

func (s *Service) FixedPrice() bool { return s.Price != nil }

// Catalog is the immutable list of sellable services.
type Catalog struct {
	services []*Service
	byID     map[int]*Service
}

// NewCatalog validates the services and indexes them by id.
func NewCatalog(services []Service) (*Catalog, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", domain.ErrInvalidArgument)
	}
	c := &Catalog{byID: make(map[int]*Service, len(services))}
	for i := range services {
		s := services[i]
		if err := validateService(&s); err != nil {
			return nil, err
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate service id %d", domain.ErrInvalidArgument, s.ID)
		}
		c.byID[s.ID] = &s
		c.services = append(c.services, &s)
	}
	sort.SliceStable(c.services, func(i, j int) bool { return c.services[i].ID < c.services[j].ID })
	return c, nil
}

func validateService(s *Service) error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: service id must be positive, got %d", domain.ErrInvalidArgument, s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: service %d has no name", domain.ErrInvalidArgument, s.ID)
	}
	if (s.Price == nil) == (s.SubFlow == nil) {
		return fmt.Errorf("%w: service %d needs exactly one of price or subflow", domain.ErrInvalidArgument, s.ID)
	}
	if s.Price != nil && !wholeAmount(*s.Price) {
		return fmt.Errorf("%w: service %d price must be a positive whole amount", domain.ErrInvalidArgument, s.ID)
	}
	if s.SubFlow == nil {
		return nil
	}
	f := s.SubFlow
	switch f.Kind {
	case SubFlowQuantity:
		if !wholeAmount(f.UnitPrice) {
			return fmt.Errorf("%w: service %d unit price must be a positive whole amount", domain.ErrInvalidArgument, s.ID)
		}
		if lo, hi := f.QuantityRange(); lo > hi {
			return fmt.Errorf("%w: service %d quantity range %d..%d", domain.ErrInvalidArgument, s.ID, lo, hi)
		}
	case SubFlowCountryTier:
		if len(f.Countries) == 0 || len(f.Tiers) == 0 {
			return fmt.Errorf("%w: service %d needs countries and tiers", domain.ErrInvalidArgument, s.ID)
		}
		for _, t := range f.Tiers {
			if t.Price == nil || !wholeAmount(*t.Price) {
				return fmt.Errorf("%w: service %d tier %q needs a positive whole price", domain.ErrInvalidArgument, s.ID, t.ID)
			}
		}
	case SubFlowProject:
		if !wholeAmount(f.Deposit) {
			return fmt.Errorf("%w: service %d deposit must be a positive whole amount", domain.ErrInvalidArgument, s.ID)
		}
	default:
		return fmt.Errorf("%w: service %d has unknown subflow %q", domain.ErrInvalidArgument, s.ID, f.Kind)
	}
	return nil
}

// wholeAmount reports whether d can be charged as is. Mobile money takes whole shillings only,
// so a fractional price would be rounded on the way to the provider.
func wholeAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.IsInteger()
}

func (c *Catalog) List() []*Service { return c.services }

func (c *Catalog) Find(id int) (*Service, bool) {
	s, ok := c.byID[id]
	return s, ok
}
