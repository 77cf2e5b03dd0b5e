package model

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Step names a detail-collection step inside a sub-flow.
type Step string

const (
	StepQuantity    Step = "quantity"
	StepCountry     Step = "country"
	StepTier        Step = "tier"
	StepDescription Step = "description"
)

// CapturesText reports whether the step consumes free text as its answer.
// Reset commands typed during these steps are treated as answers.
func (s Step) CapturesText() bool {
	return s == StepQuantity || s == StepDescription
}

// Problem is a validation failure shown alongside a re-prompt.
type Problem string

const (
	ProblemNone               Problem = ""
	ProblemQuantityNotNumber  Problem = "quantity_not_number"
	ProblemQuantityOutOfRange Problem = "quantity_out_of_range"
	ProblemDescriptionShort   Problem = "description_short"
	ProblemDescriptionLong    Problem = "description_long"
	ProblemDescriptionCommand Problem = "description_command"
	ProblemPhoneFormat        Problem = "phone_format"
	ProblemForwardFailed      Problem = "forward_failed"
)

// Details holds the answers of one sub-flow. Each variant belongs to exactly one SubFlowKind.
type Details interface {
	Kind() SubFlowKind
}

type QuantityDetails struct {
	Quantity int
}

type CountryTierDetails struct {
	Country string
	Tier    string
}

type ProjectDetails struct {
	Description string
}

func (QuantityDetails) Kind() SubFlowKind    { return SubFlowQuantity }
func (CountryTierDetails) Kind() SubFlowKind { return SubFlowCountryTier }
func (ProjectDetails) Kind() SubFlowKind     { return SubFlowProject }

// ParseQuantity validates a typed quantity against the sub-flow's range.
func ParseQuantity(f *SubFlow, text string) (int, Problem) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ProblemQuantityNotNumber
	}
	lo, hi := f.QuantityRange()
	if n < lo || n > hi {
		return 0, ProblemQuantityOutOfRange
	}
	return n, ProblemNone
}

// ParseDescription validates a free-text project brief.
func ParseDescription(f *SubFlow, text string) (string, Problem) {
	d := strings.TrimSpace(text)
	if strings.HasPrefix(d, "/") {
		return "", ProblemDescriptionCommand
	}
	n := utf8.RuneCountInString(d)
	if n < f.MinDescriptionChars() {
		return "", ProblemDescriptionShort
	}
	if n > MaxDescriptionLen {
		return "", ProblemDescriptionLong
	}
	return d, ProblemNone
}

// QuantityPrice is quantity x unit price.
func QuantityPrice(f *SubFlow, quantity int) decimal.Decimal {
	return f.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
