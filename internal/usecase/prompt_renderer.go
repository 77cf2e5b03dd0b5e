package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain/model"
)

// Texts resolves a message key to display copy.
type Texts interface {
	T(key string, args ...interface{}) string
}

type Wallet struct {
	Label   string
	Address string
}

type RenderOptions struct {
	Currency   string
	SupportURL string // "https://t.me/<support>", omitted when empty
	Wallets    []Wallet
}

// PromptRenderer turns a conversation record into the message its state calls for.
// It performs no I/O.
type PromptRenderer struct {
	texts   Texts
	catalog *model.Catalog
	opts    RenderOptions
}

func NewPromptRenderer(texts Texts, catalog *model.Catalog, opts RenderOptions) *PromptRenderer {
	if opts.Currency == "" {
		opts.Currency = "Ksh"
	}
	return &PromptRenderer{texts: texts, catalog: catalog, opts: opts}
}

// Render is total over the state set; an unknown variant is a programming error.
func (r *PromptRenderer) Render(c *model.Conversation) model.Prompt {
	switch st := c.State.(type) {
	case model.Idle:
		return model.Prompt{Text: r.texts.T("farewell"), Choices: [][]model.Choice{r.viewServicesRow()}}
	case model.SelectingService:
		return r.catalogPrompt()
	case model.CollectingDetails:
		return r.detailsPrompt(c, st)
	case model.PriceConfirmed:
		return r.methodPrompt(c, true)
	case model.SelectingPaymentMethod:
		return r.methodPrompt(c, false)
	case model.CollectingPhone:
		return r.phonePrompt(c, st)
	case model.AwaitingProofUpload:
		return r.cryptoPrompt(c, st)
	case model.PaymentRequested:
		if st.TransactionID == "" {
			return model.Prompt{Text: r.texts.T("payment.sending", st.Phone)}
		}
		return model.Prompt{
			Text:    r.texts.T("payment.stk_sent", st.OrderID),
			Choices: [][]model.Choice{r.cancelRow(model.ActionCancel)},
		}
	case model.PaymentSucceeded:
		return model.Prompt{
			Text:    r.texts.T("payment.success", st.OrderID, r.serviceName(c), r.money(st.Amount), st.ReceiptID),
			Choices: [][]model.Choice{r.viewServicesRow()},
		}
	case model.PaymentFailed:
		return r.failedPrompt(st)
	case model.ProofSubmitted:
		return model.Prompt{
			Text:    r.texts.T("proof.received", st.OrderID),
			Choices: [][]model.Choice{r.viewServicesRow()},
		}
	}
	panic(fmt.Sprintf("prompt renderer: unhandled state %T", c.State))
}

func (r *PromptRenderer) catalogPrompt() model.Prompt {
	rows := make([][]model.Choice, 0, len(r.catalog.List())+1)
	for _, s := range r.catalog.List() {
		label := r.texts.T("catalog.item_variable", s.Name)
		if s.FixedPrice() {
			label = r.texts.T("catalog.item_fixed", s.Name, r.money(*s.Price))
		}
		rows = append(rows, []model.Choice{{Label: label, Action: model.ServiceAction(s.ID)}})
	}
	footer := []model.Choice{{Label: r.texts.T("button.view_services"), Action: model.ActionMenu}}
	if r.opts.SupportURL != "" {
		footer = append(footer, model.Choice{Label: r.texts.T("button.support"), URL: r.opts.SupportURL})
	}
	rows = append(rows, footer)
	return model.Prompt{Text: r.texts.T("catalog.title"), Choices: rows}
}

func (r *PromptRenderer) detailsPrompt(c *model.Conversation, st model.CollectingDetails) model.Prompt {
	var lines []string
	if st.Problem != model.ProblemNone {
		lines = append(lines, r.texts.T("problem."+string(st.Problem)))
	}
	lines = append(lines, r.texts.T("details.selected", r.serviceName(c)))

	var rows [][]model.Choice
	f := c.Service.SubFlow
	switch st.Step {
	case model.StepQuantity:
		lo, hi := f.QuantityRange()
		lines = append(lines, r.texts.T("details.quantity", lo, hi, r.money(f.UnitPrice)))
	case model.StepCountry:
		lines = append(lines, r.texts.T("details.country"))
		for _, o := range f.Countries {
			rows = append(rows, []model.Choice{{Label: o.Label, Action: model.OptionAction(o.ID)}})
		}
	case model.StepTier:
		country := ""
		if d, ok := c.Details.(model.CountryTierDetails); ok {
			if o, ok := f.Country(d.Country); ok {
				country = o.Label
			}
		}
		lines = append(lines, r.texts.T("details.tier", country))
		for _, o := range f.Tiers {
			label := r.texts.T("details.tier_item", o.Label, r.money(*o.Price))
			rows = append(rows, []model.Choice{{Label: label, Action: model.OptionAction(o.ID)}})
		}
	case model.StepDescription:
		lines = append(lines, r.texts.T("details.description", f.MinDescriptionChars(), r.money(f.Deposit)))
	}
	rows = append(rows, r.cancelRow(model.ActionRestart))
	return model.Prompt{Text: strings.Join(lines, "\n\n"), Choices: rows}
}

func (r *PromptRenderer) methodPrompt(c *model.Conversation, withSummary bool) model.Prompt {
	lines := []string{r.texts.T("price.summary", r.serviceName(c), r.price(c))}
	if d := r.detailsLine(c); withSummary && d != "" {
		lines = append(lines, d)
	}
	lines = append(lines, r.texts.T("payment.method"))
	return model.Prompt{
		Text: strings.Join(lines, "\n\n"),
		Choices: [][]model.Choice{
			{{Label: r.texts.T("button.pay_mobile"), Action: model.ActionPayMobile}},
			{{Label: r.texts.T("button.pay_crypto"), Action: model.ActionPayCrypto}},
			r.cancelRow(model.ActionRestart),
		},
	}
}

func (r *PromptRenderer) detailsLine(c *model.Conversation) string {
	switch d := c.Details.(type) {
	case model.QuantityDetails:
		return r.texts.T("price.quantity", d.Quantity)
	case model.CountryTierDetails:
		f := c.Service.SubFlow
		country, _ := f.Country(d.Country)
		tier, _ := f.Tier(d.Tier)
		return r.texts.T("price.country_tier", country.Label, tier.Label)
	case model.ProjectDetails:
		return r.texts.T("price.project", d.Description)
	}
	return ""
}

func (r *PromptRenderer) phonePrompt(c *model.Conversation, st model.CollectingPhone) model.Prompt {
	if st.Candidate != "" {
		return model.Prompt{
			Text: r.texts.T("phone.confirm", st.Candidate, r.serviceName(c), r.price(c)),
			Choices: [][]model.Choice{
				{{Label: r.texts.T("button.phone_yes"), Action: model.ActionPhoneYes}},
				{{Label: r.texts.T("button.phone_edit"), Action: model.ActionPhoneEdit}},
				r.cancelRow(model.ActionRestart),
			},
		}
	}
	text := r.texts.T("phone.ask")
	if st.Problem != model.ProblemNone {
		text = r.texts.T("problem."+string(st.Problem)) + "\n" + text
	}
	return model.Prompt{Text: text, Choices: [][]model.Choice{r.cancelRow(model.ActionRestart)}}
}

func (r *PromptRenderer) cryptoPrompt(c *model.Conversation, st model.AwaitingProofUpload) model.Prompt {
	wallets := make([]string, 0, len(r.opts.Wallets))
	for _, w := range r.opts.Wallets {
		wallets = append(wallets, r.texts.T("crypto.wallet", w.Label, w.Address))
	}
	list := r.texts.T("crypto.no_wallets")
	if len(wallets) > 0 {
		list = strings.Join(wallets, "\n")
	}
	text := r.texts.T("crypto.instructions", r.serviceName(c), r.price(c), st.OrderID, list)
	if st.Problem != model.ProblemNone {
		text = r.texts.T("problem."+string(st.Problem)) + "\n\n" + text
	}
	rows := [][]model.Choice{{{Label: r.texts.T("button.upload_proof"), Action: model.ActionProofUpload}}}
	if r.opts.SupportURL != "" {
		rows = append(rows, []model.Choice{{Label: r.texts.T("button.support"), URL: r.opts.SupportURL}})
	}
	rows = append(rows, r.cancelRow(model.ActionRestart))
	return model.Prompt{Text: text, Choices: rows}
}

func (r *PromptRenderer) failedPrompt(st model.PaymentFailed) model.Prompt {
	rows := [][]model.Choice{
		{{Label: r.texts.T("button.retry"), Action: model.ActionRetry}},
		{{Label: r.texts.T("button.pay_crypto"), Action: model.ActionPayCrypto}},
	}
	if r.opts.SupportURL != "" {
		rows = append(rows, []model.Choice{{Label: r.texts.T("button.support"), URL: r.opts.SupportURL}})
	}
	rows = append(rows, r.cancelRow(model.ActionCancel))
	return model.Prompt{Text: r.texts.T("payment.failed."+string(st.Reason), st.OrderID), Choices: rows}
}

func (r *PromptRenderer) viewServicesRow() []model.Choice {
	return []model.Choice{{Label: r.texts.T("button.view_services"), Action: model.ActionMenu}}
}

func (r *PromptRenderer) cancelRow(action string) []model.Choice {
	return []model.Choice{{Label: r.texts.T("button.cancel"), Action: action}}
}

func (r *PromptRenderer) serviceName(c *model.Conversation) string {
	if c.Service == nil {
		return ""
	}
	return c.Service.Name
}

func (r *PromptRenderer) price(c *model.Conversation) string {
	if c.Price == nil {
		return ""
	}
	return r.money(*c.Price)
}

// Money formats an amount the way prompts and support messages show it, e.g. "Ksh 1500".
func (r *PromptRenderer) Money(d decimal.Decimal) string { return r.money(d) }

func (r *PromptRenderer) money(d decimal.Decimal) string {
	if d.IsInteger() {
		return r.opts.Currency + " " + d.StringFixed(0)
	}
	return r.opts.Currency + " " + d.StringFixed(2)
}
