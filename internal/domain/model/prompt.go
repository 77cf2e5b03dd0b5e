package model

// Choice is one button. URL buttons open a link instead of sending an action.
type Choice struct {
	Label  string
	Action string
	URL    string
}

// Prompt is an outbound message: text plus optional rows of choices.
type Prompt struct {
	Text    string
	Choices [][]Choice
}

// Actions lists every action token the prompt offers, in row order.
func (p Prompt) Actions() []string {
	var out []string
	for _, row := range p.Choices {
		for _, c := range row {
			if c.Action != "" {
				out = append(out, c.Action)
			}
		}
	}
	return out
}
