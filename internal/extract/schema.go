package extract

import "github.com/veridex/veridex/internal/model"

// LLM output shapes for both passes. Fields carry explicit legacy aliases
// (older prompt revisions used different key names) that normalize() folds
// into the canonical fields, so callers never see the permissive shape.

type pass1Claim struct {
	Text      string `json:"text"`
	Statement string `json:"statement,omitempty"` // legacy alias for text
	IsCentral bool   `json:"is_central"`
}

type pass1Output struct {
	Claims        []pass1Claim `json:"claims"`
	SearchQueries []string     `json:"search_queries"`
	Queries       []string     `json:"queries,omitempty"` // legacy alias
}

func (o *pass1Output) normalize() {
	for i := range o.Claims {
		if o.Claims[i].Text == "" {
			o.Claims[i].Text = o.Claims[i].Statement
		}
	}
	kept := o.Claims[:0]
	for _, c := range o.Claims {
		if c.Text != "" {
			kept = append(kept, c)
		}
	}
	o.Claims = kept
	if len(o.SearchQueries) == 0 {
		o.SearchQueries = o.Queries
	}
}

func (o *pass1Output) queries() []string {
	return o.SearchQueries
}

func (o *pass1Output) claimTexts() []string {
	texts := make([]string, len(o.Claims))
	for i, c := range o.Claims {
		texts[i] = c.Text
	}
	return texts
}

func (o *pass1Output) toClaims() []model.Claim {
	claims := make([]model.Claim, 0, len(o.Claims))
	for _, c := range o.Claims {
		claims = append(claims, model.Claim{
			Text:      c.Text,
			IsCentral: c.IsCentral,
			// Pass 1 has no scoring; assume checkable so the gate
			// judges on fidelity alone for degraded runs.
			Specificity: 0.5,
			Heuristic:   "pass1",
		})
	}
	return claims
}

type pass2Claim struct {
	Text         string   `json:"text"`
	Statement    string   `json:"statement,omitempty"` // legacy alias
	IsCentral    bool     `json:"is_central"`
	OpinionScore *float64 `json:"opinion_score,omitempty"`
	Opinion      *float64 `json:"opinion,omitempty"` // legacy alias
	Specificity  *float64 `json:"specificity,omitempty"`
	SpecScore    *float64 `json:"specificity_score,omitempty"` // legacy alias
}

type pass2Output struct {
	Claims []pass2Claim `json:"claims"`
}

func (o *pass2Output) normalize() {
	for i := range o.Claims {
		c := &o.Claims[i]
		if c.Text == "" {
			c.Text = c.Statement
		}
		if c.OpinionScore == nil {
			c.OpinionScore = c.Opinion
		}
		if c.Specificity == nil {
			c.Specificity = c.SpecScore
		}
	}
	kept := o.Claims[:0]
	for _, c := range o.Claims {
		if c.Text != "" {
			kept = append(kept, c)
		}
	}
	o.Claims = kept
}

func (o *pass2Output) toClaims() []model.Claim {
	claims := make([]model.Claim, 0, len(o.Claims))
	for _, c := range o.Claims {
		claim := model.Claim{
			Text:      c.Text,
			IsCentral: c.IsCentral,
			Heuristic: "pass2",
		}
		if c.OpinionScore != nil {
			claim.OpinionScore = *c.OpinionScore
		}
		if c.Specificity != nil {
			claim.Specificity = *c.Specificity
		} else {
			claim.Specificity = 0.5
		}
		claims = append(claims, claim)
	}
	return claims
}
