package model

// Claim represents an atomic factual assertion extracted from user input
type Claim struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`                 // Must be derivable from the original input alone
	IsCentral      bool    `json:"is_central"`           // Core to the user's thesis
	PassedFidelity bool    `json:"passed_fidelity"`      // Survived the Gate 1 drift filter
	OpinionScore   float64 `json:"opinion_score"`        // 0..1, estimated "opinion-ness"
	Specificity    float64 `json:"specificity"`          // 0..1, how checkable the claim is
	HarmPotential  bool    `json:"harm_potential"`       // Mentions death/injury/fraud etc.
	Heuristic      string  `json:"heuristic,omitempty"`  // Which pass produced it (pass1, pass2, rescue)
}

// Stance describes how an evidence item bears on a claim
type Stance string

const (
	StanceSupports    Stance = "supports"
	StanceContradicts Stance = "contradicts"
	StanceNeutral     Stance = "neutral"
)

// harm lexicon used for up-weighting high-stakes claims
var harmKeywords = []string{
	"death", "died", "killed", "killing", "fatal", "fatality",
	"injury", "injured", "wounded", "hospitalized",
	"fraud", "fraudulent", "scam", "embezzle",
	"poison", "toxic", "outbreak", "epidemic",
}

// HarmKeywords returns the harm-potential lexicon
func HarmKeywords() []string {
	return harmKeywords
}
