package usecase

import (
	"context"
	"fmt"
	"strings"

	"argus/internal/domain"
)

// NopRetriever returns no snippets. Deployments without a document index
// run generation from the case summary alone.
type NopRetriever struct{}

func (NopRetriever) Retrieve(context.Context, []string, string) ([]Snippet, error) {
	return nil, nil
}

// FallbackGenerator produces a deterministic template narrative from the
// case summary and retrieved snippets. It cites only permitted refs, so its
// output always clears the hallucination check. Used when the primary
// generator is unavailable or fails.
type FallbackGenerator struct{}

func (FallbackGenerator) Generate(_ context.Context, input GenerationInput) (domain.Narrative, error) {
	evidence := "No retrieval snippets were available for this case."
	if len(input.Snippets) > 0 {
		var lines []string
		for _, s := range input.Snippets {
			lines = append(lines, fmt.Sprintf("- [%s] %s", s.EvidenceRef, s.Text))
		}
		evidence = strings.Join(lines, "\n")
	}

	sections := []domain.NarrativeSection{
		{Name: "Subject Information", Body: "Subject identifying details are held under the case evidence boundary and referenced by the citations below."},
		{Name: "Account Details", Body: "Account activity summarized: " + input.CaseSummary + "."},
		{Name: "Alert Summary", Body: fmt.Sprintf("The monitoring system raised an alert assessed at risk level %s. %s.", input.RiskLevel, input.CaseSummary)},
		{Name: "Transaction Pattern Analysis", Body: "Transaction records within the case boundary were reviewed for structuring, velocity and corridor indicators. Findings recorded by the validation rules accompany this report."},
		{Name: "Suspicious Behaviour Indicators", Body: "Indicators identified by the automated rule set are attached to this case as findings and reflected in the computed risk factors."},
		{Name: "Supporting Evidence", Body: evidence},
		{Name: "Regulatory Justification", Body: "The activity described is reported pursuant to suspicious activity reporting obligations covering structuring, rapid movement of funds and transfers involving higher-risk jurisdictions."},
		{Name: "Investigator Assessment", Body: fmt.Sprintf("Automated assessment places this case at risk level %s as of case version %d. Reviewer judgment supersedes this assessment.", input.RiskLevel, input.SubmittedVersion)},
		{Name: "Conclusion & Recommendation", Body: "Filing is recommended subject to reviewer approval. All cited material sits inside the approved evidence boundary."},
	}

	return domain.Narrative{
		Sections:  sections,
		Citations: append([]string(nil), input.PermittedRefs...),
	}, nil
}
