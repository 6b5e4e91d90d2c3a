package proposal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/three-lanterns/curator/internal/model"
)

var keywordMap = []struct {
	needle    string
	dimension string
	term      string
}{
	{"dawn", "time_timing", "dawn_operation"},
	{"night", "time_timing", "night_operation"},
	{"offering", "exchange_offering", "food_offering"},
	{"libation", "exchange_offering", "liquid_libation"},
	{"circle", "protection_boundary", "circle_boundary"},
	{"protect", "ritual_intent", "protection"},
	{"divin", "ritual_intent", "divination"},
	{"invoke", "ritual_actions", "invocation"},
}

// HeuristicGenerator derives proposals from keyword presence and token
// overlap with peer passages. Deterministic and offline.
type HeuristicGenerator struct{}

// NewHeuristicGenerator returns the offline proposer.
func NewHeuristicGenerator() *HeuristicGenerator {
	return &HeuristicGenerator{}
}

func (g *HeuristicGenerator) Generate(_ context.Context, passage *model.Passage, peers []model.Passage, req GenerateRequest) (Bundle, string, *model.ProposalTrace, error) {
	bundle := heuristicBundle(passage, peers)
	raw := marshalBundle(bundle)
	trace := newBundleTrace(passage.ID, req, "heuristic", buildPrompt(passage, peers), raw, map[string]any{"mode": "heuristic"}, 0, "")
	return bundle, raw, trace, nil
}

func heuristicBundle(passage *model.Passage, peers []model.Passage) Bundle {
	text := strings.ToLower(passage.Normalized)
	var bundle Bundle

	for _, kw := range keywordMap {
		if strings.Contains(text, kw.needle) {
			bundle.Tags = append(bundle.Tags, TagProposal{
				Dimension:   kw.dimension,
				Term:        kw.term,
				Confidence:  0.68,
				EvidenceIDs: []string{passage.ID},
			})
		}
	}

	if passage.DetectedLangCode != model.CanonicalLanguage {
		bundle.Flags = append(bundle.Flags, FlagProposal{
			FlagType:    "uncertain_translation",
			Severity:    "medium",
			Rationale:   "Passage normalized into canonical English representation from non-English original.",
			EvidenceIDs: []string{passage.ID},
		})
	}

	var bestPeer *model.Passage
	bestScore := 0.0
	for i := range peers {
		peer := &peers[i]
		if peer.TextID == passage.TextID {
			continue
		}
		score := tokenJaccard(passage.Normalized, peer.Normalized)
		if score > bestScore {
			bestScore = score
			bestPeer = peer
		}
	}
	if bestPeer != nil && bestScore >= 0.35 {
		bundle.Links = append(bundle.Links, LinkProposal{
			TargetPassageID: bestPeer.ID,
			RelationType:    "sharesPatternWith",
			SimilarityScore: math.Round(bestScore*10000) / 10000,
			EvidenceIDs:     []string{passage.ID, bestPeer.ID},
		})
	}

	if len(bundle.Tags) == 0 {
		bundle.Tags = append(bundle.Tags, TagProposal{
			Dimension:   "outcome_claim",
			Term:        "uncertain_or_symbolic",
			Confidence:  0.51,
			EvidenceIDs: []string{passage.ID},
		})
	}

	if len(bundle.Tags) > 3 {
		bundle.Tags = bundle.Tags[:3]
	}
	if len(bundle.Links) > 1 {
		bundle.Links = bundle.Links[:1]
	}
	return bundle
}

func tokenJaccard(left, right string) float64 {
	leftSet := proposalTokens(left)
	rightSet := proposalTokens(right)
	if len(leftSet) == 0 || len(rightSet) == 0 {
		return 0.0
	}
	overlap := 0
	for tok := range leftSet {
		if rightSet[tok] {
			overlap++
		}
	}
	union := len(leftSet) + len(rightSet) - overlap
	return float64(overlap) / float64(union)
}

func proposalTokens(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

// buildPrompt renders the bundle prompt shared by both generators: the
// controlled vocabulary, the passage, and up to ten peer candidates.
func buildPrompt(passage *model.Passage, peers []model.Passage) string {
	var peerLines []string
	for _, peer := range peers {
		if peer.ID == passage.ID {
			continue
		}
		peerLines = append(peerLines, fmt.Sprintf("- %s: %s", peer.ID, truncateRunes(peer.Normalized, 320)))
		if len(peerLines) >= 10 {
			break
		}
	}

	dims := make(map[string][]string, len(model.OntologyDimensions))
	for dim, terms := range model.OntologyDimensions {
		sorted := append([]string(nil), terms...)
		sort.Strings(sorted)
		dims[dim] = sorted
	}
	allowedTerms, _ := json.Marshal(dims)

	var b strings.Builder
	b.WriteString("You are proposing structured ritual-analysis metadata.\n")
	b.WriteString("Return strictly JSON with keys tags, links, flags.\n")
	b.WriteString("Each tag/link/flag must include evidence_ids with valid passage IDs from the provided passage IDs.\n")
	b.WriteString("Do not return markdown, prose, or extra keys.\n")
	b.WriteString("Only use ontology terms from this map:\n")
	b.Write(allowedTerms)
	b.WriteString("\n")
	b.WriteString("Passage ID: " + passage.ID + "\n")
	b.WriteString("Passage text: " + truncateRunes(passage.Normalized, 2800) + "\n")
	b.WriteString("Candidate peer passages for cross-cultural linking:\n")
	b.WriteString(strings.Join(peerLines, "\n") + "\n")
	return b.String()
}

func buildRepairPrompt(originalPrompt, rawResponse, errText string) string {
	var b strings.Builder
	b.WriteString("Repair this invalid JSON response and return strictly valid JSON only.\n")
	b.WriteString("Follow the original schema requirements and preserve only valid objects.\n")
	b.WriteString("Original prompt:\n" + originalPrompt + "\n")
	b.WriteString("Invalid response:\n" + rawResponse + "\n")
	b.WriteString("Validation error:\n" + errText + "\n")
	return b.String()
}

func newBundleTrace(passageID string, req GenerateRequest, modelName, prompt, rawResponse string, usage map[string]any, retryCount int, failureReason string) *model.ProposalTrace {
	return &model.ProposalTrace{
		ID:             model.NewID("trc"),
		ObjectType:     "passage",
		ObjectID:       passageID,
		ProposalType:   "bundle",
		IdempotencyKey: req.IdempotencyKey,
		ModelName:      modelName,
		PromptVersion:  "bundle_v1",
		PromptHash:     hashString(prompt),
		ResponseHash:   hashString(rawResponse),
		Usage:          usage,
		RetryCount:     retryCount,
		FailureReason:  failureReason,
		CreatedBy:      req.Actor,
		CreatedAt:      time.Now().UTC(),
	}
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
