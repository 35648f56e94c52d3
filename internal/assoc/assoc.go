// Package assoc mines association rules over per-session item baskets. Items
// mix tools, event types, and keyword-derived feature tags so rules can link
// behavior across all three.
package assoc

import (
	"regexp"
	"sort"
	"strings"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
	"atlaslens/internal/sessions"
)

// Mining methods recorded on the artifact.
const (
	MethodApriori  = "apriori"
	MethodPairwise = "pairwise_fallback"
)

// Rule is one mined association with its interest measures.
type Rule struct {
	Antecedents []string `json:"antecedents"`
	Consequents []string `json:"consequents"`
	Support     float64  `json:"support"`
	Confidence  float64  `json:"confidence"`
	Lift        float64  `json:"lift"`
	Leverage    float64  `json:"leverage"`
}

// Result is the feature co-occurrence artifact payload.
type Result struct {
	TransactionsUsed int    `json:"transactions_used"`
	Method           string `json:"method"`
	Rules            []Rule `json:"rules"`
	Note             string `json:"note,omitempty"`
}

// Feature tags derived from event text.
var featurePatterns = []struct {
	tag string
	re  *regexp.Regexp
}{
	{"feature:opacity", regexp.MustCompile(`opaci`)},
	{"feature:spatial_search", regexp.MustCompile(`spatial`)},
	{"feature:download_export", regexp.MustCompile(`download|export`)},
	{"feature:upload", regexp.MustCompile(`upload`)},
	{"feature:organ_selection", regexp.MustCompile(`kidney|heart|lung|brain|colon|liver`)},
}

// BuildTransactions turns each session's events into one sorted item basket.
func BuildTransactions(events []loader.CanonicalEvent) [][]string {
	var out [][]string
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].SessionID != events[start].SessionID {
			if basket := buildBasket(events[start:i]); len(basket) > 0 {
				out = append(out, basket)
			}
			start = i
		}
	}
	return out
}

func buildBasket(events []loader.CanonicalEvent) []string {
	items := make(map[string]bool)
	for _, ev := range events {
		if ev.Tool != "" {
			items["tool:"+ev.Tool] = true
		}
		if ev.EventType != "" && ev.EventType != "unknown" {
			items["event:"+ev.EventType] = true
		}
		if ev.EventType == sessions.EventKeyboard {
			items["feature:keyboard_navigation"] = true
		}

		blob := strings.ToLower(strings.Join([]string{ev.Path, ev.Label, ev.Action, ev.Tab, ev.Value}, " "))
		for _, fp := range featurePatterns {
			if fp.re.MatchString(blob) {
				items[fp.tag] = true
			}
		}
	}

	basket := make([]string, 0, len(items))
	for item := range items {
		basket = append(basket, item)
	}
	sort.Strings(basket)
	return basket
}

// Miner is one rule-mining method.
type Miner interface {
	Name() string
	Mine(transactions [][]string, policy config.Policy) ([]Rule, string)
}

// Mine runs the apriori miner and falls back to pairwise co-occurrence when
// no rule clears the apriori thresholds.
func Mine(transactions [][]string, policy config.Policy) Result {
	if len(transactions) == 0 {
		return Result{Method: MethodApriori, Rules: []Rule{}, Note: "no frequent itemsets at configured support"}
	}

	primary := AprioriMiner{}
	rules, note := primary.Mine(transactions, policy)
	if len(rules) > 0 {
		return Result{TransactionsUsed: len(transactions), Method: primary.Name(), Rules: rules}
	}

	fallback := PairwiseMiner{}
	fbRules, fbNote := fallback.Mine(transactions, policy)
	if len(fbRules) > 0 {
		return Result{TransactionsUsed: len(transactions), Method: fallback.Name(), Rules: fbRules}
	}
	if note == "" {
		note = fbNote
	}
	return Result{TransactionsUsed: len(transactions), Method: primary.Name(), Rules: []Rule{}, Note: note}
}

// AprioriMiner does levelwise frequent-itemset mining up to three items and
// derives single-consequent rules.
type AprioriMiner struct{}

func (AprioriMiner) Name() string { return MethodApriori }

func (AprioriMiner) Mine(transactions [][]string, policy config.Policy) ([]Rule, string) {
	n := float64(len(transactions))
	minCount := policy.AssocMinSupport * n

	sets := make([]map[string]bool, len(transactions))
	for i, tx := range transactions {
		sets[i] = make(map[string]bool, len(tx))
		for _, item := range tx {
			sets[i][item] = true
		}
	}

	// Level 1.
	singles := make(map[string]int)
	for _, set := range sets {
		for item := range set {
			singles[item]++
		}
	}
	support := make(map[string]float64)
	var frequent [][]string
	for item, count := range singles {
		if float64(count) >= minCount {
			support[item] = float64(count) / n
			frequent = append(frequent, []string{item})
		}
	}
	if len(frequent) == 0 {
		return nil, "no frequent itemsets at configured support"
	}

	level := frequent
	for size := 2; size <= 3; size++ {
		candidates := generateCandidates(level)
		var next [][]string
		for _, cand := range candidates {
			count := 0
			for _, set := range sets {
				if containsAll(set, cand) {
					count++
				}
			}
			if float64(count) >= minCount {
				support[itemsetKey(cand)] = float64(count) / n
				next = append(next, cand)
			}
		}
		frequent = append(frequent, next...)
		level = next
		if len(level) == 0 {
			break
		}
	}

	var rules []Rule
	for _, itemset := range frequent {
		if len(itemset) < 2 {
			continue
		}
		setSupport := support[itemsetKey(itemset)]
		for i, consequent := range itemset {
			antecedent := make([]string, 0, len(itemset)-1)
			antecedent = append(antecedent, itemset[:i]...)
			antecedent = append(antecedent, itemset[i+1:]...)

			antSupport := support[itemsetKey(antecedent)]
			conSupport := support[consequent]
			if antSupport == 0 || conSupport == 0 {
				continue
			}
			confidence := setSupport / antSupport
			lift := confidence / conSupport
			if lift < policy.AssocMinLift {
				continue
			}
			rules = append(rules, Rule{
				Antecedents: antecedent,
				Consequents: []string{consequent},
				Support:     mlkit.Round3(setSupport),
				Confidence:  mlkit.Round3(confidence),
				Lift:        mlkit.Round3(lift),
				Leverage:    mlkit.Round4(setSupport - antSupport*conSupport),
			})
		}
	}
	if len(rules) == 0 {
		return nil, "no association rules at configured thresholds"
	}
	return rankRules(rules, policy.AssocTopRules), ""
}

// PairwiseMiner scores every item pair above the support floor in both
// directions, with no lift requirement.
type PairwiseMiner struct{}

func (PairwiseMiner) Name() string { return MethodPairwise }

func (PairwiseMiner) Mine(transactions [][]string, policy config.Policy) ([]Rule, string) {
	n := float64(len(transactions))
	singles := make(map[string]int)
	pairs := make(map[[2]string]int)

	for _, tx := range transactions {
		for _, item := range tx {
			singles[item]++
		}
		for i := 0; i < len(tx); i++ {
			for j := i + 1; j < len(tx); j++ {
				pairs[[2]string{tx[i], tx[j]}]++
			}
		}
	}

	var rules []Rule
	for pair, count := range pairs {
		pairSupport := float64(count) / n
		if pairSupport < policy.AssocMinSupport {
			continue
		}
		for _, dir := range [][2]string{pair, {pair[1], pair[0]}} {
			antSupport := float64(singles[dir[0]]) / n
			conSupport := float64(singles[dir[1]]) / n
			confidence := pairSupport / antSupport
			rules = append(rules, Rule{
				Antecedents: []string{dir[0]},
				Consequents: []string{dir[1]},
				Support:     mlkit.Round3(pairSupport),
				Confidence:  mlkit.Round3(confidence),
				Lift:        mlkit.Round3(confidence / conSupport),
				Leverage:    mlkit.Round4(pairSupport - antSupport*conSupport),
			})
		}
	}
	if len(rules) == 0 {
		return nil, "no association rules at configured thresholds"
	}
	return rankRules(rules, policy.AssocTopRules), ""
}

func rankRules(rules []Rule, limit int) []Rule {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Lift != rules[j].Lift {
			return rules[i].Lift > rules[j].Lift
		}
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		if rules[i].Support != rules[j].Support {
			return rules[i].Support > rules[j].Support
		}
		return itemsetKey(rules[i].Antecedents) < itemsetKey(rules[j].Antecedents)
	})
	if len(rules) > limit {
		rules = rules[:limit]
	}
	return rules
}

// generateCandidates joins same-prefix sorted itemsets, the classic apriori
// candidate step.
func generateCandidates(level [][]string) [][]string {
	var out [][]string
	seen := make(map[string]bool)
	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			a, b := level[i], level[j]
			if !samePrefix(a, b) {
				continue
			}
			cand := make([]string, 0, len(a)+1)
			cand = append(cand, a...)
			cand = append(cand, b[len(b)-1])
			sort.Strings(cand)
			key := itemsetKey(cand)
			if !seen[key] {
				seen[key] = true
				out = append(out, cand)
			}
		}
	}
	return out
}

func samePrefix(a, b []string) bool {
	for k := 0; k < len(a)-1; k++ {
		if a[k] != b[k] {
			return false
		}
	}
	return a[len(a)-1] != b[len(b)-1]
}

func containsAll(set map[string]bool, items []string) bool {
	for _, item := range items {
		if !set[item] {
			return false
		}
	}
	return true
}

func itemsetKey(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
