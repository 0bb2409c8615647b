package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	aprioriMinTransactions = 10
	aprioriMaxItemset      = 3
	aprioriMaxRules        = 10
	aprioriTopBundles      = 5

	defaultMinSupport    = 0.05
	defaultMinConfidence = 0.3
)

type AssociationRule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
}

type BundleRecommendation struct {
	Items []string `json:"items"`
	AssociationRule
	Insight string `json:"insight"`
}

type RecommendationSummary struct {
	TotalBookRules     int `json:"total_book_rules"`
	TotalCategoryRules int `json:"total_category_rules"`
}

type BundleRecommendations struct {
	BookBundles     []BundleRecommendation `json:"book_bundles"`
	CategoryBundles []BundleRecommendation `json:"category_bundles"`
	Summary         RecommendationSummary  `json:"summary"`
}

type MultiItemCount struct {
	Books      int `json:"books"`
	Categories int `json:"categories"`
}

type AprioriParams struct {
	MinSupport    float64 `json:"min_support"`
	MinConfidence float64 `json:"min_confidence"`
}

// AprioriInsights is returned with Success false when there is not enough
// history to mine; Message then says why.
type AprioriInsights struct {
	Success               bool                   `json:"success"`
	Message               string                 `json:"message"`
	TotalTransactions     int                    `json:"total_transactions"`
	MinRequired           int                    `json:"min_required,omitempty"`
	MultiItemTransactions *MultiItemCount        `json:"multi_item_transactions,omitempty"`
	Parameters            *AprioriParams         `json:"parameters,omitempty"`
	Recommendations       *BundleRecommendations `json:"recommendations"`
}

// basket is the distinct item names of one transaction
type basket []string

// multiItem keeps baskets with at least two distinct items
func multiItem(groups map[string]map[string]struct{}, order []string) []basket {
	var out []basket
	for _, id := range order {
		set := groups[id]
		if len(set) < 2 {
			continue
		}
		b := make(basket, 0, len(set))
		for item := range set {
			b = append(b, item)
		}
		sort.Strings(b)
		out = append(out, b)
	}
	return out
}

// mineRules runs level-wise Apriori over baskets (itemsets up to three
// items) and returns the strongest rules by lift. Support is relative to
// len(baskets).
func mineRules(baskets []basket, minSupport, minConfidence float64) []AssociationRule {
	if len(baskets) < 2 {
		return nil
	}

	// items as sorted indexes so itemsets compare as sorted int slices
	index := map[string]int{}
	var names []string
	for _, b := range baskets {
		for _, item := range b {
			if _, ok := index[item]; !ok {
				index[item] = len(names)
				names = append(names, item)
			}
		}
	}
	sets := make([]map[int]struct{}, len(baskets))
	for i, b := range baskets {
		sets[i] = make(map[int]struct{}, len(b))
		for _, item := range b {
			sets[i][index[item]] = struct{}{}
		}
	}

	n := float64(len(baskets))
	support := map[string]float64{}
	countOf := func(itemset []int) int {
		count := 0
		for _, s := range sets {
			all := true
			for _, it := range itemset {
				if _, ok := s[it]; !ok {
					all = false
					break
				}
			}
			if all {
				count++
			}
		}
		return count
	}

	var level [][]int
	for i := range names {
		single := []int{i}
		if sup := float64(countOf(single)) / n; sup >= minSupport {
			support[itemsetKey(single)] = sup
			level = append(level, single)
		}
	}
	sortItemsets(level)

	var frequent [][]int
	for size := 2; size <= aprioriMaxItemset && len(level) > 1; size++ {
		var next [][]int
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				cand, ok := join(level[i], level[j])
				if !ok || !subsetsFrequent(cand, support) {
					continue
				}
				if sup := float64(countOf(cand)) / n; sup >= minSupport {
					support[itemsetKey(cand)] = sup
					next = append(next, cand)
				}
			}
		}
		sortItemsets(next)
		frequent = append(frequent, next...)
		level = next
	}

	var rules []AssociationRule
	for _, itemset := range frequent {
		whole := support[itemsetKey(itemset)]
		for _, ante := range properSubsets(itemset) {
			cons := difference(itemset, ante)
			anteSup, consSup := support[itemsetKey(ante)], support[itemsetKey(cons)]
			confidence := whole / anteSup
			if confidence < minConfidence {
				continue
			}
			rules = append(rules, AssociationRule{
				Antecedent: namesOf(ante, names),
				Consequent: namesOf(cons, names),
				Support:    round4(whole),
				Confidence: round4(confidence),
				Lift:       round4(confidence / consSup),
			})
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Support > b.Support
	})
	if len(rules) > aprioriMaxRules {
		rules = rules[:aprioriMaxRules]
	}
	return rules
}

func recommend(rules []AssociationRule, kind string) []BundleRecommendation {
	out := []BundleRecommendation{}
	for i, r := range rules {
		if i == aprioriTopBundles {
			break
		}
		items := append(append([]string{}, r.Antecedent...), r.Consequent...)
		out = append(out, BundleRecommendation{Items: items, AssociationRule: r, Insight: insightText(r, kind)})
	}
	return out
}

func insightText(r AssociationRule, kind string) string {
	pct := int(r.Confidence * 100)
	ante, cons := strings.Join(r.Antecedent, ", "), strings.Join(r.Consequent, ", ")
	if kind == "category" {
		return fmt.Sprintf("%d%% pelanggan yang membeli kategori \"%s\" juga membeli kategori \"%s\"", pct, ante, cons)
	}
	return fmt.Sprintf("%d%% pelanggan yang membeli \"%s\" juga membeli \"%s\"", pct, ante, cons)
}

// join merges two sorted itemsets that differ only in their last item
func join(a, b []int) ([]int, bool) {
	last := len(a) - 1
	for i := 0; i < last; i++ {
		if a[i] != b[i] {
			return nil, false
		}
	}
	if a[last] == b[last] {
		return nil, false
	}
	out := append(append([]int{}, a[:last]...), a[last], b[last])
	sort.Ints(out)
	return out, true
}

func subsetsFrequent(itemset []int, support map[string]float64) bool {
	for skip := range itemset {
		sub := make([]int, 0, len(itemset)-1)
		sub = append(sub, itemset[:skip]...)
		sub = append(sub, itemset[skip+1:]...)
		if _, ok := support[itemsetKey(sub)]; !ok {
			return false
		}
	}
	return true
}

func properSubsets(itemset []int) [][]int {
	var out [][]int
	for mask := 1; mask < (1<<len(itemset))-1; mask++ {
		var sub []int
		for i, it := range itemset {
			if mask&(1<<i) != 0 {
				sub = append(sub, it)
			}
		}
		out = append(out, sub)
	}
	return out
}

func difference(itemset, sub []int) []int {
	var out []int
	for _, it := range itemset {
		found := false
		for _, s := range sub {
			if s == it {
				found = true
				break
			}
		}
		if !found {
			out = append(out, it)
		}
	}
	return out
}

func namesOf(itemset []int, names []string) []string {
	out := make([]string, len(itemset))
	for i, it := range itemset {
		out[i] = names[it]
	}
	sort.Strings(out)
	return out
}

func itemsetKey(itemset []int) string {
	return fmt.Sprint(itemset)
}

func sortItemsets(sets [][]int) {
	sort.Slice(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
