package mlkit

import (
	"math"
	"sort"
	"strings"
)

// englishStopWords is the filter applied before n-gram construction.
var englishStopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"all": true, "also": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "as": true, "at": true, "be": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "but": true, "by": true, "can": true,
	"could": true, "did": true, "do": true, "does": true, "doing": true,
	"down": true, "during": true, "each": true, "few": true, "for": true,
	"from": true, "further": true, "had": true, "has": true, "have": true,
	"having": true, "he": true, "her": true, "here": true, "hers": true,
	"him": true, "his": true, "how": true, "i": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true,
	"just": true, "me": true, "more": true, "most": true, "my": true,
	"no": true, "nor": true, "not": true, "now": true, "of": true,
	"off": true, "on": true, "once": true, "only": true, "or": true,
	"other": true, "our": true, "out": true, "over": true, "own": true,
	"same": true, "she": true, "should": true, "so": true, "some": true,
	"such": true, "than": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "to": true, "too": true,
	"under": true, "until": true, "up": true, "very": true, "was": true,
	"we": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "whom": true, "why": true,
	"will": true, "with": true, "you": true, "your": true, "yours": true,
}

// TfidfVectorizer turns pre-cleaned text (lowercase, alphanumeric, space
// separated) into L2-normalized TF-IDF rows over unigrams and bigrams.
type TfidfVectorizer struct {
	MaxFeatures int
	MinDocFreq  int
}

// FitTransform builds the vocabulary and vectorizes docs in one pass.
// Returns the matrix and the retained terms in column order.
func (v *TfidfVectorizer) FitTransform(docs []string) ([][]float64, []string) {
	tokenized := make([][]string, len(docs))
	docFreq := make(map[string]int)
	totalFreq := make(map[string]int)

	for i, doc := range docs {
		grams := ngrams(doc)
		tokenized[i] = grams
		seen := make(map[string]bool)
		for _, g := range grams {
			totalFreq[g]++
			if !seen[g] {
				seen[g] = true
				docFreq[g]++
			}
		}
	}

	// Vocabulary: drop rare terms, keep the most frequent overall.
	var terms []string
	for term, df := range docFreq {
		if df >= v.MinDocFreq {
			terms = append(terms, term)
		}
	}
	sort.Slice(terms, func(a, b int) bool {
		if totalFreq[terms[a]] != totalFreq[terms[b]] {
			return totalFreq[terms[a]] > totalFreq[terms[b]]
		}
		return terms[a] < terms[b]
	})
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	matrix := make([][]float64, len(docs))
	for i, grams := range tokenized {
		row := make([]float64, len(terms))
		for _, g := range grams {
			if j, ok := index[g]; ok {
				row[j] += idf[j]
			}
		}
		l2normalize(row)
		matrix[i] = row
	}
	return matrix, terms
}

// ngrams tokenizes on whitespace, drops stop words, and emits unigrams plus
// bigrams over the filtered stream.
func ngrams(doc string) []string {
	fields := strings.Fields(doc)
	tokens := fields[:0]
	for _, f := range fields {
		if !englishStopWords[f] {
			tokens = append(tokens, f)
		}
	}
	grams := make([]string, 0, 2*len(tokens))
	for i, tok := range tokens {
		grams = append(grams, tok)
		if i+1 < len(tokens) {
			grams = append(grams, tok+" "+tokens[i+1])
		}
	}
	return grams
}

func l2normalize(row []float64) {
	var sum float64
	for _, v := range row {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range row {
		row[i] /= norm
	}
}
