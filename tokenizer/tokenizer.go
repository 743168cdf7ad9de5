// Package tokenizer splits raw document text into normalized terms.
//
// Normalization is intentionally minimal: terms are lower-cased and split on
// any non-alphanumeric rune. There is no stemming and no stop-word removal,
// so the same text always produces the same term sequence. Queries and
// documents must be tokenized identically for scoring to line up, which is
// why the index and the query engine both go through this package.
package tokenizer

import (
	"iter"
	"unicode"
	"unicode/utf8"
)

// Terms returns a lazy sequence of normalized terms in text. The sequence is
// finite and restartable: ranging over it twice yields the same terms.
//
// ASCII text takes a byte-level fast path; tokens that are already lowercase
// alias the input string instead of allocating.
func Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		buf := make([]byte, 0, 32)
		n := len(text)
		i := 0
		for i < n {
			// Skip separators.
			for i < n {
				c := text[i]
				if c < utf8.RuneSelf {
					if isAlnumASCII(c) {
						break
					}
					i++
					continue
				}
				r, size := utf8.DecodeRuneInString(text[i:])
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					break
				}
				i += size
			}
			if i >= n {
				return
			}

			// Collect one token.
			start := i
			clean := true
			buf = buf[:0]
			for i < n {
				c := text[i]
				if c < utf8.RuneSelf {
					if !isAlnumASCII(c) {
						break
					}
					if 'A' <= c && c <= 'Z' {
						c += 'a' - 'A'
						clean = false
					}
					buf = append(buf, c)
					i++
					continue
				}
				r, size := utf8.DecodeRuneInString(text[i:])
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				lr := unicode.ToLower(r)
				if lr != r {
					clean = false
				}
				buf = utf8.AppendRune(buf, lr)
				i += size
			}

			var tok string
			if clean {
				tok = text[start:i]
			} else {
				tok = string(buf)
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// Frequencies tokenizes text and returns the occurrence count per term.
func Frequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for term := range Terms(text) {
		freqs[term]++
	}
	return freqs
}

// Count returns the number of tokens in text. It is the document length
// used for score normalization.
func Count(text string) int {
	n := 0
	for range Terms(text) {
		n++
	}
	return n
}

func isAlnumASCII(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
