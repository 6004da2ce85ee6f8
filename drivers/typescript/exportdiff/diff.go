package exportdiff

import (
	"sort"
	"strings"

	"github.com/emenda-labs/tsexports/core/changespec"
	"github.com/emenda-labs/tsexports/drivers/typescript/symbols"
)

const (
	// MinNameSimilarity is the minimum normalized Levenshtein similarity for fuzzy rename matching.
	MinNameSimilarity = 0.7

	// MinSignatureOverlap is the minimum Jaccard overlap on signature tokens for fuzzy rename matching.
	MinSignatureOverlap = 0.8

	// ShortNameLength is the threshold below which stricter name similarity is required.
	ShortNameLength = 4

	// ShortNameMinSimilarity is the stricter threshold for names shorter than ShortNameLength.
	ShortNameMinSimilarity = 0.85
)

// symbolKey identifies an export: a name is unique within a module.
type symbolKey struct {
	module string
	name   string
}

type diffState struct {
	oldByKey   map[symbolKey]*symbols.Symbol
	newByKey   map[symbolKey]*symbols.Symbol
	matchedOld map[symbolKey]bool
	matchedNew map[symbolKey]bool
	changes    []changespec.Change
}

type scoredPair struct {
	oldKey symbolKey
	newKey symbolKey
	score  float64
}

func newDiffState(old, new symbols.Symbols) *diffState {
	s := &diffState{
		oldByKey:   make(map[symbolKey]*symbols.Symbol, old.Len()),
		newByKey:   make(map[symbolKey]*symbols.Symbol, new.Len()),
		matchedOld: make(map[symbolKey]bool),
		matchedNew: make(map[symbolKey]bool),
	}
	for _, sym := range old.All() {
		s.oldByKey[symbolKey{module: sym.Module, name: sym.Name}] = &sym
	}
	for _, sym := range new.All() {
		s.newByKey[symbolKey{module: sym.Module, name: sym.Name}] = &sym
	}
	return s
}

// DiffExports compares the exports of two package versions and classifies
// every difference. It runs six passes: exact match, changed, renamed,
// fuzzy renamed, moved and leftovers. The result is sorted by module, symbol
// and kind.
func DiffExports(old, new symbols.Symbols) []changespec.Change {
	s := newDiffState(old, new)
	s.exactMatch()
	s.changed()
	s.renamed()
	s.fuzzyMatch()
	s.moved()
	s.leftovers()

	sort.SliceStable(s.changes, func(i, j int) bool {
		a, b := s.changes[i], s.changes[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Kind < b.Kind
	})
	return s.changes
}

func (s *diffState) markMatched(oldKey, newKey symbolKey) {
	s.matchedOld[oldKey] = true
	s.matchedNew[newKey] = true
}

func (s *diffState) emit(c changespec.Change) {
	s.changes = append(s.changes, c)
}

// unmatchedOld and unmatchedNew return keys in a stable order so that
// ambiguous candidates are always considered the same way.
func (s *diffState) unmatchedOld() []symbolKey {
	return unmatched(s.oldByKey, s.matchedOld)
}

func (s *diffState) unmatchedNew() []symbolKey {
	return unmatched(s.newByKey, s.matchedNew)
}

func unmatched(byKey map[symbolKey]*symbols.Symbol, matched map[symbolKey]bool) []symbolKey {
	var keys []symbolKey
	for k := range byKey {
		if !matched[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].module != keys[j].module {
			return keys[i].module < keys[j].module
		}
		return keys[i].name < keys[j].name
	})
	return keys
}

func targetOf(sym *symbols.Symbol) string {
	if sym.Alias == nil {
		return ""
	}
	if sym.Alias.Kind == symbols.SymbolUnknown {
		return "?"
	}
	return sym.Alias.Module + "#" + sym.Alias.Name
}

// Pass 1: exact matches are silently consumed.
func (s *diffState) exactMatch() {
	for key, oldSym := range s.oldByKey {
		newSym, ok := s.newByKey[key]
		if !ok {
			continue
		}
		if oldSym.Kind == newSym.Kind && oldSym.Signature == newSym.Signature && targetOf(oldSym) == targetOf(newSym) {
			s.markMatched(key, key)
		}
	}
}

// Pass 2: the same export changed kind, signature or alias target.
func (s *diffState) changed() {
	for _, key := range s.unmatchedOld() {
		newSym, ok := s.newByKey[key]
		if !ok {
			continue
		}
		oldSym := s.oldByKey[key]

		c := changespec.Change{
			Symbol:       oldSym.Name,
			Module:       oldSym.Module,
			OldSignature: oldSym.Signature,
			NewSignature: newSym.Signature,
			Confidence:   changespec.ConfidenceHigh,
		}
		switch {
		case oldSym.Kind != newSym.Kind:
			c.Kind = changespec.ChangeKindTypeChanged
		case targetOf(oldSym) != targetOf(newSym):
			c.Kind = changespec.ChangeKindRetargeted
			c.OldTarget = targetOf(oldSym)
			c.NewTarget = targetOf(newSym)
		case oldSym.Kind.IsType():
			c.Kind = changespec.ChangeKindTypeChanged
		default:
			c.Kind = changespec.ChangeKindSignatureChanged
		}
		s.emit(c)
		s.markMatched(key, key)
	}
}

// shape is what stays the same when an export is renamed in place: its kind,
// its signature with the name removed and its alias target.
func shape(sym *symbols.Symbol) string {
	if t := targetOf(sym); t != "" && t != "?" {
		return "alias|" + t
	}
	sig := anonymize(sym.Signature, sym.Name)
	if trivialSignature(sig) {
		return ""
	}
	return string(sym.Kind) + "|" + sig
}

// anonymize removes every whole-word occurrence of name from sig.
func anonymize(sig, name string) string {
	if name == "" {
		return sig
	}
	var b strings.Builder
	for {
		i := strings.Index(sig, name)
		if i < 0 {
			b.WriteString(sig)
			break
		}
		end := i + len(name)
		if (i > 0 && isIdentByte(sig[i-1])) || (end < len(sig) && isIdentByte(sig[end])) {
			b.WriteString(sig[:end])
		} else {
			b.WriteString(sig[:i])
		}
		sig = sig[end:]
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// trivialSignature guards against matching on signatures that say nothing
// beyond the declaration keyword, such as "const" or "class".
func trivialSignature(sig string) bool {
	return !strings.Contains(sig, " ") && !strings.ContainsAny(sig, "(:=<")
}

// Pass 3: renames within a module, matched 1:1 by shape.
func (s *diffState) renamed() {
	removedByShape := make(map[string][]symbolKey)
	for _, key := range s.unmatchedOld() {
		if sh := shape(s.oldByKey[key]); sh != "" {
			sh = key.module + "|" + sh
			removedByShape[sh] = append(removedByShape[sh], key)
		}
	}

	addedByShape := make(map[string][]symbolKey)
	for _, key := range s.unmatchedNew() {
		if sh := shape(s.newByKey[key]); sh != "" {
			sh = key.module + "|" + sh
			addedByShape[sh] = append(addedByShape[sh], key)
		}
	}

	for sh, oldKeys := range removedByShape {
		newKeys, ok := addedByShape[sh]
		if !ok {
			continue
		}

		// Collision: more than one on either side, defer to the fuzzy pass.
		if len(oldKeys) > 1 || len(newKeys) > 1 {
			continue
		}

		oldSym := s.oldByKey[oldKeys[0]]
		newSym := s.newByKey[newKeys[0]]
		s.emit(changespec.Change{
			Kind:         changespec.ChangeKindRenamed,
			Symbol:       oldSym.Name,
			Module:       oldSym.Module,
			NewName:      newSym.Name,
			OldSignature: oldSym.Signature,
			NewSignature: newSym.Signature,
			Confidence:   changespec.ConfidenceHigh,
		})
		s.markMatched(oldKeys[0], newKeys[0])
	}
}

// Pass 4: fuzzy renames within a module of the same kind, scored by name
// similarity and signature token overlap.
func (s *diffState) fuzzyMatch() {
	oldKeys := s.unmatchedOld()
	newKeys := s.unmatchedNew()
	if len(oldKeys) == 0 || len(newKeys) == 0 {
		return
	}

	var candidates []scoredPair
	for _, oldKey := range oldKeys {
		oldSym := s.oldByKey[oldKey]
		if oldSym.Signature == "" {
			continue
		}
		for _, newKey := range newKeys {
			newSym := s.newByKey[newKey]
			if newKey.module != oldKey.module || newSym.Kind != oldSym.Kind || newSym.Signature == "" {
				continue
			}

			nameSim := nameSimilarity(oldSym.Name, newSym.Name)
			overlap := tokenOverlap(
				signatureTokens(anonymize(oldSym.Signature, oldSym.Name)),
				signatureTokens(anonymize(newSym.Signature, newSym.Name)),
			)

			nameThreshold := MinNameSimilarity
			if max(len(oldSym.Name), len(newSym.Name)) < ShortNameLength {
				nameThreshold = ShortNameMinSimilarity
			}

			if nameSim >= nameThreshold && overlap >= MinSignatureOverlap {
				candidates = append(candidates, scoredPair{
					oldKey: oldKey,
					newKey: newKey,
					score:  nameSim * overlap,
				})
			}
		}
	}

	// Sort by descending score, tie-break by old then new symbol name.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].oldKey.name != candidates[j].oldKey.name {
			return candidates[i].oldKey.name < candidates[j].oldKey.name
		}
		return candidates[i].newKey.name < candidates[j].newKey.name
	})

	for _, pair := range candidates {
		if s.matchedOld[pair.oldKey] || s.matchedNew[pair.newKey] {
			continue
		}

		oldSym := s.oldByKey[pair.oldKey]
		newSym := s.newByKey[pair.newKey]
		s.emit(changespec.Change{
			Kind:         changespec.ChangeKindRenamed,
			Symbol:       oldSym.Name,
			Module:       oldSym.Module,
			NewName:      newSym.Name,
			OldSignature: oldSym.Signature,
			NewSignature: newSym.Signature,
			Confidence:   changespec.ConfidenceMedium,
		})
		s.markMatched(pair.oldKey, pair.newKey)
	}
}

// Pass 5: an export that disappeared from one module and appeared with the
// same name and kind in exactly one other module has moved.
func (s *diffState) moved() {
	type nameKind struct {
		name string
		kind symbols.SymbolKind
	}

	removed := make(map[nameKind][]symbolKey)
	for _, key := range s.unmatchedOld() {
		sym := s.oldByKey[key]
		nk := nameKind{name: sym.Name, kind: sym.Kind}
		removed[nk] = append(removed[nk], key)
	}

	added := make(map[nameKind][]symbolKey)
	for _, key := range s.unmatchedNew() {
		sym := s.newByKey[key]
		nk := nameKind{name: sym.Name, kind: sym.Kind}
		added[nk] = append(added[nk], key)
	}

	for nk, oldKeys := range removed {
		newKeys := added[nk]
		if len(oldKeys) != 1 || len(newKeys) != 1 {
			continue
		}
		oldSym := s.oldByKey[oldKeys[0]]
		newSym := s.newByKey[newKeys[0]]

		confidence := changespec.ConfidenceHigh
		if oldSym.Signature != newSym.Signature {
			confidence = changespec.ConfidenceMedium
		}
		s.emit(changespec.Change{
			Kind:         changespec.ChangeKindMoved,
			Symbol:       oldSym.Name,
			Module:       oldSym.Module,
			NewModule:    newSym.Module,
			OldSignature: oldSym.Signature,
			NewSignature: newSym.Signature,
			Confidence:   confidence,
		})
		s.markMatched(oldKeys[0], newKeys[0])
	}
}

// Pass 6: whatever is left was removed or added.
func (s *diffState) leftovers() {
	for _, key := range s.unmatchedOld() {
		oldSym := s.oldByKey[key]
		s.emit(changespec.Change{
			Kind:         changespec.ChangeKindRemoved,
			Symbol:       oldSym.Name,
			Module:       oldSym.Module,
			OldSignature: oldSym.Signature,
			Confidence:   changespec.ConfidenceHigh,
		})
	}
	for _, key := range s.unmatchedNew() {
		newSym := s.newByKey[key]
		s.emit(changespec.Change{
			Kind:         changespec.ChangeKindAdded,
			Symbol:       newSym.Name,
			Module:       newSym.Module,
			NewSignature: newSym.Signature,
			Confidence:   changespec.ConfidenceHigh,
		})
	}
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use two rows instead of full matrix.
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// nameSimilarity returns the normalized Levenshtein similarity between two strings.
// Returns a value in [0.0, 1.0] where 1.0 means identical.
func nameSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	maxLen := max(len(a), len(b))
	return 1.0 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// signatureTokens splits a signature into identifiers and punctuation.
func signatureTokens(sig string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(sig); i++ {
		c := sig[i]
		if isIdentByte(c) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, sig[start:i])
			start = -1
		}
		if c != ' ' {
			tokens = append(tokens, string(c))
		}
	}
	if start >= 0 {
		tokens = append(tokens, sig[start:])
	}
	return tokens
}

// tokenOverlap computes the Jaccard similarity of two token multisets.
// Two empty multisets are identical.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	counts := make(map[string][2]int)
	for _, t := range a {
		c := counts[t]
		c[0]++
		counts[t] = c
	}
	for _, t := range b {
		c := counts[t]
		c[1]++
		counts[t] = c
	}

	// Jaccard on multisets: intersection = sum of min counts, union = sum of max counts.
	var intersection, union int
	for _, c := range counts {
		intersection += min(c[0], c[1])
		union += max(c[0], c[1])
	}
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
