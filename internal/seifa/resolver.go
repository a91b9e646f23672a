package seifa

// SuburbIndex is the view of the dataset the resolver needs.
type SuburbIndex interface {
	HasSuburb(key string) bool
	Suggest(name string, n int) []string
}

// Resolution is the outcome of resolving a suburb query.
type Resolution struct {
	Query       string
	Key         string
	Found       bool
	Substituted bool // Key is a fuzzy match, not the query itself
	Suggestions []string
}

// Resolver maps (suburb, lga) queries onto dataset keys.
type Resolver struct {
	index SuburbIndex
	fuzzy bool
}

func NewResolver(index SuburbIndex, fuzzy bool) *Resolver {
	return &Resolver{index: index, fuzzy: fuzzy}
}

const maxSuggestions = 3

// Resolve canonicalizes the query. When the key is unknown and fuzzy
// matching is on, the closest known suburb is substituted. An unresolved
// query keeps its canonical key with Found false.
func (r *Resolver) Resolve(suburb, lga string) Resolution {
	key := CanonicalKey(suburb, lga)
	res := Resolution{Query: suburb, Key: key}
	if r.index.HasSuburb(key) {
		res.Found = true
		return res
	}

	res.Suggestions = r.index.Suggest(key, maxSuggestions)
	if r.fuzzy && len(res.Suggestions) > 0 {
		res.Key = res.Suggestions[0]
		res.Found = true
		res.Substituted = true
	}
	return res
}
