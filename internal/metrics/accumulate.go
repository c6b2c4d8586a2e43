package metrics

// Reconciler merges an incoming dataset into an existing one. It is the hook
// for identity-based reconciliation; AppendOnly is the behavior in use.
type Reconciler interface {
	Reconcile(existing, incoming Dataset) Dataset
}

// AppendOnly concatenates incoming after existing without deduplication, so a
// protocol uploaded twice is counted twice.
type AppendOnly struct{}

func (AppendOnly) Reconcile(existing, incoming Dataset) Dataset {
	out := make(Dataset, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

// Accumulate normalizes incoming and appends it after existing.
func Accumulate(existing Dataset, incoming []RawRow) Dataset {
	return AccumulateWith(AppendOnly{}, existing, Normalize(incoming))
}

func AccumulateWith(r Reconciler, existing, incoming Dataset) Dataset {
	if r == nil {
		r = AppendOnly{}
	}
	return r.Reconcile(existing, incoming)
}

type DuplicateKey struct {
	Protocol string
	User     string
	Count    int
}

// DuplicateKeys lists (protocol, user) pairs seen more than once, in order of
// first appearance.
func DuplicateKeys(ds Dataset) []DuplicateKey {
	type key struct{ protocol, user string }
	counts := make(map[key]int)
	var order []key
	for _, r := range ds {
		k := key{NormalizeProtocol(r.Protocol), r.User}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	var out []DuplicateKey
	for _, k := range order {
		if counts[k] > 1 {
			out = append(out, DuplicateKey{Protocol: k.protocol, User: k.user, Count: counts[k]})
		}
	}
	return out
}
