package metrics

// Analysts lists the distinct non-empty users of ds in first-seen order.
func Analysts(ds Dataset) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ds {
		if r.User == "" || seen[r.User] {
			continue
		}
		seen[r.User] = true
		out = append(out, r.User)
	}
	return out
}

func ForAnalyst(ds Dataset, user string) Dataset {
	out := make(Dataset, 0)
	for _, r := range ds {
		if r.User == user {
			out = append(out, r)
		}
	}
	return out
}

// Portfolios lists the distinct portfolios ("Carteira") worked by user.
func Portfolios(ds Dataset, user string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ds {
		if r.User != user || r.Portfolio == "" || seen[r.Portfolio] {
			continue
		}
		seen[r.Portfolio] = true
		out = append(out, r.Portfolio)
	}
	return out
}
