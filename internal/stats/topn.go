package stats

import (
	"math"
	"sort"
)

// Count é um par chave/contagem usado em rankings.
type Count struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int64  `json:"count"`
}

// TopN ordena por contagem decrescente, desempata pela chave crescente e corta em n.
// n <= 0 mantém todos.
func TopN(counts []Count, n int) []Count {
	out := make([]Count, len(counts))
	copy(out, counts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// GroupCount agrupa valores e conta ocorrências, já ordenado como TopN.
func GroupCount(values []string, n int) []Count {
	totals := make(map[string]int64)
	for _, v := range values {
		totals[v]++
	}
	counts := make([]Count, 0, len(totals))
	for key, total := range totals {
		counts = append(counts, Count{Key: key, Count: total})
	}
	return TopN(counts, n)
}

// ToMap converte contagens para mapa chave -> total.
func ToMap(counts []Count) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Key] = c.Count
	}
	return out
}

// CompletionRate devolve profiles/accounts*100 com duas casas; zero sem contas.
func CompletionRate(profiles, accounts int64) float64 {
	if accounts == 0 {
		return 0
	}
	return math.Round(float64(profiles)/float64(accounts)*100*100) / 100
}
