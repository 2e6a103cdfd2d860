// Package stats reúne agregações puras usadas pelos painéis administrativos.
package stats

import "time"

// Age calcula a idade comparando (mês, dia) do aniversário com today.
func Age(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

// AgeBuckets lista as faixas etárias na ordem de exibição.
var AgeBuckets = [...]string{"16-25", "26-35", "36-45", "46-55", "56-65", "65+"}

// minBucketAge é a idade mínima de cadastro; abaixo dela não há faixa.
const minBucketAge = 16

// AgeBucket devolve a faixa da idade, ou "" abaixo de 16 anos.
func AgeBucket(age int) string {
	switch {
	case age < minBucketAge:
		return ""
	case age <= 25:
		return AgeBuckets[0]
	case age <= 35:
		return AgeBuckets[1]
	case age <= 45:
		return AgeBuckets[2]
	case age <= 55:
		return AgeBuckets[3]
	case age <= 65:
		return AgeBuckets[4]
	default:
		return AgeBuckets[5]
	}
}

// AgeDistribution conta datas de nascimento por faixa. Todas as faixas estão presentes;
// idades fora de qualquer faixa não são contadas.
func AgeDistribution(births []time.Time, today time.Time) map[string]int {
	dist := make(map[string]int, len(AgeBuckets))
	for _, bucket := range AgeBuckets {
		dist[bucket] = 0
	}
	for _, birth := range births {
		if bucket := AgeBucket(Age(birth, today)); bucket != "" {
			dist[bucket]++
		}
	}
	return dist
}
