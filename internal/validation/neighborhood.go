package validation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var neighborhoods = [...]string{
	"Centro",
	"Trindade",
	"Pantanal",
	"Córrego Grande",
	"Santa Mônica",
	"Carvoeira",
	"Serrinha",
	"João Paulo",
	"Monte Verde",
	"Saco Grande",
	"Itacorubi",
	"Agronômica",
	"Capoeiras",
	"Coqueiros",
	"Estreito",
	"Balneário",
	"Coloninha",
	"Abraão",
	"Bom Abrigo",
	"Canto",
	"Canasvieiras",
	"Ingleses",
	"Santinho",
	"Cachoeira do Bom Jesus",
	"Ponta das Canas",
	"Lagoinha",
	"Daniela",
	"Jurerê",
	"Jurerê Internacional",
	"Praia Brava",
	"Barra da Lagoa",
	"Galheta",
	"Mole",
	"Joaquina",
	"Campeche",
	"Armação",
	"Matadeiro",
	"Lagoinha do Leste",
	"Pântano do Sul",
	"Costa de Dentro",
	"Ribeirão da Ilha",
	"Tapera",
	"Caieira da Barra do Sul",
	"Alto Ribeirão",
	"Sede Fragas",
	"Costeira do Pirajubaé",
	"Saco dos Limões",
	"José Mendes",
	"Prainha",
	"Bom Retiro",
	"Jardim Atlântico",
	"Vargem do Bom Jesus",
	"Vargem Grande",
	"Vargem Pequena",
	"Santo Antônio de Lisboa",
	"Ratones",
	"Cacupé",
	"Sambaqui",
	"Barra do Sambaqui",
	"Monte Cristo",
}

// Neighborhoods devolve cópia ordenada dos bairros aceitos.
func Neighborhoods() []string {
	out := make([]string, len(neighborhoods))
	copy(out, neighborhoods[:])
	return out
}

var titleCaser = cases.Title(language.BrazilianPortuguese)

// Neighborhood aceita o bairro quando há correspondência parcial, em qualquer
// direção, com algum bairro conhecido. Vazio é aceito (campo opcional).
func Neighborhood(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	normalized := titleCaser.String(trimmed)
	needle := strings.ToLower(normalized)
	for _, name := range neighborhoods {
		candidate := strings.ToLower(name)
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return normalized, nil
		}
	}

	return "", newError("neighborhood", fmt.Sprintf(
		"Bairro %q não encontrado em Florianópolis. Verifique a grafia ou entre em contato com o suporte.", raw))
}
