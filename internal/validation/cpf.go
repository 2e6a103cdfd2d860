package validation

// CPF valida o número pelo algoritmo de dígitos verificadores e devolve apenas os 11 dígitos.
func CPF(raw string) (string, error) {
	if raw == "" {
		return "", newError("cpf", "CPF é obrigatório.")
	}

	cpf := OnlyDigits(raw)
	if len(cpf) != 11 {
		return "", newError("cpf", "CPF deve ter 11 dígitos.")
	}

	if allSame(cpf) {
		return "", newError("cpf", "CPF inválido.")
	}

	first := cpfCheckDigit(cpf[:9], 10)
	second := cpfCheckDigit(cpf[:10], 11)
	if int(cpf[9]-'0') != first || int(cpf[10]-'0') != second {
		return "", newError("cpf", "CPF inválido.")
	}

	return cpf, nil
}

// cpfCheckDigit aplica pesos decrescentes a partir de weight sobre digits.
func cpfCheckDigit(digits string, weight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
