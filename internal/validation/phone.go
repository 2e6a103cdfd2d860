package validation

// Phone valida telefone brasileiro com DDD. Vazio é aceito (campo opcional).
func Phone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	phone := OnlyDigits(raw)
	if len(phone) != 10 && len(phone) != 11 {
		return "", newError("phone", "Telefone deve ter 10 ou 11 dígitos (com DDD).")
	}

	ddd := int(phone[0]-'0')*10 + int(phone[1]-'0')
	if ddd < 11 || ddd > 99 {
		return "", newError("phone", "DDD inválido.")
	}

	if len(phone) == 11 && phone[2] != '9' {
		return "", newError("phone", "Para celular, o terceiro dígito deve ser 9.")
	}

	return phone, nil
}

// CEP valida o código postal. Vazio é aceito (campo opcional).
func CEP(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	cep := OnlyDigits(raw)
	if len(cep) != 8 {
		return "", newError("postal_code", "CEP deve ter 8 dígitos.")
	}
	if cep == "00000000" {
		return "", newError("postal_code", "CEP inválido.")
	}
	return cep, nil
}
