package validation

// FormatCPF formata como XXX.XXX.XXX-XX; entradas malformadas voltam sem alteração.
func FormatCPF(raw string) string {
	d := OnlyDigits(raw)
	if len(d) != 11 {
		return raw
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// FormatPhone formata como (XX) XXXXX-XXXX ou (XX) XXXX-XXXX.
func FormatPhone(raw string) string {
	d := OnlyDigits(raw)
	switch len(d) {
	case 11:
		return "(" + d[0:2] + ") " + d[2:7] + "-" + d[7:11]
	case 10:
		return "(" + d[0:2] + ") " + d[2:6] + "-" + d[6:10]
	default:
		return raw
	}
}

// FormatCEP formata como XXXXX-XXX.
func FormatCEP(raw string) string {
	d := OnlyDigits(raw)
	if len(d) != 8 {
		return raw
	}
	return d[0:5] + "-" + d[5:8]
}
