package accounts

import (
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Perfis"

var exportHeader = []string{
	"Usuário", "Nome", "E-mail", "CPF", "Nascimento", "Idade",
	"Telefone", "Endereço", "Bairro", "CEP", "Ativo", "Cadastro",
}

// WriteXLSX grava a planilha de perfis em w.
func WriteXLSX(w io.Writer, profiles []Profile, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for i, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "L1", bold); err != nil {
		return err
	}

	for i, p := range profiles {
		active := "Não"
		if p.Active {
			active = "Sim"
		}
		row := []any{
			p.Username,
			p.FullName,
			p.Email,
			p.CPFFormatted,
			p.Birth,
			p.Age,
			p.PhoneFormatted,
			p.AddressText,
			p.Neighborhood,
			p.PostalCodeFormatted,
			active,
			p.CreatedAt.In(loc).Format("02/01/2006 15:04"),
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, start, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "L", 20); err != nil {
		return err
	}

	return f.Write(w)
}
