package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/satanpticoeur/social-logement-app/core/rental"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Aucun résultat.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

func paymentRows(ps []rental.Payment) [][]string {
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		paid := "-"
		if p.DatePaiement != nil {
			paid = *p.DatePaiement
		}
		rows = append(rows, []string{
			itoa(p.ID), itoa(p.ContratID), p.DateEcheance, p.Montant.String(), string(p.Statut), paid,
		})
	}
	return rows
}

var paymentHeaders = []string{"ID", "Contrat", "Échéance", "Montant", "Statut", "Payé le"}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("identifiant invalide: %q", s)
	}
	return id, nil
}
