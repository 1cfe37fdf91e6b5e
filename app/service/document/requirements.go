package document

import (
	"strings"

	"procscribe/app/domain/process"
)

const (
	MissingDate           = "дата встречи"
	MissingAgenda         = "повестка"
	MissingCustomerSide   = "участники со стороны заказчика"
	MissingContractorSide = "участники со стороны исполнителя"
)

// MissingMeetingFields lists, in a fixed order, what a meeting protocol still lacks.
func MissingMeetingFields(s *process.State) []string {
	if s == nil {
		s = &process.State{}
	}

	var missing []string

	if strings.TrimSpace(s.Meeting.Date) == "" {
		missing = append(missing, MissingDate)
	}
	if len(s.Meeting.Agenda) == 0 {
		missing = append(missing, MissingAgenda)
	}
	if len(s.Meeting.CustomerSide) == 0 {
		missing = append(missing, MissingCustomerSide)
	}
	if len(s.Meeting.ContractorSide) == 0 {
		missing = append(missing, MissingContractorSide)
	}

	return missing
}

// ClarificationText asks for exactly the missing items and nothing else.
func ClarificationText(missing []string) string {
	var sb strings.Builder

	sb.WriteString("Для формирования протокола не хватает данных:\n")
	for _, item := range missing {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	sb.WriteString("\nПожалуйста, уточните их, и я подготовлю протокол.")

	return sb.String()
}
