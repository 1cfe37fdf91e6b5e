package intent

import (
	"regexp"
	"strings"

	"procscribe/app/util/textnorm"
)

// Vocabularies are stems, matched as substrings of lowercased normalized text.
var (
	editVerbs = []string{
		"измени", "изменить", "исправ", "поправ", "замени", "заменить", "добавь", "добавить",
		"допиши", "дополни", "удали", "удалить", "убери", "убрать", "перепиши", "переписать",
		"переформулир", "обнови", "обновить", "внеси", "внести", "скорректир", "перенеси",
		"переименуй", "вставь", "сократи",
	}

	targetHints = []string{
		"пункт", "раздел", "протокол", "документ", "повестк", "решени", "участник", "строк",
		"абзац", "заголов", "таблиц", "дату", "дата", "поручени", "срок", "текст", "схем",
		"шаг", "владел", "цель", "потребител", "границ",
	}

	generationVerbs = []string{
		"сформируй", "сформировать", "сгенерируй", "сгенерировать", "составь", "составить",
		"создай", "создать", "подготовь", "подготовить", "оформи", "оформить", "напиши",
		"написать", "сделай", "сделать", "собери", "построй", "нарисуй",
	}

	documentNouns = []string{
		"протокол", "документ", "схем", "диаграмм", "паспорт", "модель процесса", "описание процесса",
	}

	readVerbs = []string{
		"прочитай", "прочти", "прочесть", "прочитать", "опиши", "описать", "расскажи",
		"перескажи", "посмотри", "изучи", "проанализируй", "что в", "что там", "о чем", "о чём",
		"summarize", "read", "describe",
	}

	attachmentNouns = []string{
		"файл", "вложени", "прикреп", "приложени", "аттач", "загруженн", "документ", "attachment", "file",
	}

	documentCommands = []string{"/протокол", "/схема", "/документ", "/protocol", "/diagram", "/doc"}

	proposalMarkers = []string{
		"внесу изменени", "внести изменени", "если да", "верно ли", "правильно ли", "подтверд",
		"добавить пункт", "изменить пункт", "удалить пункт", "заменить", "обновить документ",
		"обновлю", "внесу правк", "применить изменени",
	}

	clarificationMarkers = []string{
		"не хватает данных", "не хватает сведений", "уточните, пожалуйста", "для формирования протокола нужны",
	}
)

var (
	numberedLocatorPattern = regexp.MustCompile(`(?:пункт\p{L}*|п\.|раздел\p{L}*|шаг\p{L}*|№)\s*\d+|\b\d+(?:\.\d+)+\b`)

	confirmationPattern = regexp.MustCompile(`^(?:` +
		`да|ага|угу|ок|окей|ok|okay|yes|хорошо|верно|точно|конечно|подтверждаю|согласен|согласна|` +
		`давай|давайте|делай|вноси|вносите|внеси|применяй|годится|отлично|супер|именно|правильно` +
		`)(?:[\s,]+(?:да|вноси|вносите|внеси|давай|давайте|конечно|верно|всё верно|все верно|делай|пожалуйста|спасибо))*[\s.!)]*$`)
)

// IsEditRequest requires an edit verb and something that points into the document.
func IsEditRequest(text string) bool {
	lower := textnorm.Lower(text)
	if !containsAny(lower, editVerbs) {
		return false
	}

	return containsAny(lower, targetHints) || numberedLocatorPattern.MatchString(lower)
}

// IsGenerationRequest requires a generation verb next to a document noun, or an explicit command.
func IsGenerationRequest(text string) bool {
	lower := textnorm.Lower(text)
	if IsDocumentCommand(lower) {
		return true
	}

	return containsAny(lower, generationVerbs) && containsAny(lower, documentNouns)
}

// IsConfirmation matches only short, whole-message agreement. "Да, но поменяй дату" is not one.
func IsConfirmation(text string) bool {
	return confirmationPattern.MatchString(textnorm.Lower(text))
}

func IsAttachmentReadRequest(text string) bool {
	lower := textnorm.Lower(text)
	return containsAny(lower, readVerbs) && containsAny(lower, attachmentNouns)
}

func IsDocumentCommand(text string) bool {
	lower := textnorm.Lower(text)
	for _, cmd := range documentCommands {
		if lower == cmd || strings.HasPrefix(lower, cmd+" ") {
			return true
		}
	}

	return false
}

// ProposesChanges reports whether an assistant message offered concrete document changes.
func ProposesChanges(assistantText string) bool {
	return containsAny(textnorm.Lower(assistantText), proposalMarkers)
}

// AsksClarification reports whether an assistant message was a missing-fields request.
func AsksClarification(assistantText string) bool {
	return containsAny(textnorm.Lower(assistantText), clarificationMarkers)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
