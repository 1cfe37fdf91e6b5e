package extract

import (
	"regexp"
	"strings"

	"procscribe/app/domain/process"
	"procscribe/app/util/textnorm"

	"github.com/elliotchance/pie/v2"
)

type field int

const (
	fieldOrgName field = iota
	fieldOrgActivity
	fieldProcessName
	fieldProcessDescription
	fieldOwnerName
	fieldOwnerPosition
	fieldGoal
	fieldProductDescription
	fieldProduct
	fieldStart
	fieldEnd
	fieldConsumers
	fieldMeetingDate
	fieldAgenda
	fieldCustomerSide
	fieldContractorSide
)

type labelSpec struct {
	field  field
	list   bool
	labels []string
}

// Order matters only for readability: a line matches at most one label because every label
// must be followed directly by a separator.
var labelSpecs = []labelSpec{
	{field: fieldOrgName, labels: []string{"наименование организации", "название организации", "название компании", "организация", "компания"}},
	{field: fieldOrgActivity, labels: []string{"вид деятельности", "сфера деятельности", "деятельность организации", "деятельность", "сфера"}},
	{field: fieldProcessName, labels: []string{"наименование процесса", "название процесса", "процесс"}},
	{field: fieldProcessDescription, labels: []string{"описание процесса"}},
	{field: fieldOwnerName, labels: []string{"владелец процесса", "владелец", "ответственный за процесс", "ответственный"}},
	{field: fieldOwnerPosition, labels: []string{"должность владельца", "должность"}},
	{field: fieldGoal, labels: []string{"цель процесса", "цели процесса", "цель", "цели"}},
	{field: fieldProductDescription, labels: []string{"описание продукта", "описание результата"}},
	{field: fieldProduct, labels: []string{"продукт процесса", "результат процесса", "продукт", "результат"}},
	{field: fieldStart, labels: []string{"начало процесса", "старт процесса", "граница начала", "входное событие", "начало", "старт"}},
	{field: fieldEnd, labels: []string{"окончание процесса", "завершение процесса", "конец процесса", "граница окончания", "выходное событие", "окончание", "завершение", "конец"}},
	{field: fieldConsumers, list: true, labels: []string{"потребители процесса", "потребители продукта", "потребители", "потребитель", "клиенты процесса", "клиенты"}},
	{field: fieldMeetingDate, labels: []string{"дата встречи", "дата совещания", "дата проведения", "дата"}},
	{field: fieldAgenda, list: true, labels: []string{"повестка дня", "повестка встречи", "повестка"}},
	{field: fieldCustomerSide, list: true, labels: []string{"участники со стороны заказчика", "участники от заказчика", "со стороны заказчика", "от заказчика", "заказчик"}},
	{field: fieldContractorSide, list: true, labels: []string{"участники со стороны исполнителя", "участники от исполнителя", "со стороны исполнителя", "от исполнителя", "исполнитель"}},
}

const (
	linePrefix = `^[ \t]*(?:[-*+•][ \t]+|\d{1,2}[.)][ \t]+)?(?:\*\*|__|\*|_)?[ \t]*`
	separator  = `[ \t]*(?:\*\*|__|\*|_)?(?:[ \t]*:|[ \t]*[—–]|[ \t]+-)`
)

type compiledSpec struct {
	labelSpec
	re *regexp.Regexp
}

var compiledSpecs = compileSpecs(labelSpecs)

func compileSpecs(specs []labelSpec) []compiledSpec {
	result := make([]compiledSpec, 0, len(specs))

	for _, spec := range specs {
		labels := pie.Map(spec.labels, regexp.QuoteMeta)
		re := regexp.MustCompile(`(?i)` + linePrefix + `(?:` + strings.Join(labels, "|") + `)` + separator + `[ \t]*(.*)$`)
		result = append(result, compiledSpec{labelSpec: spec, re: re})
	}

	return result
}

var (
	listItemPattern = regexp.MustCompile(`^[ \t]*(?:[-*+•]|\d{1,2}[.)])[ \t]+(.+)$`)
	headingPattern  = regexp.MustCompile(`^[ \t]*#{1,6}[ \t]+\S`)

	legalForm = `(?:ООО|ОАО|ЗАО|ПАО|АО|ИП|НКО|ГК|ФГУП|МУП|ГУП)`
	orgName   = `(?:«[^»\n]+»|"[^"\n]+"|[\p{L}\p{N}][\p{L}\p{N}-]*(?:[ \t]+(?:(?:и|&)[ \t]+)?\p{Lu}[\p{L}\p{N}-]*)*)`
	orgRef    = `(` + legalForm + `[ \t]+` + orgName + `|«[^»\n]+»|"[^"\n]+")`
	position  = `((?i:(?:генеральн|исполнительн|коммерческ|финансов|техническ|операционн|главн)\p{L}*[ \t]+)?` +
		`(?i:директор\p{L}*|руководител\p{L}*|владел\p{L}*|основател\p{L}*|менеджер\p{L}*|начальник\p{L}*|` +
		`управляющ\p{L}*|собственник\p{L}*|заместител\p{L}*(?:[ \t]+директора)?|бухгалтер\p{L}*|глав\p{L}*))`
	personName = `(\p{Lu}\p{Ll}+(?:[ \t]+\p{Lu}\p{Ll}+){0,2})`

	introNamePattern   = regexp.MustCompile(`(?i:меня зовут|моё имя|мое имя)[ \t]+` + personName)
	introRolePattern   = regexp.MustCompile(`(?:^|[\s,.;:!?])(?i:я)[ \t]+(?:(?i:являюсь|работаю)[ \t]+)?` + position + `(?:[ \t]+(?i:в|во|компании|организации|фирмы))?[ \t]+` + orgRef)
	ourOrgPattern      = regexp.MustCompile(`(?:^|[\s,.;:!?])(?i:наша компания|наша организация|мы)[ \t]*(?:[—–-][ \t]*)?(?i:это[ \t]+)?` + orgRef)
	processNamePattern = regexp.MustCompile(`(?i:процесс|процесса|процессом)[ \t]+(«[^»\n]+»|"[^"\n]+")`)
	goalPattern        = regexp.MustCompile(`(?i:цель процесса|цель этого процесса|наша цель)[ \t]*(?:—|–|-|:|(?i:это|состоит в том,? чтобы|заключается в том,? чтобы))[ \t]*([^.\n]+)`)
	productPattern     = regexp.MustCompile(`(?i:продуктом процесса является|результатом процесса является|на выходе получаем|на выходе процесса)[ \t]*:?[ \t]*([^.\n]+)`)
	bothBoundsPattern  = regexp.MustCompile(`(?i:начинается)[ \t]+(?:(?i:с момента|когда|со|с)[ \t]+)?([^.\n]+?)[ \t]+(?i:и)[ \t]+(?i:заканчивается|завершается)[ \t]+([^.\n]+)`)
	startPattern       = regexp.MustCompile(`(?i:процесс начинается)[ \t]+(?:(?i:с момента|когда|со|с)[ \t]+)?([^.\n]+)`)
	endPattern         = regexp.MustCompile(`(?i:процесс (?:заканчивается|завершается))[ \t]+([^.\n]+)`)
)

// Heuristic extracts whatever the regex rules can find. It never fails; text without facts
// yields an empty patch.
func Heuristic(raw string) process.Patch {
	patch, steps := heuristic(raw)
	if len(steps) > 0 {
		applySteps(&patch, steps)
	}

	return patch
}

// HeuristicHistory extracts from several messages, oldest first: one patch of plain facts per
// message, then a single patch with the graph built from the steps of all messages. A later
// block for a step number replaces the earlier one; steps mentioned once are kept.
func HeuristicHistory(texts []string) []process.Patch {
	var (
		result []process.Patch
		steps  []Step
	)

	for _, raw := range texts {
		patch, found := heuristic(raw)
		steps = mergeSteps(steps, found)
		if !patch.IsEmpty() {
			result = append(result, patch)
		}
	}

	if len(steps) > 0 {
		var patch process.Patch
		applySteps(&patch, steps)
		result = append(result, patch)
	}

	return result
}

func heuristic(raw string) (process.Patch, []Step) {
	var patch process.Patch

	text := textnorm.Normalize(raw)
	if text == "" {
		return patch, nil
	}

	lines := strings.Split(text, "\n")
	steps, stepLines := findSteps(lines)

	applyLabels(&patch, lines, stepLines)
	applySentences(&patch, text)
	applyMeetingFallbacks(&patch, text)

	return patch, steps
}

func applySteps(patch *process.Patch, steps []Step) {
	graph := buildGraph(steps)
	patch.Graph = &graph
	patch.Participants = stepParticipants(steps)
}

func applyLabels(patch *process.Patch, lines []string, skip map[int]bool) {
	for i := 0; i < len(lines); i++ {
		if skip[i] {
			continue
		}

		for _, spec := range compiledSpecs {
			m := spec.re.FindStringSubmatch(lines[i])
			if m == nil {
				continue
			}

			value := cleanValue(m[1])

			if spec.list {
				items := splitList(value, spec.field == fieldAgenda)
				if value == "" {
					var consumed int
					items, consumed = collectListItems(lines[i+1:], skip, i+1)
					i += consumed
				}
				setList(patch, spec.field, items)
			} else if value != "" {
				setScalar(patch, spec.field, value)
			}

			break
		}
	}
}

// collectListItems reads the bullet lines that follow a label with an empty inline value.
func collectListItems(lines []string, skip map[int]bool, offset int) ([]string, int) {
	var items []string

	consumed := 0
	for i, line := range lines {
		if skip[offset+i] {
			break
		}

		m := listItemPattern.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) == "" && len(items) == 0 {
				consumed++
				continue
			}
			break
		}

		if item := cleanValue(m[1]); item != "" {
			items = append(items, item)
		}
		consumed++
	}

	return items, consumed
}

func setScalar(patch *process.Patch, f field, value string) {
	// First occurrence wins inside one message.
	set := func(dst *string) {
		if *dst == "" {
			*dst = value
		}
	}

	switch f {
	case fieldOrgName:
		set(&patch.Organization.Name)
	case fieldOrgActivity:
		set(&patch.Organization.Activity)
	case fieldProcessName:
		set(&patch.Process.Name)
	case fieldProcessDescription:
		set(&patch.Process.Description)
	case fieldOwnerName:
		if patch.Owner.FullName == "" {
			name, pos := splitNamePosition(value)
			patch.Owner.FullName = name
			if pos != "" && patch.Owner.Position == "" {
				patch.Owner.Position = pos
			}
		}
	case fieldOwnerPosition:
		set(&patch.Owner.Position)
	case fieldGoal:
		set(&patch.Goal)
	case fieldProduct:
		set(&patch.Product)
	case fieldProductDescription:
		set(&patch.ProductDescription)
	case fieldStart:
		set(&patch.Boundaries.Start)
	case fieldEnd:
		set(&patch.Boundaries.End)
	case fieldMeetingDate:
		set(&patch.Meeting.Date)
	}
}

func setList(patch *process.Patch, f field, items []string) {
	switch f {
	case fieldConsumers:
		patch.Consumers = append(patch.Consumers, pie.Map(items, parseConsumer)...)
	case fieldAgenda:
		patch.Meeting.Agenda = append(patch.Meeting.Agenda, items...)
	case fieldCustomerSide:
		patch.Meeting.CustomerSide = append(patch.Meeting.CustomerSide, items...)
	case fieldContractorSide:
		patch.Meeting.ContractorSide = append(patch.Meeting.ContractorSide, items...)
	}
}

func applySentences(patch *process.Patch, text string) {
	if patch.Owner.FullName == "" {
		if m := introNamePattern.FindStringSubmatch(text); m != nil {
			patch.Owner.FullName = cleanValue(m[1])
		}
	}

	if m := introRolePattern.FindStringSubmatch(text); m != nil {
		if patch.Owner.Position == "" {
			patch.Owner.Position = strings.ToLower(cleanValue(m[1]))
		}
		if patch.Organization.Name == "" {
			patch.Organization.Name = cleanValue(m[2])
		}
	}

	if patch.Organization.Name == "" {
		if m := ourOrgPattern.FindStringSubmatch(text); m != nil {
			patch.Organization.Name = cleanValue(m[1])
		}
	}

	if patch.Process.Name == "" {
		if m := processNamePattern.FindStringSubmatch(text); m != nil {
			patch.Process.Name = unquote(cleanValue(m[1]))
		}
	}

	if patch.Goal == "" {
		if m := goalPattern.FindStringSubmatch(text); m != nil {
			patch.Goal = cleanValue(m[1])
		}
	}

	if patch.Product == "" {
		if m := productPattern.FindStringSubmatch(text); m != nil {
			patch.Product = cleanValue(m[1])
		}
	}

	if m := bothBoundsPattern.FindStringSubmatch(text); m != nil {
		if patch.Boundaries.Start == "" {
			patch.Boundaries.Start = cleanValue(m[1])
		}
		if patch.Boundaries.End == "" {
			patch.Boundaries.End = cleanValue(m[2])
		}
	}
	if patch.Boundaries.Start == "" {
		if m := startPattern.FindStringSubmatch(text); m != nil {
			patch.Boundaries.Start = cleanValue(m[1])
		}
	}
	if patch.Boundaries.End == "" {
		if m := endPattern.FindStringSubmatch(text); m != nil {
			patch.Boundaries.End = cleanValue(m[1])
		}
	}
}

var (
	nameWithParens = regexp.MustCompile(`^(.+?)[ \t]*\(([^)]+)\)$`)
	nameWithDash   = regexp.MustCompile(`^(.+?)[ \t]+[—–-][ \t]+(.+)$`)
)

// splitNamePosition separates "Иван Иванов, директор", "Иван Иванов — директор" and
// "Иван Иванов (директор)".
func splitNamePosition(value string) (string, string) {
	if m := nameWithParens.FindStringSubmatch(value); m != nil {
		return cleanValue(m[1]), cleanValue(m[2])
	}
	if m := nameWithDash.FindStringSubmatch(value); m != nil {
		return cleanValue(m[1]), cleanValue(m[2])
	}
	if name, pos, ok := strings.Cut(value, ","); ok {
		return cleanValue(name), cleanValue(pos)
	}

	return value, ""
}

var (
	orgMarkers   = regexp.MustCompile(`(?:^|[\s«"])` + legalForm + `(?:[\s»"]|$)|(?i:компания|корпорация|холдинг|банк|завод)`)
	groupMarkers = []string{
		"отдел", "департамент", "служб", "команд", "сотрудник", "клиент", "покупател", "подразделени",
		"филиал", "групп", "бухгалтери", "руководств", "менеджер", "пользовател", "партнер", "партнёр",
		"поставщик", "заказчик", "дирекци", "управлени",
	}
	fullNamePattern = regexp.MustCompile(`^\p{Lu}\p{Ll}+(?:[ \t]+\p{Lu}[\p{Ll}.]*){1,2}$`)
)

func parseConsumer(item string) process.Consumer {
	if orgMarkers.MatchString(item) {
		return process.Consumer{Kind: process.ConsumerOrg, Name: item}
	}

	lower := strings.ToLower(item)
	for _, marker := range groupMarkers {
		if strings.Contains(lower, marker) {
			return process.Consumer{Kind: process.ConsumerGroup, Name: item}
		}
	}

	name, pos := splitNamePosition(item)

	if fullNamePattern.MatchString(name) {
		return process.Consumer{Kind: process.ConsumerPerson, FullName: name, Position: pos}
	}

	return process.Consumer{Kind: process.ConsumerPerson, Name: name, Position: pos}
}

// splitList splits an inline list. Agenda items are only split on semicolons because a single
// item routinely contains commas.
func splitList(value string, semicolonOnly bool) []string {
	if value == "" {
		return nil
	}

	sep := ","
	if semicolonOnly || strings.Contains(value, ";") {
		sep = ";"
	}

	items := pie.Map(strings.Split(value, sep), cleanValue)
	return pie.Filter(items, func(s string) bool { return s != "" })
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)

	for {
		trimmed := strings.TrimSpace(strings.Trim(s, "*_`"))
		trimmed = strings.TrimRight(trimmed, ".;,")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func unquote(s string) string {
	return strings.TrimSpace(strings.Trim(s, `«»"`))
}
