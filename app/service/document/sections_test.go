package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch Patch
		want  string
	}{
		{
			name:  "replace swallows subsections",
			doc:   "## A\nbody1\n### A1\nsub\n## B\nbody2",
			patch: Patch{Heading: "A", Mode: ModeReplace, Content: "new"},
			want:  "## A\nnew\n## B\nbody2",
		},
		{
			name:  "replace keeps separating blank line",
			doc:   "## A\nbody1\n\n## B\nbody2",
			patch: Patch{Heading: "## A", Mode: ModeReplace, Content: "\n\nnew\n\n"},
			want:  "## A\nnew\n\n## B\nbody2",
		},
		{
			name:  "replace drops repeated heading",
			doc:   "## A\nold\n",
			patch: Patch{Heading: "A", Mode: ModeReplace, Content: "## A\n\nnew"},
			want:  "## A\nnew\n",
		},
		{
			name:  "append",
			doc:   "## A\nbody\n\n## B\nx",
			patch: Patch{Heading: "a", Mode: ModeAppend, Content: "more"},
			want:  "## A\nbody\n\nmore\n\n## B\nx",
		},
		{
			name:  "delete",
			doc:   "# T\n\n## A\nbody\n\n## B\nx",
			patch: Patch{Heading: "A", Mode: ModeDelete},
			want:  "# T\n\n## B\nx",
		},
		{
			name:  "delete missing is a no-op",
			doc:   "## A\nbody",
			patch: Patch{Heading: "Z", Mode: ModeDelete},
			want:  "## A\nbody",
		},
		{
			name:  "missing heading becomes a new section",
			doc:   "## A\nbody",
			patch: Patch{Heading: "Решения", Mode: ModeReplace, Content: "принято"},
			want:  "## A\nbody\n\n## Решения\nпринято",
		},
		{
			name:  "full heading line must match level",
			doc:   "### A\nsmall\n## A\nbig",
			patch: Patch{Heading: "## A", Mode: ModeReplace, Content: "new"},
			want:  "### A\nsmall\n## A\nnew",
		},
		{
			name:  "match ignores emphasis and case",
			doc:   "## **Решения:**\nстарое",
			patch: Patch{Heading: "решения", Mode: ModeReplace, Content: "новое"},
			want:  "## **Решения:**\nновое",
		},
		{
			name:  "headings in code fences are ignored",
			doc:   "## A\n```\n## B\n```\ntail\n## B\nreal",
			patch: Patch{Heading: "B", Mode: ModeReplace, Content: "new"},
			want:  "## A\n```\n## B\n```\ntail\n## B\nnew",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyPatch(tt.doc, tt.patch))
		})
	}
}

func TestApplyPatchesCollapsesBlankLines(t *testing.T) {
	doc := "## A\nx\n\n\n\n\n## B\ny"

	got := ApplyPatches(doc, []Patch{{Heading: "B", Mode: ModeAppend, Content: "z"}})
	assert.Equal(t, "## A\nx\n\n\n## B\ny\n\nz", got)
}

func TestApplyPatchesInOrder(t *testing.T) {
	doc := "# Протокол\n\n## Решения\nнет"

	got := ApplyPatches(doc, []Patch{
		{Heading: "Решения", Mode: ModeReplace, Content: "- купить"},
		{Heading: "Решения", Mode: ModeAppend, Content: "- продать"},
		{Heading: "Поручения", Mode: ModeAppend, Content: "- Иванову"},
	})

	assert.Equal(t, "# Протокол\n\n## Решения\n- купить\n\n- продать\n\n## Поручения\n- Иванову", got)
}
