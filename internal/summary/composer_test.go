package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSummarizer 摘要模型的mock实现
type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string, opts Options) (string, error) {
	args := m.Called(ctx, text, opts)
	return args.String(0), args.Error(1)
}

func TestBuildProfile_Dedup(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "Alice", Label: ner.LabelPer},
		{Text: "Alice", Label: ner.LabelPer},
		{Text: "Acme", Label: ner.LabelOrg},
	})

	assert.Equal(t, []string{"Alice"}, profile.Values(CategoryName))
	assert.Equal(t, 1, profile.Len(CategoryName))
	assert.Equal(t, []string{"Acme"}, profile.Values(CategoryOrgs))
	assert.False(t, profile.Has(CategorySkills))
}

func TestBuildProfile_UnmappedLabels(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "Jane", Label: ner.LabelPerson},
		{Text: "Paris", Label: ner.LabelGPE},
		{Text: "Go", Label: ner.LabelMisc},
	})

	for _, c := range Categories {
		assert.False(t, profile.Has(c), "category %s should be empty", c)
	}
	assert.Empty(t, Narrative(profile))
}

func TestBuildProfile_FirstSeenOrder(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "Go", Label: ner.LabelSkill},
		{Text: "SQL", Label: ner.LabelSkill},
		{Text: "Go", Label: ner.LabelSkill},
		{Text: "Kubernetes", Label: ner.LabelSkill},
	})

	assert.Equal(t, []string{"Go", "SQL", "Kubernetes"}, profile.Values(CategorySkills))
}

func TestProfile_Map(t *testing.T) {
	profile := BuildProfile([]ner.Entity{{Text: "MIT", Label: ner.LabelOrg}})
	m := profile.Map()

	assert.Len(t, m, len(Categories))
	assert.Equal(t, []string{"MIT"}, m["organizations"])
	assert.Empty(t, m["skills"])
}

func TestNarrative_Gating(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "Jane Doe", Label: ner.LabelPer},
		{Text: "Engineer", Label: ner.LabelTitle},
		{Text: "Acme", Label: ner.LabelOrg},
		{Text: "Berlin", Label: ner.LabelLoc},
		{Text: "jane@example.com", Label: ner.LabelEmail},
	})

	narrative := Narrative(profile)

	assert.Equal(t, "Jane Doe is a professional with experience in roles such as Engineer. "+
		"They have worked at organizations including Acme in locations such as Berlin. "+
		"You can contact them at jane@example.com.", narrative)
	assert.NotContains(t, narrative, "key skills")
	assert.NotContains(t, narrative, "phone")
}

func TestNarrative_AllSentencesInOrder(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "https://jane.dev", Label: ner.LabelURL},
		{Text: "+14155550123", Label: ner.LabelPhone},
		{Text: "jane@example.com", Label: ner.LabelEmail},
		{Text: "Best Paper 2020", Label: ner.LabelAchievement},
		{Text: "MSc", Label: ner.LabelDegree},
		{Text: "Go", Label: ner.LabelSkill},
		{Text: "Rust", Label: ner.LabelSkill},
		{Text: "Acme", Label: ner.LabelOrg},
		{Text: "Jane", Label: ner.LabelPer},
	})

	sentences := Sentences(profile)
	require.Len(t, sentences, 8)
	assert.Equal(t, "Jane is a professional with experience in roles such as .", sentences[0])
	assert.Equal(t, "They have worked at organizations including Acme in locations such as .", sentences[1])
	assert.Equal(t, "Their key skills include Go, Rust.", sentences[2])
	assert.Equal(t, "They hold degrees such as MSc.", sentences[3])
	assert.Equal(t, "Some notable achievements are Best Paper 2020.", sentences[4])
	assert.Equal(t, "You can contact them at jane@example.com.", sentences[5])
	assert.Equal(t, "Alternatively, reach them by phone at +14155550123.", sentences[6])
	assert.Equal(t, "More information can be found at their website: https://jane.dev.", sentences[7])
}

// 已知限制：多个姓名时只有第一个出现在摘要句中
func TestNarrative_OnlyFirstNameUsed(t *testing.T) {
	profile := BuildProfile([]ner.Entity{
		{Text: "Jane", Label: ner.LabelPer},
		{Text: "John", Label: ner.LabelPer},
	})

	narrative := Narrative(profile)
	assert.Contains(t, narrative, "Jane is a professional")
	assert.NotContains(t, narrative, "John")
	assert.Equal(t, 2, profile.Len(CategoryName))
}

func TestCompose_CallsSummarizer(t *testing.T) {
	summarizer := new(mockSummarizer)
	expected := "Their key skills include Software Engineering."
	summarizer.On("Summarize", mock.Anything, expected, DefaultOptions()).
		Return("condensed summary", nil).Once()

	composer := NewComposer(summarizer)
	got, err := composer.Compose(context.Background(), []ner.Entity{
		{Text: "Software Engineering", Label: ner.LabelSkill},
	}, "document text")

	require.NoError(t, err)
	assert.Equal(t, "condensed summary", got)
	summarizer.AssertExpectations(t)
}

func TestCompose_EmptyNarrativeSkipsSummarizer(t *testing.T) {
	summarizer := new(mockSummarizer)
	composer := NewComposer(summarizer)

	got, err := composer.Compose(context.Background(), []ner.Entity{{Text: "x", Label: ner.LabelMisc}}, "")

	require.NoError(t, err)
	assert.Empty(t, got)
	summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompose_PropagatesError(t *testing.T) {
	upstream := errors.New("model unavailable")
	summarizer := new(mockSummarizer)
	summarizer.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("", upstream)

	composer := NewComposer(summarizer, WithOptions(Options{MaxLength: 60, MinLength: 10}))
	_, err := composer.Compose(context.Background(), []ner.Entity{{Text: "Acme", Label: ner.LabelOrg}}, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
}

func TestCompose_EndToEndWithCleaner(t *testing.T) {
	cleaned := ner.Clean([]ner.RawEntity{
		{Text: "Dr. Jane Smith", Label: ner.LabelPer},
		{Text: "Soft", Label: ner.LabelSkill},
		{Text: "##ware Engineering", Label: ner.LabelSkill},
	})
	require.Len(t, cleaned, 2)
	assert.Equal(t, "Software Engineering", cleaned[1].Text)

	profile := BuildProfile(cleaned)
	assert.Equal(t, []string{"Software Engineering"}, profile.Values(CategorySkills))

	var captured string
	summarizer := new(mockSummarizer)
	summarizer.On("Summarize", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { captured = args.String(1) }).
		Return("ok", nil)

	_, err := NewComposer(summarizer).Compose(context.Background(), cleaned, "")
	require.NoError(t, err)

	assert.Contains(t, captured, "Their key skills include Software Engineering.")
	assert.NotContains(t, captured, "worked at organizations")
	assert.NotContains(t, captured, "degrees")
	assert.NotContains(t, captured, "contact them")
}
