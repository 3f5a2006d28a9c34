package summary

import (
	"github.com/fyerfyer/nerf-processor/internal/ner"
)

// Category 摘要画像中的语义类别
type Category string

const (
	CategoryName         Category = "name"
	CategoryJobTitles    Category = "job_titles"
	CategoryOrgs         Category = "organizations"
	CategoryLocations    Category = "locations"
	CategorySkills       Category = "skills"
	CategoryEmails       Category = "emails"
	CategoryPhones       Category = "phones"
	CategoryDates        Category = "dates"
	CategoryDegrees      Category = "degrees"
	CategoryAchievements Category = "achievements"
	CategoryURLs         Category = "urls"
)

// Categories 全部类别
var Categories = []Category{
	CategoryName,
	CategoryJobTitles,
	CategoryOrgs,
	CategoryLocations,
	CategorySkills,
	CategoryEmails,
	CategoryPhones,
	CategoryDates,
	CategoryDegrees,
	CategoryAchievements,
	CategoryURLs,
}

// labelCategories 实体标签到类别的静态映射
// 未出现在表中的标签不归入任何类别
var labelCategories = map[string]Category{
	ner.LabelPer:         CategoryName,
	ner.LabelOrg:         CategoryOrgs,
	ner.LabelLoc:         CategoryLocations,
	ner.LabelDate:        CategoryDates,
	ner.LabelEmail:       CategoryEmails,
	ner.LabelPhone:       CategoryPhones,
	ner.LabelTitle:       CategoryJobTitles,
	ner.LabelSkill:       CategorySkills,
	ner.LabelDegree:      CategoryDegrees,
	ner.LabelAchievement: CategoryAchievements,
	ner.LabelURL:         CategoryURLs,
}

// CategoryFor 返回标签对应的类别
func CategoryFor(label string) (Category, bool) {
	c, ok := labelCategories[label]
	return c, ok
}

// Profile 文档的实体画像
// 每个类别内的值去重，并按首次出现的顺序排列
type Profile struct {
	values map[Category][]string
	seen   map[Category]map[string]struct{}
}

// NewProfile 创建空画像
func NewProfile() *Profile {
	p := &Profile{
		values: make(map[Category][]string, len(Categories)),
		seen:   make(map[Category]map[string]struct{}, len(Categories)),
	}
	for _, c := range Categories {
		p.seen[c] = make(map[string]struct{})
	}
	return p
}

// BuildProfile 将清洗后的实体归类并去重
func BuildProfile(entities []ner.Entity) *Profile {
	p := NewProfile()
	for _, ent := range entities {
		category, ok := CategoryFor(ent.Label)
		if !ok {
			continue
		}
		p.Add(category, ent.Text)
	}
	return p
}

// Add 向类别中添加值，重复值忽略
func (p *Profile) Add(category Category, value string) {
	seen, ok := p.seen[category]
	if !ok {
		return
	}
	if _, dup := seen[value]; dup {
		return
	}
	seen[value] = struct{}{}
	p.values[category] = append(p.values[category], value)
}

// Values 返回类别中的唯一值
func (p *Profile) Values(category Category) []string {
	return p.values[category]
}

// Has 判断类别是否非空
func (p *Profile) Has(category Category) bool {
	return len(p.values[category]) > 0
}

// Len 返回类别中唯一值的数量
func (p *Profile) Len(category Category) int {
	return len(p.values[category])
}

// Map 导出为类别到值列表的映射，空类别对应空列表
func (p *Profile) Map() map[string][]string {
	out := make(map[string][]string, len(Categories))
	for _, c := range Categories {
		values := make([]string, len(p.values[c]))
		copy(values, p.values[c])
		out[string(c)] = values
	}
	return out
}
