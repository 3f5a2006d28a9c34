package ner

// 实体标签常量
// 前四个来自NER模型的分组标签，其余为摘要分类使用的标签
const (
	LabelPerson      = "PERSON"
	LabelGPE         = "GPE"
	LabelPhone       = "PHONE"
	LabelEmail       = "EMAIL"
	LabelPer         = "PER"
	LabelOrg         = "ORG"
	LabelLoc         = "LOC"
	LabelMisc        = "MISC"
	LabelDate        = "DATE"
	LabelTitle       = "TITLE"
	LabelSkill       = "SKILL"
	LabelDegree      = "DEGREE"
	LabelAchievement = "ACHIEVEMENT"
	LabelURL         = "URL"
)

// ContinuationMarker wordpiece续接标记
const ContinuationMarker = "##"

// RawEntity NER服务返回的原始实体
type RawEntity struct {
	Text  string `json:"text"`  // 实体文本
	Label string `json:"label"` // 实体分组标签
}

// Entity 清洗后的实体
// 序列化格式与原始实体一致
type Entity struct {
	Text  string `json:"text"`  // 实体文本
	Label string `json:"label"` // 实体标签
}
