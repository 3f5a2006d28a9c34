package ner

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// 可选的+号，后接10到15位数字
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)
	// 本地部分@域名，域名至少包含一个点分段
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
)

// gpePhoneArtifact 分词器把电话标签混进地名时留下的片段
const gpePhoneArtifact = " Phone"

// Clean 清洗NER原始输出
// 按顺序对每个实体执行修剪、标签过滤和续接合并，结果保持原始顺序
func Clean(raw []RawEntity) []Entity {
	cleaned := make([]Entity, 0, len(raw))
	for _, ent := range raw {
		text, keep := normalize(ent.Text, ent.Label)
		if !keep {
			continue
		}

		if strings.HasPrefix(text, ContinuationMarker) {
			cleaned = mergeContinuation(cleaned, text)
			continue
		}

		cleaned = append(cleaned, Entity{Text: text, Label: ent.Label})
	}
	return cleaned
}

// normalize 对单个实体应用标签相关的规则
// 返回处理后的文本以及是否保留该实体，非PERSON实体修剪后为空仍保留
func normalize(text, label string) (string, bool) {
	text = strings.TrimSpace(text)

	switch label {
	case LabelPerson:
		if !hasLetter(text) {
			return "", false
		}
	case LabelGPE:
		if strings.Contains(text, gpePhoneArtifact) {
			text = strings.TrimSpace(strings.ReplaceAll(text, gpePhoneArtifact, ""))
		}
	case LabelPhone:
		if !phonePattern.MatchString(text) {
			return "", false
		}
	case LabelEmail:
		if !emailPattern.MatchString(text) {
			return "", false
		}
	}

	return text, true
}

// mergeContinuation 将续接片段拼接到累加器中最后一个实体
// 累加器为空时丢弃该片段
func mergeContinuation(acc []Entity, text string) []Entity {
	if len(acc) == 0 {
		return acc
	}
	last := len(acc) - 1
	acc[last].Text += strings.ReplaceAll(text, ContinuationMarker, "")
	return acc
}

// hasLetter 判断文本中是否含有字母
func hasLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
