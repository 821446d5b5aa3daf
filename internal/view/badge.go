package view

import "strings"

// BadgeBaseClass 始终存在；有效等级时追加严重程度 class
const BadgeBaseClass = "badge"

// Badge 告警等级标识
type Badge struct {
	Text    string   `json:"text"`
	Classes []string `json:"classes"`
}

// NewBadge 根据告警等级生成 badge；等级缺失或为空时显示 Unknown，只有基础 class
func NewBadge(level *string) Badge {
	if level == nil || strings.TrimSpace(*level) == "" {
		return Badge{Text: Unknown, Classes: []string{BadgeBaseClass}}
	}
	return Badge{
		Text:    strings.ToUpper(*level),
		Classes: []string{BadgeBaseClass, strings.ToLower(*level)},
	}
}

// Severity 严重程度 class，未知时为 ""
func (b Badge) Severity() string {
	if len(b.Classes) < 2 {
		return ""
	}
	return b.Classes[1]
}
